package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// SMSDispatcher hands a one-time code off to the messaging collaborator.
// Dispatch failure must not roll back the stored code; the user can
// re-request a fresh one.
type SMSDispatcher interface {
	DispatchCode(ctx context.Context, phoneNumber, code string)
}

type smsMessage struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Priority     string         `json:"priority"`
	Payload      map[string]any `json:"payload"`
	Destinations []string       `json:"destinations"`
	CreatedAt    time.Time      `json:"created_at"`
}

// SMSPublisher publishes verification codes to the push_noti_events queue.
type SMSPublisher struct {
	conn *RabbitMQConnection
}

func NewSMSPublisher(conn *RabbitMQConnection) *SMSPublisher {
	return &SMSPublisher{conn: conn}
}

// DispatchCode publishes in a goroutine detached from the request context;
// the caller's deadline must not cancel an in-flight send.
func (p *SMSPublisher) DispatchCode(_ context.Context, phoneNumber, code string) {
	go func() {
		msg := smsMessage{
			ID:       uuid.New().String(),
			Type:     "sms",
			Priority: "high",
			Payload: map[string]any{
				"body": fmt.Sprintf("인증번호 %s 를 입력해 주세요.", code),
			},
			Destinations: []string{phoneNumber},
			CreatedAt:    time.Now(),
		}
		if err := p.publish(context.Background(), msg); err != nil {
			slog.Error("sms code dispatch failed", "error", err)
			return
		}
		slog.Info("sms verification code dispatched")
	}()
}

func (p *SMSPublisher) publish(ctx context.Context, msg smsMessage) error {
	_, err := p.conn.Channel.QueueDeclare(
		SMSQueue, // queue name
		true,     // durable
		false,    // delete when unused
		false,    // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal sms message: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",       // exchange
		SMSQueue, // routing key (queue name)
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    msg.CreatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish sms message: %w", err)
	}

	return nil
}

// NopSMSDispatcher is used when no broker is configured; the code stays
// valid in the store so operators can surface it through support channels.
type NopSMSDispatcher struct{}

func (NopSMSDispatcher) DispatchCode(_ context.Context, _ string, _ string) {
	slog.Warn("sms dispatch skipped, broker unavailable")
}
