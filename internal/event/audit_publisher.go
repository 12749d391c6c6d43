package event

import (
	"clinic-auth/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditEmitter is the fire-and-forget sink for security-relevant actions.
// Emission failures never fail the calling operation.
type AuditEmitter interface {
	Emit(ctx context.Context, event models.AuditEvent)
}

// AuditPublisher ships audit events to the audit_events queue.
type AuditPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished int64
	messagesFailed    int64
}

func NewAuditPublisher(conn *RabbitMQConnection) *AuditPublisher {
	return &AuditPublisher{conn: conn}
}

func (p *AuditPublisher) Emit(ctx context.Context, event models.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := p.publish(ctx, event); err != nil {
		p.messagesFailed++
		slog.Error("audit event publish failed", "action", event.Action, "error", err)
		return
	}
	p.messagesPublished++
}

func (p *AuditPublisher) publish(ctx context.Context, event models.AuditEvent) error {
	_, err := p.conn.Channel.QueueDeclare(
		AuditQueue, // queue name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",         // exchange
		AuditQueue, // routing key (queue name)
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}

	return nil
}

// NopAuditEmitter logs locally when no broker is reachable.
type NopAuditEmitter struct{}

func (NopAuditEmitter) Emit(_ context.Context, event models.AuditEvent) {
	slog.Info("audit event (broker unavailable)",
		"action", event.Action,
		"success", event.Success,
	)
}
