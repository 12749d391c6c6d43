package repository

import (
	"clinic-auth/internal/models"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// TwoFactorRepository persists the one-per-identity step-up configuration.
type TwoFactorRepository interface {
	GetConfig(ctx context.Context, identityID string) (*models.TwoFactorConfig, error)
	UpsertConfig(ctx context.Context, cfg *models.TwoFactorConfig) error
	DeleteConfig(ctx context.Context, identityID string) error
}

type twoFactorRepository struct {
	db *sqlx.DB
}

func NewTwoFactorRepository(db *sqlx.DB) TwoFactorRepository {
	return &twoFactorRepository{db: db}
}

// GetConfig returns nil without error when no config exists.
func (r *twoFactorRepository) GetConfig(ctx context.Context, identityID string) (*models.TwoFactorConfig, error) {
	cfg := &models.TwoFactorConfig{}
	query := `
		SELECT identity_id, method, totp_secret, enabled, created_at, updated_at
		FROM two_factor_configs
		WHERE identity_id = $1`

	err := r.db.GetContext(ctx, cfg, query, identityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get two-factor config: %w", err)
	}

	return cfg, nil
}

func (r *twoFactorRepository) UpsertConfig(ctx context.Context, cfg *models.TwoFactorConfig) error {
	query := `
		INSERT INTO two_factor_configs (identity_id, method, totp_secret, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (identity_id) DO UPDATE SET
			method = EXCLUDED.method,
			totp_secret = EXCLUDED.totp_secret,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query, cfg.IdentityID, cfg.Method, cfg.TOTPSecret, cfg.Enabled)
	if err != nil {
		return fmt.Errorf("failed to upsert two-factor config: %w", err)
	}

	return nil
}

func (r *twoFactorRepository) DeleteConfig(ctx context.Context, identityID string) error {
	query := `DELETE FROM two_factor_configs WHERE identity_id = $1`

	_, err := r.db.ExecContext(ctx, query, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete two-factor config: %w", err)
	}

	return nil
}

// OneTimeCodeStore holds the transient SMS codes and their retry counters.
// Codes live in Redis with their own TTL; the store never touches the TOTP
// secret column.
type OneTimeCodeStore interface {
	PutCode(ctx context.Context, identityID, code string, ttl time.Duration) error
	GetCode(ctx context.Context, identityID string) (string, error)
	DeleteCode(ctx context.Context, identityID string) error
	IncrAttempts(ctx context.Context, identityID string, window time.Duration) (int, error)
	ClearAttempts(ctx context.Context, identityID string) error
}

type redisCodeStore struct {
	client *redis.Client
}

func NewOneTimeCodeStore(client *redis.Client) OneTimeCodeStore {
	return &redisCodeStore{client: client}
}

func (s *redisCodeStore) PutCode(ctx context.Context, identityID, code string, ttl time.Duration) error {
	key := s.codeKey(identityID)
	if err := s.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store one-time code: %w", err)
	}
	return nil
}

// GetCode returns redis.Nil wrapped when the code is absent or expired.
func (s *redisCodeStore) GetCode(ctx context.Context, identityID string) (string, error) {
	code, err := s.client.Get(ctx, s.codeKey(identityID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", err
		}
		return "", fmt.Errorf("failed to get one-time code: %w", err)
	}
	return code, nil
}

func (s *redisCodeStore) DeleteCode(ctx context.Context, identityID string) error {
	if err := s.client.Del(ctx, s.codeKey(identityID)).Err(); err != nil {
		return fmt.Errorf("failed to delete one-time code: %w", err)
	}
	return nil
}

func (s *redisCodeStore) IncrAttempts(ctx context.Context, identityID string, window time.Duration) (int, error) {
	key := s.attemptsKey(identityID)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count verification attempts: %w", err)
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return int(count), nil
}

func (s *redisCodeStore) ClearAttempts(ctx context.Context, identityID string) error {
	if err := s.client.Del(ctx, s.attemptsKey(identityID)).Err(); err != nil {
		return fmt.Errorf("failed to clear verification attempts: %w", err)
	}
	return nil
}

func (s *redisCodeStore) codeKey(identityID string) string {
	return fmt.Sprintf("2fa_code:%s", identityID)
}

func (s *redisCodeStore) attemptsKey(identityID string) string {
	return fmt.Sprintf("2fa_attempts:%s", identityID)
}
