package repository

import (
	"clinic-auth/internal/models"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionRepository persists sessions in Postgres. The store, not process
// memory, is the source of truth so multiple instances agree on liveness.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	TouchActivity(ctx context.Context, sessionID string, at time.Time) (bool, error)
	Deactivate(ctx context.Context, sessionID string, loggedOutAt *time.Time) error
	DeactivateAllForIdentity(ctx context.Context, identityID string, at time.Time) error
	GetIdentitySessions(ctx context.Context, identityID string, activeOnly bool) ([]*models.Session, error)
}

type sessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if session.IdentityID == "" {
		return fmt.Errorf("identity ID cannot be empty")
	}
	if session.TokenHash == "" {
		return fmt.Errorf("token hash cannot be empty")
	}

	query := `
		INSERT INTO sessions (id, identity_id, token_hash, ip_address, device_info, origin, login_at, last_activity_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query, session.ID, session.IdentityID, session.TokenHash,
		session.IPAddress, session.DeviceInfo, session.Origin,
		session.LoginAt, session.LastActivityAt, session.ExpiresAt, session.IsActive)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if tokenHash == "" {
		return nil, fmt.Errorf("token hash cannot be empty")
	}

	session := &models.Session{}
	query := `
		SELECT id, identity_id, token_hash, ip_address, device_info, origin, login_at, last_activity_at, expires_at, logged_out_at, is_active
		FROM sessions
		WHERE token_hash = $1`

	err := r.db.GetContext(ctx, session, query, tokenHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// TouchActivity bumps last_activity_at only while the session is still
// active and unexpired, so a concurrent revoke or expiry flip wins. The
// returned bool reports whether the row was touched.
func (r *sessionRepository) TouchActivity(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET last_activity_at = $2
		WHERE id = $1 AND is_active AND expires_at > $2`

	result, err := r.db.ExecContext(ctx, query, sessionID, at)
	if err != nil {
		return false, fmt.Errorf("failed to touch session activity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Deactivate flips the active flag. Repeated logout or a concurrent expiry
// flip is not an error; the first logout timestamp is kept.
func (r *sessionRepository) Deactivate(ctx context.Context, sessionID string, loggedOutAt *time.Time) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE, logged_out_at = COALESCE(logged_out_at, $2)
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, sessionID, loggedOutAt)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}

	return nil
}

func (r *sessionRepository) DeactivateAllForIdentity(ctx context.Context, identityID string, at time.Time) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE, logged_out_at = COALESCE(logged_out_at, $2)
		WHERE identity_id = $1 AND is_active`

	_, err := r.db.ExecContext(ctx, query, identityID, at)
	if err != nil {
		return fmt.Errorf("failed to deactivate identity sessions: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetIdentitySessions(ctx context.Context, identityID string, activeOnly bool) ([]*models.Session, error) {
	var sessions []*models.Session
	var query string

	if activeOnly {
		query = `
			SELECT id, identity_id, token_hash, ip_address, device_info, origin, login_at, last_activity_at, expires_at, logged_out_at, is_active
			FROM sessions
			WHERE identity_id = $1 AND is_active
			ORDER BY login_at DESC`
	} else {
		query = `
			SELECT id, identity_id, token_hash, ip_address, device_info, origin, login_at, last_activity_at, expires_at, logged_out_at, is_active
			FROM sessions
			WHERE identity_id = $1
			ORDER BY login_at DESC`
	}

	err := r.db.SelectContext(ctx, &sessions, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity sessions: %w", err)
	}

	return sessions, nil
}
