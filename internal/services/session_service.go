package services

import (
	"clinic-auth/internal/event"
	"clinic-auth/internal/models"
	"clinic-auth/internal/repository"
	"clinic-auth/utils"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ISessionService owns the lifecycle of opaque session tokens. The raw token
// leaves the service exactly once, at creation; only its SHA-256 hash is
// stored, so the database never holds a usable credential.
type ISessionService interface {
	Create(ctx context.Context, identity *models.Identity, ipAddress, deviceInfo *string) (string, *models.Session, error)
	Validate(ctx context.Context, rawToken string) (*models.Session, error)
	Revoke(ctx context.Context, rawToken string) error
	RevokeAllForIdentity(ctx context.Context, identityID string) error
	ListSessions(ctx context.Context, identityID string, activeOnly bool) ([]*models.Session, error)
}

type SessionService struct {
	sessionRepo  repository.SessionRepository
	ipAllowRepo  repository.IPAllowRepository
	auditEmitter event.AuditEmitter
	sessionTTL   time.Duration
	now          func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository, ipAllowRepo repository.IPAllowRepository, auditEmitter event.AuditEmitter, sessionTTL time.Duration) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		ipAllowRepo:  ipAllowRepo,
		auditEmitter: auditEmitter,
		sessionTTL:   sessionTTL,
		now:          time.Now,
	}
}

// HashToken derives the stored form of a raw session token.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// Create issues a fresh session and returns the raw token alongside the
// stored record. Existing sessions of the identity are untouched; each login
// gets its own token.
func (s *SessionService) Create(ctx context.Context, identity *models.Identity, ipAddress, deviceInfo *string) (string, *models.Session, error) {
	if identity == nil {
		return "", nil, fmt.Errorf("identity cannot be nil")
	}

	rawToken, err := utils.GenerateOpaqueToken(32)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		ID:             uuid.New().String(),
		IdentityID:     identity.ID,
		TokenHash:      HashToken(rawToken),
		IPAddress:      ipAddress,
		DeviceInfo:     deviceInfo,
		Origin:         s.classifyOrigin(ipAddress),
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.sessionTTL),
		IsActive:       true,
	}

	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return "", nil, ErrStoreUnavailable
	}

	return rawToken, session, nil
}

// Validate resolves a raw token to its live session. Expired sessions are
// flipped inactive on first sight; live ones get their activity timestamp
// bumped. Every failure mode maps to a sentinel the caller can branch on.
func (s *SessionService) Validate(ctx context.Context, rawToken string) (*models.Session, error) {
	if rawToken == "" {
		return nil, ErrNoSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if session == nil {
		return nil, ErrInvalidSession
	}

	// Revoked and already-flipped sessions are plain invalid; only the first
	// sighting of an expired session reports expiry and flips it inactive.
	if !session.IsActive {
		return nil, ErrInvalidSession
	}

	now := s.now()
	if !now.Before(session.ExpiresAt) {
		if err := s.sessionRepo.Deactivate(ctx, session.ID, nil); err != nil {
			log.Printf("failed to deactivate expired session %s: %v", session.ID, err)
		}
		s.emit(ctx, models.AuditEvent{
			IdentityID: &session.IdentityID,
			Action:     models.AuditSessionExpired,
			Success:    true,
			OccurredAt: now,
		})
		return nil, ErrSessionExpired
	}

	touched, err := s.sessionRepo.TouchActivity(ctx, session.ID, now)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if !touched {
		// A concurrent revoke or expiry flip won the race.
		return nil, ErrInvalidSession
	}
	session.LastActivityAt = now

	return session, nil
}

// Revoke ends the session behind a raw token. Unknown or already dead tokens
// are not an error; logout must always succeed from the caller's view.
func (s *SessionService) Revoke(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return ErrStoreUnavailable
	}
	if session == nil {
		return nil
	}

	now := s.now()
	if err := s.sessionRepo.Deactivate(ctx, session.ID, &now); err != nil {
		return ErrStoreUnavailable
	}

	if session.IsActive {
		s.emit(ctx, models.AuditEvent{
			IdentityID: &session.IdentityID,
			Action:     models.AuditLogout,
			IPAddress:  session.IPAddress,
			Success:    true,
			OccurredAt: now,
		})
	}

	return nil
}

// RevokeAllForIdentity ends every live session of an identity, used when an
// account is deactivated by an administrator.
func (s *SessionService) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	if identityID == "" {
		return fmt.Errorf("identity ID cannot be empty")
	}

	now := s.now()
	if err := s.sessionRepo.DeactivateAllForIdentity(ctx, identityID, now); err != nil {
		return ErrStoreUnavailable
	}

	s.emit(ctx, models.AuditEvent{
		IdentityID: &identityID,
		Action:     models.AuditSessionRevoked,
		Success:    true,
		Detail:     "all sessions revoked",
		OccurredAt: now,
	})

	return nil
}

func (s *SessionService) ListSessions(ctx context.Context, identityID string, activeOnly bool) ([]*models.Session, error) {
	if identityID == "" {
		return nil, fmt.Errorf("identity ID cannot be empty")
	}

	sessions, err := s.sessionRepo.GetIdentitySessions(ctx, identityID, activeOnly)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	return sessions, nil
}

// classifyOrigin labels the session internal when the client address matches
// an active allow-list entry, external otherwise. Lookup failures degrade to
// external rather than blocking login.
func (s *SessionService) classifyOrigin(ipAddress *string) models.SessionOrigin {
	if ipAddress == nil || *ipAddress == "" || s.ipAllowRepo == nil {
		return models.OriginExternal
	}

	entries, err := s.ipAllowRepo.GetEntries(true)
	if err != nil {
		log.Printf("failed to load ip allow entries: %v", err)
		return models.OriginExternal
	}

	for _, entry := range entries {
		if entry.Matches(*ipAddress) {
			return models.OriginInternal
		}
	}

	return models.OriginExternal
}

func (s *SessionService) emit(ctx context.Context, ev models.AuditEvent) {
	if s.auditEmitter != nil {
		s.auditEmitter.Emit(ctx, ev)
	}
}
