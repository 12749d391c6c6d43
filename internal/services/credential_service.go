package services

import (
	"clinic-auth/internal/event"
	"clinic-auth/internal/models"
	"clinic-auth/internal/repository"
	"context"
	"log"
	"time"
)

// ICredentialService checks a password login attempt and reports whether the
// identity still owes a step-up verification.
type ICredentialService interface {
	Verify(ctx context.Context, email, password string, ipAddress *string) (*models.Identity, bool, error)
}

type CredentialService struct {
	identityRepo  repository.IIdentityRepository
	twoFactorRepo repository.TwoFactorRepository
	auditEmitter  event.AuditEmitter
	now           func() time.Time
}

func NewCredentialService(identityRepo repository.IIdentityRepository, twoFactorRepo repository.TwoFactorRepository, auditEmitter event.AuditEmitter) *CredentialService {
	return &CredentialService{
		identityRepo:  identityRepo,
		twoFactorRepo: twoFactorRepo,
		auditEmitter:  auditEmitter,
		now:           time.Now,
	}
}

// dummyPasswordHash absorbs a bcrypt comparison on the unknown-email path so
// response timing does not reveal whether the account exists.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Verify resolves the active identity for the email and compares the
// password against the stored bcrypt hash. Absent, inactive and mismatched
// all collapse into ErrInvalidCredentials so callers cannot probe accounts.
func (s *CredentialService) Verify(ctx context.Context, email, password string, ipAddress *string) (*models.Identity, bool, error) {
	identity, err := s.identityRepo.GetIdentityByEmail(email)
	if err != nil {
		log.Printf("failed to look up identity by email: %v", err)
		return nil, false, ErrStoreUnavailable
	}
	if identity == nil {
		s.identityRepo.CheckPasswordHash(password, dummyPasswordHash)
		s.emitLogin(ctx, nil, ipAddress, false, "unknown email")
		return nil, false, ErrInvalidCredentials
	}

	if !s.identityRepo.CheckPasswordHash(password, identity.PasswordHash) {
		s.emitLogin(ctx, &identity.ID, ipAddress, false, "password mismatch")
		return nil, false, ErrInvalidCredentials
	}

	// Inactive accounts fail the same way as unknown ones so the response
	// does not confirm the account exists.
	if !identity.IsActive {
		s.emitLogin(ctx, &identity.ID, ipAddress, false, "account inactive")
		return nil, false, ErrInvalidCredentials
	}

	cfg, err := s.twoFactorRepo.GetConfig(ctx, identity.ID)
	if err != nil {
		log.Printf("failed to load two-factor config for %s: %v", identity.ID, err)
		return nil, false, ErrStoreUnavailable
	}

	twoFactorEnabled := cfg != nil && cfg.Enabled

	s.emitLogin(ctx, &identity.ID, ipAddress, true, "")
	return identity, twoFactorEnabled, nil
}

func (s *CredentialService) emitLogin(ctx context.Context, identityID *string, ipAddress *string, success bool, detail string) {
	action := models.AuditLoginSuccess
	if !success {
		action = models.AuditLoginFailure
	}
	s.auditEmitter.Emit(ctx, models.AuditEvent{
		IdentityID: identityID,
		Action:     action,
		IPAddress:  ipAddress,
		Success:    success,
		Detail:     detail,
		OccurredAt: s.now(),
	})
}
