package services

import (
	"clinic-auth/internal/event"
	"clinic-auth/internal/models"
	"clinic-auth/internal/repository"
	"clinic-auth/utils"
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
)

// ITwoFactorService manages step-up provisioning and challenge verification.
type ITwoFactorService interface {
	BeginTOTPSetup(ctx context.Context, identity *models.Identity) (*models.TOTPProvisioning, error)
	VerifyTOTPSetup(ctx context.Context, identityID, code string) error
	BeginSMSSetup(ctx context.Context, identity *models.Identity) error
	Disable(ctx context.Context, identityID string) error
	Status(ctx context.Context, identityID string) (*models.TwoFactorConfig, error)
	Challenge(ctx context.Context, identity *models.Identity) (models.TwoFactorMethod, error)
	VerifyChallenge(ctx context.Context, identityID, code string) error
}

type TwoFactorService struct {
	repo          repository.TwoFactorRepository
	codes         repository.OneTimeCodeStore
	smsDispatcher event.SMSDispatcher
	auditEmitter  event.AuditEmitter

	issuer      string
	codeTTL     time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewTwoFactorService(repo repository.TwoFactorRepository, codes repository.OneTimeCodeStore, smsDispatcher event.SMSDispatcher, auditEmitter event.AuditEmitter, issuer string, codeTTL time.Duration, maxAttempts int) *TwoFactorService {
	if codeTTL <= 0 {
		codeTTL = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &TwoFactorService{
		repo:          repo,
		codes:         codes,
		smsDispatcher: smsDispatcher,
		auditEmitter:  auditEmitter,
		issuer:        issuer,
		codeTTL:       codeTTL,
		maxAttempts:   maxAttempts,
		now:           time.Now,
	}
}

// BeginTOTPSetup provisions a fresh shared secret, stored disabled until the
// first code verifies. The otpauth URI renders as a scannable code, the raw
// secret is exposed this one time for manual entry.
func (s *TwoFactorService) BeginTOTPSetup(ctx context.Context, identity *models.Identity) (*models.TOTPProvisioning, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: identity.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	secret := key.Secret()
	cfg := &models.TwoFactorConfig{
		IdentityID: identity.ID,
		Method:     models.TwoFactorTOTP,
		TOTPSecret: &secret,
		Enabled:    false,
	}
	if err := s.repo.UpsertConfig(ctx, cfg); err != nil {
		return nil, ErrStoreUnavailable
	}

	s.emit(ctx, identity.ID, models.AuditTwoFactorSetup, true, "totp provisioning started")

	return &models.TOTPProvisioning{
		Secret: secret,
		URI:    key.URL(),
	}, nil
}

// VerifyTOTPSetup flips a pending TOTP config to enabled on the first valid
// code. One time-step of clock skew is tolerated on each side.
func (s *TwoFactorService) VerifyTOTPSetup(ctx context.Context, identityID, code string) error {
	cfg, err := s.repo.GetConfig(ctx, identityID)
	if err != nil {
		return ErrStoreUnavailable
	}
	if cfg == nil || cfg.Method != models.TwoFactorTOTP || cfg.TOTPSecret == nil {
		return ErrTwoFactorNotProvisioned
	}

	if !s.validateTOTP(code, *cfg.TOTPSecret) {
		s.emit(ctx, identityID, models.AuditTwoFactorFailed, false, "totp setup verification failed")
		return ErrCodeMismatch
	}

	cfg.Enabled = true
	if err := s.repo.UpsertConfig(ctx, cfg); err != nil {
		return ErrStoreUnavailable
	}

	s.emit(ctx, identityID, models.AuditTwoFactorVerified, true, "totp enabled")
	return nil
}

// BeginSMSSetup enables SMS step-up in the same step; the only precondition
// is a phone number on record.
func (s *TwoFactorService) BeginSMSSetup(ctx context.Context, identity *models.Identity) error {
	if identity.PhoneNumber == "" {
		return ErrPhoneRequired
	}

	cfg := &models.TwoFactorConfig{
		IdentityID: identity.ID,
		Method:     models.TwoFactorSMS,
		Enabled:    true,
	}
	if err := s.repo.UpsertConfig(ctx, cfg); err != nil {
		return ErrStoreUnavailable
	}

	s.emit(ctx, identity.ID, models.AuditTwoFactorSetup, true, "sms enabled")
	return nil
}

func (s *TwoFactorService) Disable(ctx context.Context, identityID string) error {
	if err := s.repo.DeleteConfig(ctx, identityID); err != nil {
		return ErrStoreUnavailable
	}
	if err := s.codes.DeleteCode(ctx, identityID); err != nil {
		log.Printf("failed to clear one-time code on disable: %v", err)
	}

	s.emit(ctx, identityID, models.AuditTwoFactorDisabled, true, "")
	return nil
}

// Status returns nil when the identity never provisioned step-up.
func (s *TwoFactorService) Status(ctx context.Context, identityID string) (*models.TwoFactorConfig, error) {
	cfg, err := s.repo.GetConfig(ctx, identityID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	return cfg, nil
}

// Challenge starts the post-password step for an enabled config. For SMS a
// fresh 6-digit code is stored with its own TTL and handed to the messaging
// collaborator; dispatch failure never rolls the stored code back. TOTP
// needs no server-side challenge state.
func (s *TwoFactorService) Challenge(ctx context.Context, identity *models.Identity) (models.TwoFactorMethod, error) {
	cfg, err := s.repo.GetConfig(ctx, identity.ID)
	if err != nil {
		return "", ErrStoreUnavailable
	}
	if cfg == nil || !cfg.Enabled {
		return "", ErrTwoFactorNotProvisioned
	}

	switch cfg.Method {
	case models.TwoFactorTOTP:
		return models.TwoFactorTOTP, nil
	case models.TwoFactorSMS:
		code, err := utils.GenerateNumericCode(6)
		if err != nil {
			return "", fmt.Errorf("failed to generate one-time code: %w", err)
		}
		if err := s.codes.PutCode(ctx, identity.ID, code, s.codeTTL); err != nil {
			return "", ErrStoreUnavailable
		}
		if err := s.codes.ClearAttempts(ctx, identity.ID); err != nil {
			log.Printf("failed to reset verification attempts: %v", err)
		}
		s.smsDispatcher.DispatchCode(ctx, identity.PhoneNumber, code)
		return models.TwoFactorSMS, nil
	default:
		return "", ErrUnsupportedMethod
	}
}

// VerifyChallenge checks a post-password code. SMS codes are single-use and
// retry-capped; the error never reveals which part of the check failed
// beyond expired-vs-mismatch.
func (s *TwoFactorService) VerifyChallenge(ctx context.Context, identityID, code string) error {
	cfg, err := s.repo.GetConfig(ctx, identityID)
	if err != nil {
		return ErrStoreUnavailable
	}
	if cfg == nil || !cfg.Enabled {
		return ErrTwoFactorNotProvisioned
	}

	switch cfg.Method {
	case models.TwoFactorTOTP:
		if cfg.TOTPSecret == nil {
			return ErrTwoFactorNotProvisioned
		}
		if !s.validateTOTP(code, *cfg.TOTPSecret) {
			s.emit(ctx, identityID, models.AuditTwoFactorFailed, false, "totp challenge failed")
			return ErrCodeMismatch
		}
	case models.TwoFactorSMS:
		if err := s.verifySMSCode(ctx, identityID, code); err != nil {
			return err
		}
	default:
		return ErrUnsupportedMethod
	}

	s.emit(ctx, identityID, models.AuditTwoFactorVerified, true, string(cfg.Method))
	return nil
}

func (s *TwoFactorService) verifySMSCode(ctx context.Context, identityID, code string) error {
	attempts, err := s.codes.IncrAttempts(ctx, identityID, s.codeTTL)
	if err != nil {
		return ErrStoreUnavailable
	}
	if attempts > s.maxAttempts {
		if err := s.codes.DeleteCode(ctx, identityID); err != nil {
			log.Printf("failed to invalidate one-time code after retry cap: %v", err)
		}
		s.emit(ctx, identityID, models.AuditTwoFactorFailed, false, "retry cap exceeded")
		return ErrTooManyAttempts
	}

	stored, err := s.codes.GetCode(ctx, identityID)
	if err != nil {
		if err == redis.Nil {
			s.emit(ctx, identityID, models.AuditTwoFactorFailed, false, "code expired")
			return ErrCodeExpired
		}
		return ErrStoreUnavailable
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		s.emit(ctx, identityID, models.AuditTwoFactorFailed, false, "code mismatch")
		return ErrCodeMismatch
	}

	// Single use: the code is gone after the first success.
	if err := s.codes.DeleteCode(ctx, identityID); err != nil {
		log.Printf("failed to invalidate one-time code after use: %v", err)
	}
	if err := s.codes.ClearAttempts(ctx, identityID); err != nil {
		log.Printf("failed to clear verification attempts: %v", err)
	}

	return nil
}

func (s *TwoFactorService) validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, s.now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *TwoFactorService) emit(ctx context.Context, identityID, action string, success bool, detail string) {
	id := identityID
	s.auditEmitter.Emit(ctx, models.AuditEvent{
		IdentityID: &id,
		Action:     action,
		Success:    success,
		Detail:     detail,
		OccurredAt: s.now(),
	})
}
