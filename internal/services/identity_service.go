package services

import (
	"clinic-auth/internal/models"
	"clinic-auth/internal/repository"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IIdentityService manages staff accounts. Identity lifecycle is an admin
// concern here; self-service registration does not exist for clinic staff.
type IIdentityService interface {
	RegisterIdentity(ctx context.Context, email, password, phoneNumber string, departmentID *string) (*models.Identity, error)
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error)
	ListIdentities(ctx context.Context, limit, offset int) ([]*models.Identity, error)
	RecordLogin(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
	ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error
}

type IdentityService struct {
	identityRepo   repository.IIdentityRepository
	sessionService ISessionService
	now            func() time.Time
}

func NewIdentityService(identityRepo repository.IIdentityRepository, sessionService ISessionService) *IdentityService {
	return &IdentityService{
		identityRepo:   identityRepo,
		sessionService: sessionService,
		now:            time.Now,
	}
}

func (s *IdentityService) RegisterIdentity(ctx context.Context, email, password, phoneNumber string, departmentID *string) (*models.Identity, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.identityRepo.GetIdentityByEmail(email)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("identity with email '%s' already exists", email)
	}

	identity := &models.Identity{
		ID:           uuid.New().String(),
		Email:        email,
		PhoneNumber:  phoneNumber,
		DepartmentID: departmentID,
		IsActive:     true,
	}

	if err := s.identityRepo.CreateIdentity(identity, password); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return identity, nil
}

func (s *IdentityService) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	if id == "" {
		return nil, fmt.Errorf("identity ID cannot be empty")
	}
	return s.identityRepo.GetIdentityByID(id)
}

func (s *IdentityService) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return s.identityRepo.GetIdentityByEmail(email)
}

func (s *IdentityService) ListIdentities(ctx context.Context, limit, offset int) ([]*models.Identity, error) {
	return s.identityRepo.GetAllIdentities(limit, offset)
}

func (s *IdentityService) RecordLogin(ctx context.Context, id string) error {
	return s.identityRepo.UpdateLastLogin(id, s.now())
}

// Deactivate disables the account and revokes every live session, so a
// deactivated staff member loses access immediately, not at next expiry.
func (s *IdentityService) Deactivate(ctx context.Context, id string) error {
	if err := s.identityRepo.SetActive(id, false); err != nil {
		return err
	}
	return s.sessionService.RevokeAllForIdentity(ctx, id)
}

func (s *IdentityService) Reactivate(ctx context.Context, id string) error {
	return s.identityRepo.SetActive(id, true)
}

// ChangePassword requires the current password even inside a valid session.
func (s *IdentityService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	identity, err := s.identityRepo.GetIdentityByID(id)
	if err != nil {
		return err
	}
	if identity == nil {
		return fmt.Errorf("identity not found")
	}

	if !s.identityRepo.CheckPasswordHash(currentPassword, identity.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	return s.identityRepo.UpdatePassword(id, newPassword)
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(email, "@") || len(email) < 5 {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
