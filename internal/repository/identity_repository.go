package repository

import (
	"clinic-auth/internal/models"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type IIdentityRepository interface {
	CreateIdentity(identity *models.Identity, password string) error
	GetIdentityByID(id string) (*models.Identity, error)
	GetIdentityByEmail(email string) (*models.Identity, error)
	GetAllIdentities(limit, offset int) ([]*models.Identity, error)
	UpdateLastLogin(id string, at time.Time) error
	SetActive(id string, active bool) error
	UpdatePassword(id, newPassword string) error
	CheckPasswordHash(password, hash string) bool
}

type IdentityRepository struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) IIdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) CreateIdentity(identity *models.Identity, password string) error {
	hash, err := r.hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	identity.PasswordHash = hash

	now := time.Now()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	query := `
		INSERT INTO identities (id, email, password_hash, phone_number, department_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(query, identity.ID, identity.Email, identity.PasswordHash,
		identity.PhoneNumber, identity.DepartmentID, identity.IsActive, identity.CreatedAt, identity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

func (r *IdentityRepository) GetIdentityByID(id string) (*models.Identity, error) {
	identity := &models.Identity{}
	query := `
		SELECT id, email, password_hash, phone_number, department_id, is_active, created_at, updated_at, last_login_at
		FROM identities
		WHERE id = $1`

	err := r.db.Get(identity, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("identity %s not found", id)
		}
		return nil, fmt.Errorf("failed to get identity by ID: %w", err)
	}

	return identity, nil
}

func (r *IdentityRepository) GetIdentityByEmail(email string) (*models.Identity, error) {
	identity := &models.Identity{}
	query := `
		SELECT id, email, password_hash, phone_number, department_id, is_active, created_at, updated_at, last_login_at
		FROM identities
		WHERE email = $1`

	err := r.db.Get(identity, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}

	return identity, nil
}

func (r *IdentityRepository) GetAllIdentities(limit, offset int) ([]*models.Identity, error) {
	var identities []*models.Identity
	query := `
		SELECT id, email, password_hash, phone_number, department_id, is_active, created_at, updated_at, last_login_at
		FROM identities
		ORDER BY created_at
		LIMIT $1 OFFSET $2`

	err := r.db.Select(&identities, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get identities: %w", err)
	}

	return identities, nil
}

func (r *IdentityRepository) UpdateLastLogin(id string, at time.Time) error {
	query := `UPDATE identities SET last_login_at = $2, updated_at = $2 WHERE id = $1`

	_, err := r.db.Exec(query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// SetActive soft-deactivates or reactivates an identity. Rows are never
// physically deleted.
func (r *IdentityRepository) SetActive(id string, active bool) error {
	query := `UPDATE identities SET is_active = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Exec(query, id, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update identity active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("identity %s not found", id)
	}

	return nil
}

func (r *IdentityRepository) UpdatePassword(id, newPassword string) error {
	hash, err := r.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	query := `UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Exec(query, id, hash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("identity %s not found", id)
	}

	return nil
}

func (r *IdentityRepository) hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares in constant time via bcrypt.
func (r *IdentityRepository) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
