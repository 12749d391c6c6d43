package repository

import (
	"clinic-auth/internal/models"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type IPAllowRepository interface {
	CreateEntry(entry *models.IPAllowEntry) error
	GetEntryByID(id int) (*models.IPAllowEntry, error)
	GetEntries(activeOnly bool) ([]*models.IPAllowEntry, error)
	UpdateEntry(entry *models.IPAllowEntry) error
	DeleteEntry(id int) error
}

type ipAllowRepository struct {
	db *sqlx.DB
}

func NewIPAllowRepository(db *sqlx.DB) IPAllowRepository {
	return &ipAllowRepository{db: db}
}

func (r *ipAllowRepository) CreateEntry(entry *models.IPAllowEntry) error {
	query := `
		INSERT INTO ip_allow_entries (pattern, description, is_active, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(query, entry.Pattern, entry.Description, entry.IsActive, entry.CreatedBy).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create IP allow entry: %w", err)
	}

	return nil
}

func (r *ipAllowRepository) GetEntryByID(id int) (*models.IPAllowEntry, error) {
	entry := &models.IPAllowEntry{}
	query := `
		SELECT id, pattern, description, is_active, created_by, created_at
		FROM ip_allow_entries
		WHERE id = $1`

	err := r.db.Get(entry, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("IP allow entry %d not found", id)
		}
		return nil, fmt.Errorf("failed to get IP allow entry: %w", err)
	}

	return entry, nil
}

func (r *ipAllowRepository) GetEntries(activeOnly bool) ([]*models.IPAllowEntry, error) {
	var entries []*models.IPAllowEntry
	var query string

	if activeOnly {
		query = `
			SELECT id, pattern, description, is_active, created_by, created_at
			FROM ip_allow_entries
			WHERE is_active
			ORDER BY id`
	} else {
		query = `
			SELECT id, pattern, description, is_active, created_by, created_at
			FROM ip_allow_entries
			ORDER BY id`
	}

	err := r.db.Select(&entries, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get IP allow entries: %w", err)
	}

	return entries, nil
}

func (r *ipAllowRepository) UpdateEntry(entry *models.IPAllowEntry) error {
	query := `
		UPDATE ip_allow_entries
		SET pattern = $2, description = $3, is_active = $4
		WHERE id = $1`

	result, err := r.db.Exec(query, entry.ID, entry.Pattern, entry.Description, entry.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update IP allow entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("IP allow entry %d not found", entry.ID)
	}

	return nil
}

func (r *ipAllowRepository) DeleteEntry(id int) error {
	query := `DELETE FROM ip_allow_entries WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete IP allow entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("IP allow entry %d not found", id)
	}

	return nil
}
