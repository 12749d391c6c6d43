package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		department_id TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id SERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		level INTEGER NOT NULL DEFAULT 0,
		is_system BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id SERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		can_create BOOLEAN NOT NULL DEFAULT FALSE,
		can_read BOOLEAN NOT NULL DEFAULT FALSE,
		can_update BOOLEAN NOT NULL DEFAULT FALSE,
		can_delete BOOLEAN NOT NULL DEFAULT FALSE,
		can_export BOOLEAN NOT NULL DEFAULT FALSE,
		can_bulk_edit BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS role_assignments (
		id SERIAL PRIMARY KEY,
		identity_id TEXT NOT NULL REFERENCES identities(id),
		role_id INTEGER NOT NULL REFERENCES roles(id),
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		assigned_by TEXT,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (identity_id, role_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS role_assignments_one_primary
		ON role_assignments (identity_id) WHERE is_primary`,
	`CREATE TABLE IF NOT EXISTS role_permission_grants (
		id SERIAL PRIMARY KEY,
		role_id INTEGER NOT NULL REFERENCES roles(id),
		permission_id INTEGER NOT NULL REFERENCES permissions(id),
		data_scope TEXT NOT NULL DEFAULT 'own',
		granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (role_id, permission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS role_menus (
		id SERIAL PRIMARY KEY,
		role_id INTEGER NOT NULL REFERENCES roles(id),
		menu_code TEXT NOT NULL,
		accessible BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (role_id, menu_code)
	)`,
	`CREATE TABLE IF NOT EXISTS two_factor_configs (
		identity_id TEXT PRIMARY KEY REFERENCES identities(id),
		method TEXT NOT NULL,
		totp_secret TEXT,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL REFERENCES identities(id),
		token_hash TEXT NOT NULL UNIQUE,
		ip_address TEXT,
		device_info TEXT,
		origin TEXT NOT NULL DEFAULT 'external',
		login_at TIMESTAMPTZ NOT NULL,
		last_activity_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		logged_out_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_identity_idx ON sessions (identity_id)`,
	`CREATE TABLE IF NOT EXISTS ip_allow_entries (
		id SERIAL PRIMARY KEY,
		pattern TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the auth tables when they are missing. Statements are
// idempotent so repeated startups are safe.
func EnsureSchema(db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
