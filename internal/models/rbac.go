package models

import "time"

type Role struct {
	ID          int       `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Level       int       `json:"level" db:"level"`
	IsSystem    bool      `json:"is_system" db:"is_system"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Permission struct {
	ID          int       `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Category    string    `json:"category" db:"category"`
	CanCreate   bool      `json:"can_create" db:"can_create"`
	CanRead     bool      `json:"can_read" db:"can_read"`
	CanUpdate   bool      `json:"can_update" db:"can_update"`
	CanDelete   bool      `json:"can_delete" db:"can_delete"`
	CanExport   bool      `json:"can_export" db:"can_export"`
	CanBulkEdit bool      `json:"can_bulk_edit" db:"can_bulk_edit"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type RoleAssignment struct {
	ID         int       `json:"id" db:"id"`
	IdentityID string    `json:"identity_id" db:"identity_id"`
	RoleID     int       `json:"role_id" db:"role_id"`
	IsPrimary  bool      `json:"is_primary" db:"is_primary"`
	AssignedBy *string   `json:"assigned_by" db:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
}

// DataScope bounds row-level visibility of a granted permission.
type DataScope string

const (
	ScopeOwn        DataScope = "own"
	ScopeDepartment DataScope = "department"
	ScopeAll        DataScope = "all"
)

// Rank orders scopes from narrowest to widest: all > department > own.
func (s DataScope) Rank() int {
	switch s {
	case ScopeAll:
		return 3
	case ScopeDepartment:
		return 2
	case ScopeOwn:
		return 1
	default:
		return 0
	}
}

func (s DataScope) Valid() bool {
	return s.Rank() > 0
}

// Wider returns the wider of the two scopes.
func (s DataScope) Wider(other DataScope) DataScope {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

type RolePermissionGrant struct {
	ID           int       `json:"id" db:"id"`
	RoleID       int       `json:"role_id" db:"role_id"`
	PermissionID int       `json:"permission_id" db:"permission_id"`
	DataScope    DataScope `json:"data_scope" db:"data_scope"`
	GrantedAt    time.Time `json:"granted_at" db:"granted_at"`
}

// GrantedPermission is the joined row of a grant and its permission record,
// as loaded for every role an identity holds.
type GrantedPermission struct {
	RoleID      int       `json:"role_id" db:"role_id"`
	Code        string    `json:"code" db:"code"`
	Category    string    `json:"category" db:"category"`
	CanCreate   bool      `json:"can_create" db:"can_create"`
	CanRead     bool      `json:"can_read" db:"can_read"`
	CanUpdate   bool      `json:"can_update" db:"can_update"`
	CanDelete   bool      `json:"can_delete" db:"can_delete"`
	CanExport   bool      `json:"can_export" db:"can_export"`
	CanBulkEdit bool      `json:"can_bulk_edit" db:"can_bulk_edit"`
	DataScope   DataScope `json:"data_scope" db:"data_scope"`
}

// EffectivePermission is the merged view of one permission code across all
// roles an identity holds. Derived, never persisted.
type EffectivePermission struct {
	Code        string    `json:"code"`
	Category    string    `json:"category"`
	CanCreate   bool      `json:"can_create"`
	CanRead     bool      `json:"can_read"`
	CanUpdate   bool      `json:"can_update"`
	CanDelete   bool      `json:"can_delete"`
	CanExport   bool      `json:"can_export"`
	CanBulkEdit bool      `json:"can_bulk_edit"`
	DataScope   DataScope `json:"data_scope"`
}

type RoleMenu struct {
	ID         int    `json:"id" db:"id"`
	RoleID     int    `json:"role_id" db:"role_id"`
	MenuCode   string `json:"menu_code" db:"menu_code"`
	Accessible bool   `json:"accessible" db:"accessible"`
}
