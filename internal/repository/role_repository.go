package repository

import (
	"clinic-auth/internal/models"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RoleRepository handles role, permission, grant, assignment and menu rows.
type RoleRepository interface {
	// Role CRUD operations
	CreateRole(role *models.Role) error
	GetRoleByID(id int) (*models.Role, error)
	GetRoleByCode(code string) (*models.Role, error)
	GetRoles(limit, offset int) ([]*models.Role, error)
	UpdateRole(role *models.Role) error
	DeleteRole(id int) error

	// Permission operations
	CreatePermission(permission *models.Permission) error
	GetPermissionByID(id int) (*models.Permission, error)
	GetPermissionByCode(code string) (*models.Permission, error)
	GetPermissions(category string, limit, offset int) ([]*models.Permission, error)
	DeletePermission(id int) error

	// Grant operations
	GrantPermissionToRole(roleID, permissionID int, scope models.DataScope) error
	RevokePermissionFromRole(roleID, permissionID int) error
	GetRolePermissions(roleID int) ([]*models.Permission, error)
	GetGrantsForRoles(roleIDs []int) ([]models.GrantedPermission, error)

	// Assignment operations
	AssignRoleToIdentity(identityID string, roleID int, assignedBy *string, primary bool) error
	RemoveRoleFromIdentity(identityID string, roleID int) error
	GetIdentityRoles(identityID string) ([]*models.Role, error)
	GetIdentityAssignments(identityID string) ([]*models.RoleAssignment, error)

	// Menu operations
	SetRoleMenu(roleID int, menuCode string, accessible bool) error
	GetMenusForRoles(roleIDs []int) ([]string, error)
	GetRoleMenus(roleID int) ([]*models.RoleMenu, error)
}

type roleRepository struct {
	db *sqlx.DB
}

func NewRoleRepository(db *sqlx.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) CreateRole(role *models.Role) error {
	query := `
		INSERT INTO roles (code, display_name, level, is_system)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(query, role.Code, role.DisplayName, role.Level, role.IsSystem).
		Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

func (r *roleRepository) GetRoleByID(id int) (*models.Role, error) {
	role := &models.Role{}
	query := `
		SELECT id, code, display_name, level, is_system, created_at
		FROM roles
		WHERE id = $1`

	err := r.db.Get(role, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("role with ID %d not found", id)
		}
		return nil, fmt.Errorf("failed to get role by ID: %w", err)
	}

	return role, nil
}

func (r *roleRepository) GetRoleByCode(code string) (*models.Role, error) {
	role := &models.Role{}
	query := `
		SELECT id, code, display_name, level, is_system, created_at
		FROM roles
		WHERE code = $1`

	err := r.db.Get(role, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("role with code '%s' not found", code)
		}
		return nil, fmt.Errorf("failed to get role by code: %w", err)
	}

	return role, nil
}

func (r *roleRepository) GetRoles(limit, offset int) ([]*models.Role, error) {
	var roles []*models.Role
	query := `
		SELECT id, code, display_name, level, is_system, created_at
		FROM roles
		ORDER BY level DESC, code
		LIMIT $1 OFFSET $2`

	err := r.db.Select(&roles, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}

	return roles, nil
}

func (r *roleRepository) UpdateRole(role *models.Role) error {
	query := `
		UPDATE roles
		SET display_name = $2, level = $3
		WHERE id = $1 AND NOT is_system`

	result, err := r.db.Exec(query, role.ID, role.DisplayName, role.Level)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("role with ID %d not found or is a system role", role.ID)
	}

	return nil
}

func (r *roleRepository) DeleteRole(id int) error {
	query := `DELETE FROM roles WHERE id = $1 AND NOT is_system`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("role with ID %d not found or is a system role", id)
	}

	return nil
}

func (r *roleRepository) CreatePermission(permission *models.Permission) error {
	query := `
		INSERT INTO permissions (code, category, can_create, can_read, can_update, can_delete, can_export, can_bulk_edit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRow(query, permission.Code, permission.Category,
		permission.CanCreate, permission.CanRead, permission.CanUpdate, permission.CanDelete,
		permission.CanExport, permission.CanBulkEdit).
		Scan(&permission.ID, &permission.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}

	return nil
}

func (r *roleRepository) GetPermissionByID(id int) (*models.Permission, error) {
	permission := &models.Permission{}
	query := `
		SELECT id, code, category, can_create, can_read, can_update, can_delete, can_export, can_bulk_edit, created_at
		FROM permissions
		WHERE id = $1`

	err := r.db.Get(permission, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("permission with ID %d not found", id)
		}
		return nil, fmt.Errorf("failed to get permission by ID: %w", err)
	}

	return permission, nil
}

func (r *roleRepository) GetPermissionByCode(code string) (*models.Permission, error) {
	permission := &models.Permission{}
	query := `
		SELECT id, code, category, can_create, can_read, can_update, can_delete, can_export, can_bulk_edit, created_at
		FROM permissions
		WHERE code = $1`

	err := r.db.Get(permission, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("permission with code '%s' not found", code)
		}
		return nil, fmt.Errorf("failed to get permission by code: %w", err)
	}

	return permission, nil
}

func (r *roleRepository) GetPermissions(category string, limit, offset int) ([]*models.Permission, error) {
	var permissions []*models.Permission
	var query string
	var args []interface{}

	baseQuery := `
		SELECT id, code, category, can_create, can_read, can_update, can_delete, can_export, can_bulk_edit, created_at
		FROM permissions`

	if category != "" {
		query = baseQuery + ` WHERE category = $1 ORDER BY code LIMIT $2 OFFSET $3`
		args = []interface{}{category, limit, offset}
	} else {
		query = baseQuery + ` ORDER BY category, code LIMIT $1 OFFSET $2`
		args = []interface{}{limit, offset}
	}

	err := r.db.Select(&permissions, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions: %w", err)
	}

	return permissions, nil
}

func (r *roleRepository) DeletePermission(id int) error {
	query := `DELETE FROM permissions WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("permission with ID %d not found", id)
	}

	return nil
}

// GrantPermissionToRole upserts the single grant per (role, permission) pair.
func (r *roleRepository) GrantPermissionToRole(roleID, permissionID int, scope models.DataScope) error {
	query := `
		INSERT INTO role_permission_grants (role_id, permission_id, data_scope)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO UPDATE SET data_scope = EXCLUDED.data_scope`

	_, err := r.db.Exec(query, roleID, permissionID, scope)
	if err != nil {
		return fmt.Errorf("failed to grant permission to role: %w", err)
	}

	return nil
}

func (r *roleRepository) RevokePermissionFromRole(roleID, permissionID int) error {
	query := `DELETE FROM role_permission_grants WHERE role_id = $1 AND permission_id = $2`

	result, err := r.db.Exec(query, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke permission from role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("permission not granted to role")
	}

	return nil
}

func (r *roleRepository) GetRolePermissions(roleID int) ([]*models.Permission, error) {
	var permissions []*models.Permission
	query := `
		SELECT p.id, p.code, p.category, p.can_create, p.can_read, p.can_update, p.can_delete, p.can_export, p.can_bulk_edit, p.created_at
		FROM permissions p
		INNER JOIN role_permission_grants g ON p.id = g.permission_id
		WHERE g.role_id = $1
		ORDER BY p.category, p.code`

	err := r.db.Select(&permissions, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}

	return permissions, nil
}

// GetGrantsForRoles loads every grant joined with its permission for the
// given roles, the raw input of the effective-permission merge.
func (r *roleRepository) GetGrantsForRoles(roleIDs []int) ([]models.GrantedPermission, error) {
	if len(roleIDs) == 0 {
		return []models.GrantedPermission{}, nil
	}

	var grants []models.GrantedPermission
	query := `
		SELECT g.role_id, p.code, p.category, p.can_create, p.can_read, p.can_update, p.can_delete, p.can_export, p.can_bulk_edit, g.data_scope
		FROM role_permission_grants g
		INNER JOIN permissions p ON p.id = g.permission_id
		WHERE g.role_id = ANY($1)
		ORDER BY p.code`

	err := r.db.Select(&grants, query, pq.Array(roleIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get grants for roles: %w", err)
	}

	return grants, nil
}

// AssignRoleToIdentity upserts the assignment. When primary is requested the
// previous primary row is cleared in the same transaction so at most one
// primary assignment exists per identity.
func (r *roleRepository) AssignRoleToIdentity(identityID string, roleID int, assignedBy *string, primary bool) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin assignment transaction: %w", err)
	}
	defer tx.Rollback()

	if primary {
		if _, err := tx.Exec(`UPDATE role_assignments SET is_primary = FALSE WHERE identity_id = $1`, identityID); err != nil {
			return fmt.Errorf("failed to clear primary assignment: %w", err)
		}
	}

	query := `
		INSERT INTO role_assignments (identity_id, role_id, is_primary, assigned_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id, role_id) DO UPDATE SET
			is_primary = EXCLUDED.is_primary,
			assigned_by = EXCLUDED.assigned_by,
			assigned_at = NOW()`

	if _, err := tx.Exec(query, identityID, roleID, primary, assignedBy); err != nil {
		return fmt.Errorf("failed to assign role to identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}

	return nil
}

func (r *roleRepository) RemoveRoleFromIdentity(identityID string, roleID int) error {
	query := `DELETE FROM role_assignments WHERE identity_id = $1 AND role_id = $2`

	result, err := r.db.Exec(query, identityID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove role from identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("role not assigned to identity")
	}

	return nil
}

func (r *roleRepository) GetIdentityRoles(identityID string) ([]*models.Role, error) {
	var roles []*models.Role
	query := `
		SELECT r.id, r.code, r.display_name, r.level, r.is_system, r.created_at
		FROM roles r
		INNER JOIN role_assignments a ON r.id = a.role_id
		WHERE a.identity_id = $1
		ORDER BY a.is_primary DESC, r.level DESC, r.code`

	err := r.db.Select(&roles, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity roles: %w", err)
	}

	return roles, nil
}

func (r *roleRepository) GetIdentityAssignments(identityID string) ([]*models.RoleAssignment, error) {
	var assignments []*models.RoleAssignment
	query := `
		SELECT id, identity_id, role_id, is_primary, assigned_by, assigned_at
		FROM role_assignments
		WHERE identity_id = $1
		ORDER BY is_primary DESC, assigned_at`

	err := r.db.Select(&assignments, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity assignments: %w", err)
	}

	return assignments, nil
}

func (r *roleRepository) SetRoleMenu(roleID int, menuCode string, accessible bool) error {
	query := `
		INSERT INTO role_menus (role_id, menu_code, accessible)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, menu_code) DO UPDATE SET accessible = EXCLUDED.accessible`

	_, err := r.db.Exec(query, roleID, menuCode, accessible)
	if err != nil {
		return fmt.Errorf("failed to set role menu: %w", err)
	}

	return nil
}

// GetMenusForRoles unions menus flagged accessible for at least one role.
func (r *roleRepository) GetMenusForRoles(roleIDs []int) ([]string, error) {
	if len(roleIDs) == 0 {
		return []string{}, nil
	}

	var menus []string
	query := `
		SELECT DISTINCT menu_code
		FROM role_menus
		WHERE role_id = ANY($1) AND accessible
		ORDER BY menu_code`

	err := r.db.Select(&menus, query, pq.Array(roleIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get menus for roles: %w", err)
	}

	return menus, nil
}

func (r *roleRepository) GetRoleMenus(roleID int) ([]*models.RoleMenu, error) {
	var menus []*models.RoleMenu
	query := `
		SELECT id, role_id, menu_code, accessible
		FROM role_menus
		WHERE role_id = $1
		ORDER BY menu_code`

	err := r.db.Select(&menus, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role menus: %w", err)
	}

	return menus, nil
}
