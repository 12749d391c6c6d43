package services

import (
	"clinic-auth/internal/models"
	"clinic-auth/internal/repository"
	"context"
	"fmt"
)

// RoleService provides business logic for role and permission administration.
// Every mutation invalidates the merged-permission cache.
type RoleService struct {
	roleRepo          repository.RoleRepository
	permissionService IPermissionService
}

func NewRoleService(roleRepo repository.RoleRepository, permissionService IPermissionService) *RoleService {
	return &RoleService{
		roleRepo:          roleRepo,
		permissionService: permissionService,
	}
}

// CreateRole creates a new custom role. Roles created through the API are
// never system roles; those ship with the schema.
func (s *RoleService) CreateRole(ctx context.Context, code, displayName string, level int) (*models.Role, error) {
	if code == "" {
		return nil, fmt.Errorf("role code cannot be empty")
	}
	if displayName == "" {
		return nil, fmt.Errorf("role display name cannot be empty")
	}

	existing, err := s.roleRepo.GetRoleByCode(code)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("role with code '%s' already exists", code)
	}

	role := &models.Role{
		Code:        code,
		DisplayName: displayName,
		Level:       level,
		IsSystem:    false,
	}

	if err := s.roleRepo.CreateRole(role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return role, nil
}

func (s *RoleService) GetRole(ctx context.Context, id int) (*models.Role, error) {
	return s.roleRepo.GetRoleByID(id)
}

func (s *RoleService) GetRoleByCode(ctx context.Context, code string) (*models.Role, error) {
	return s.roleRepo.GetRoleByCode(code)
}

func (s *RoleService) GetAllRoles(ctx context.Context, limit, offset int) ([]*models.Role, error) {
	return s.roleRepo.GetRoles(limit, offset)
}

// UpdateRole renames or re-levels a role. System roles are immutable; the
// repository refuses the update and we surface that as ErrSystemRole.
func (s *RoleService) UpdateRole(ctx context.Context, role *models.Role) error {
	if role.ID <= 0 {
		return fmt.Errorf("invalid role ID")
	}
	if role.DisplayName == "" {
		return fmt.Errorf("role display name cannot be empty")
	}

	existing, err := s.roleRepo.GetRoleByID(role.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRole
	}

	if err := s.roleRepo.UpdateRole(role); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

func (s *RoleService) DeleteRole(ctx context.Context, id int) error {
	existing, err := s.roleRepo.GetRoleByID(id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRole
	}

	if err := s.roleRepo.DeleteRole(id); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

func (s *RoleService) CreatePermission(ctx context.Context, permission *models.Permission) (*models.Permission, error) {
	if permission.Code == "" {
		return nil, fmt.Errorf("permission code cannot be empty")
	}
	if permission.Category == "" {
		return nil, fmt.Errorf("permission category cannot be empty")
	}

	existing, err := s.roleRepo.GetPermissionByCode(permission.Code)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("permission with code '%s' already exists", permission.Code)
	}

	if err := s.roleRepo.CreatePermission(permission); err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	return permission, nil
}

func (s *RoleService) GetPermission(ctx context.Context, id int) (*models.Permission, error) {
	return s.roleRepo.GetPermissionByID(id)
}

func (s *RoleService) GetAllPermissions(ctx context.Context, category string, limit, offset int) ([]*models.Permission, error) {
	return s.roleRepo.GetPermissions(category, limit, offset)
}

func (s *RoleService) DeletePermission(ctx context.Context, id int) error {
	if err := s.roleRepo.DeletePermission(id); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

// GrantPermissionToRole attaches a permission to a role with a data scope.
// Re-granting overwrites the scope.
func (s *RoleService) GrantPermissionToRole(ctx context.Context, roleID, permissionID int, scope models.DataScope) error {
	if !scope.Valid() {
		return fmt.Errorf("invalid data scope '%s'", scope)
	}

	if _, err := s.roleRepo.GetRoleByID(roleID); err != nil {
		return fmt.Errorf("role not found: %w", err)
	}
	if _, err := s.roleRepo.GetPermissionByID(permissionID); err != nil {
		return fmt.Errorf("permission not found: %w", err)
	}

	if err := s.roleRepo.GrantPermissionToRole(roleID, permissionID, scope); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

func (s *RoleService) RevokePermissionFromRole(ctx context.Context, roleID, permissionID int) error {
	if err := s.roleRepo.RevokePermissionFromRole(roleID, permissionID); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

func (s *RoleService) GetRolePermissions(ctx context.Context, roleID int) ([]*models.Permission, error) {
	return s.roleRepo.GetRolePermissions(roleID)
}

// AssignRoleToIdentity links a role to an identity. At most one assignment
// per identity is primary; marking a new one primary demotes the old.
func (s *RoleService) AssignRoleToIdentity(ctx context.Context, identityID string, roleID int, assignedBy *string, primary bool) error {
	if _, err := s.roleRepo.GetRoleByID(roleID); err != nil {
		return fmt.Errorf("role not found: %w", err)
	}

	if err := s.roleRepo.AssignRoleToIdentity(identityID, roleID, assignedBy, primary); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

func (s *RoleService) RemoveRoleFromIdentity(ctx context.Context, identityID string, roleID int) error {
	if err := s.roleRepo.RemoveRoleFromIdentity(identityID, roleID); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

func (s *RoleService) GetIdentityAssignments(ctx context.Context, identityID string) ([]*models.RoleAssignment, error) {
	return s.roleRepo.GetIdentityAssignments(identityID)
}

// SetRoleMenu toggles menu visibility for a role.
func (s *RoleService) SetRoleMenu(ctx context.Context, roleID int, menuCode string, accessible bool) error {
	if menuCode == "" {
		return fmt.Errorf("menu code cannot be empty")
	}

	if _, err := s.roleRepo.GetRoleByID(roleID); err != nil {
		return fmt.Errorf("role not found: %w", err)
	}

	if err := s.roleRepo.SetRoleMenu(roleID, menuCode, accessible); err != nil {
		return err
	}

	s.permissionService.InvalidateRBACCache(ctx)
	return nil
}

func (s *RoleService) GetRoleMenus(ctx context.Context, roleID int) ([]*models.RoleMenu, error) {
	return s.roleRepo.GetRoleMenus(roleID)
}
