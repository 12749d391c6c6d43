package services

import (
	"clinic-auth/internal/event"
	"clinic-auth/internal/models"
	"context"
	"time"
)

// Capability names one of the per-permission action flags.
type Capability string

const (
	CapCreate   Capability = "create"
	CapRead     Capability = "read"
	CapUpdate   Capability = "update"
	CapDelete   Capability = "delete"
	CapExport   Capability = "export"
	CapBulkEdit Capability = "bulk_edit"
)

// IAccessService answers authorization questions against an already merged
// permission set. It never widens or narrows what the merge produced.
type IAccessService interface {
	Allowed(ctx context.Context, identityID string, code string, capability Capability) (bool, error)
	ScopeFor(ctx context.Context, identityID string, code string) (models.DataScope, bool, error)
	HasRole(ctx context.Context, identityID string, roleCode string) (bool, error)
	HasRoleLevel(ctx context.Context, identityID string, minLevel int) (bool, error)
}

type AccessService struct {
	permissionService IPermissionService
	auditEmitter      event.AuditEmitter
	now               func() time.Time
}

func NewAccessService(permissionService IPermissionService, auditEmitter event.AuditEmitter) *AccessService {
	return &AccessService{
		permissionService: permissionService,
		auditEmitter:      auditEmitter,
		now:               time.Now,
	}
}

// CapabilityOf reads the named flag off an effective permission.
func CapabilityOf(perm models.EffectivePermission, capability Capability) bool {
	switch capability {
	case CapCreate:
		return perm.CanCreate
	case CapRead:
		return perm.CanRead
	case CapUpdate:
		return perm.CanUpdate
	case CapDelete:
		return perm.CanDelete
	case CapExport:
		return perm.CanExport
	case CapBulkEdit:
		return perm.CanBulkEdit
	default:
		return false
	}
}

// Allowed reports whether the identity holds the capability on the
// permission code. A permission the identity does not hold at all denies,
// it never errors. Denials are audited.
func (s *AccessService) Allowed(ctx context.Context, identityID string, code string, capability Capability) (bool, error) {
	perms, err := s.permissionService.EffectivePermissions(ctx, identityID)
	if err != nil {
		return false, err
	}

	for _, perm := range perms {
		if perm.Code != code {
			continue
		}
		if CapabilityOf(perm, capability) {
			return true, nil
		}
		break
	}

	s.emitDenied(ctx, identityID, code, capability)
	return false, nil
}

// ScopeFor exposes the data scope attached to a held permission. The second
// result is false when the identity does not hold the permission; callers
// must not treat that as any scope.
func (s *AccessService) ScopeFor(ctx context.Context, identityID string, code string) (models.DataScope, bool, error) {
	perms, err := s.permissionService.EffectivePermissions(ctx, identityID)
	if err != nil {
		return "", false, err
	}

	for _, perm := range perms {
		if perm.Code == code {
			return perm.DataScope, true, nil
		}
	}

	return "", false, nil
}

func (s *AccessService) HasRole(ctx context.Context, identityID string, roleCode string) (bool, error) {
	roles, err := s.permissionService.RolesOf(ctx, identityID)
	if err != nil {
		return false, err
	}

	for _, role := range roles {
		if role.Code == roleCode {
			return true, nil
		}
	}

	return false, nil
}

// HasRoleLevel reports whether any held role reaches the given level.
// Higher level means broader authority.
func (s *AccessService) HasRoleLevel(ctx context.Context, identityID string, minLevel int) (bool, error) {
	roles, err := s.permissionService.RolesOf(ctx, identityID)
	if err != nil {
		return false, err
	}

	for _, role := range roles {
		if role.Level >= minLevel {
			return true, nil
		}
	}

	return false, nil
}

func (s *AccessService) emitDenied(ctx context.Context, identityID, code string, capability Capability) {
	if s.auditEmitter == nil {
		return
	}
	s.auditEmitter.Emit(ctx, models.AuditEvent{
		IdentityID: &identityID,
		Action:     models.AuditAccessDenied,
		Success:    false,
		Detail:     code + ":" + string(capability),
		OccurredAt: s.now(),
	})
}
