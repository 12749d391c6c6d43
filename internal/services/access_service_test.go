package services

import (
	"clinic-auth/internal/models"
	"context"
	"testing"
)

// stubPermissionService returns canned merge results.
type stubPermissionService struct {
	perms []models.EffectivePermission
	roles []*models.Role
}

func (s *stubPermissionService) EffectivePermissions(ctx context.Context, identityID string) ([]models.EffectivePermission, error) {
	return s.perms, nil
}

func (s *stubPermissionService) AccessibleMenus(ctx context.Context, identityID string) ([]string, error) {
	return nil, nil
}

func (s *stubPermissionService) RolesOf(ctx context.Context, identityID string) ([]*models.Role, error) {
	return s.roles, nil
}

func (s *stubPermissionService) InvalidateRBACCache(ctx context.Context) {}

func TestAllowedChecksCapabilityFlags(t *testing.T) {
	perms := &stubPermissionService{
		perms: []models.EffectivePermission{
			{Code: "patient.records", CanRead: true, CanExport: false, DataScope: models.ScopeDepartment},
		},
	}
	emitter := &recordingEmitter{}
	svc := NewAccessService(perms, emitter)
	ctx := context.Background()

	if ok, err := svc.Allowed(ctx, "staff-1", "patient.records", CapRead); err != nil || !ok {
		t.Fatalf("expected read allowed, got ok=%v err=%v", ok, err)
	}
	if ok, err := svc.Allowed(ctx, "staff-1", "patient.records", CapExport); err != nil || ok {
		t.Fatalf("expected export denied, got ok=%v err=%v", ok, err)
	}
	// Unknown permission denies, never errors.
	if ok, err := svc.Allowed(ctx, "staff-1", "billing.invoices", CapRead); err != nil || ok {
		t.Fatalf("expected unheld permission denied, got ok=%v err=%v", ok, err)
	}

	denied := 0
	for _, action := range emitter.actions() {
		if action == models.AuditAccessDenied {
			denied++
		}
	}
	if denied != 2 {
		t.Fatalf("expected 2 denial audit events, got %d", denied)
	}
}

func TestScopeForOnlyForHeldPermissions(t *testing.T) {
	perms := &stubPermissionService{
		perms: []models.EffectivePermission{
			{Code: "patient.records", CanRead: true, DataScope: models.ScopeAll},
		},
	}
	svc := NewAccessService(perms, &recordingEmitter{})
	ctx := context.Background()

	scope, held, err := svc.ScopeFor(ctx, "staff-1", "patient.records")
	if err != nil || !held || scope != models.ScopeAll {
		t.Fatalf("expected (all, true), got (%s, %v, %v)", scope, held, err)
	}

	_, held, err = svc.ScopeFor(ctx, "staff-1", "billing.invoices")
	if err != nil || held {
		t.Fatalf("unheld permission must report held=false, got held=%v err=%v", held, err)
	}
}

func TestHasRoleAndLevel(t *testing.T) {
	perms := &stubPermissionService{
		roles: []*models.Role{
			{ID: 1, Code: "counselor", Level: 30},
			{ID: 2, Code: "director", Level: 90},
		},
	}
	svc := NewAccessService(perms, &recordingEmitter{})
	ctx := context.Background()

	if ok, _ := svc.HasRole(ctx, "staff-1", "counselor"); !ok {
		t.Fatal("expected counselor role to be held")
	}
	if ok, _ := svc.HasRole(ctx, "staff-1", "admin"); ok {
		t.Fatal("admin role should not be held")
	}
	if ok, _ := svc.HasRoleLevel(ctx, "staff-1", 80); !ok {
		t.Fatal("expected level 90 role to satisfy level 80")
	}
	if ok, _ := svc.HasRoleLevel(ctx, "staff-1", 95); ok {
		t.Fatal("no role reaches level 95")
	}
}
