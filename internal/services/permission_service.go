package services

import (
	"clinic-auth/internal/models"
	"clinic-auth/internal/repository"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// IPermissionService resolves the merged permission view of an identity.
type IPermissionService interface {
	EffectivePermissions(ctx context.Context, identityID string) ([]models.EffectivePermission, error)
	AccessibleMenus(ctx context.Context, identityID string) ([]string, error)
	RolesOf(ctx context.Context, identityID string) ([]*models.Role, error)
	InvalidateRBACCache(ctx context.Context)
}

const (
	rbacVersionKey   = "rbac:version"
	permCacheTTL     = time.Minute
	permCacheTimeout = 200 * time.Millisecond
)

// PermissionService is side-effect free over role data; results may be
// recomputed per request or served from a short-lived Redis cache keyed by
// an RBAC version counter that mutations bump.
type PermissionService struct {
	roleRepo    repository.RoleRepository
	redisClient *redis.Client
}

func NewPermissionService(roleRepo repository.RoleRepository, redisClient *redis.Client) *PermissionService {
	return &PermissionService{
		roleRepo:    roleRepo,
		redisClient: redisClient,
	}
}

// MergeGrants folds every (role, permission) grant of an identity into one
// EffectivePermission per permission code: capability flags are OR-ed across
// contributing roles and the widest data scope wins (all > department > own).
// The result is independent of input order.
func MergeGrants(grants []models.GrantedPermission) []models.EffectivePermission {
	merged := make(map[string]*models.EffectivePermission)

	for _, g := range grants {
		eff, ok := merged[g.Code]
		if !ok {
			merged[g.Code] = &models.EffectivePermission{
				Code:        g.Code,
				Category:    g.Category,
				CanCreate:   g.CanCreate,
				CanRead:     g.CanRead,
				CanUpdate:   g.CanUpdate,
				CanDelete:   g.CanDelete,
				CanExport:   g.CanExport,
				CanBulkEdit: g.CanBulkEdit,
				DataScope:   g.DataScope,
			}
			continue
		}
		eff.CanCreate = eff.CanCreate || g.CanCreate
		eff.CanRead = eff.CanRead || g.CanRead
		eff.CanUpdate = eff.CanUpdate || g.CanUpdate
		eff.CanDelete = eff.CanDelete || g.CanDelete
		eff.CanExport = eff.CanExport || g.CanExport
		eff.CanBulkEdit = eff.CanBulkEdit || g.CanBulkEdit
		eff.DataScope = eff.DataScope.Wider(g.DataScope)
	}

	out := make([]models.EffectivePermission, 0, len(merged))
	for _, eff := range merged {
		out = append(out, *eff)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *PermissionService) EffectivePermissions(ctx context.Context, identityID string) ([]models.EffectivePermission, error) {
	if cached := s.cachedPermissions(ctx, identityID); cached != nil {
		return cached, nil
	}

	roles, err := s.roleRepo.GetIdentityRoles(identityID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if len(roles) == 0 {
		return []models.EffectivePermission{}, nil
	}

	roleIDs := make([]int, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}

	grants, err := s.roleRepo.GetGrantsForRoles(roleIDs)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	perms := MergeGrants(grants)
	s.cachePermissions(ctx, identityID, perms)
	return perms, nil
}

// AccessibleMenus is the boolean union of menus flagged accessible for at
// least one held role; no ranking applies.
func (s *PermissionService) AccessibleMenus(ctx context.Context, identityID string) ([]string, error) {
	roles, err := s.roleRepo.GetIdentityRoles(identityID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if len(roles) == 0 {
		return []string{}, nil
	}

	roleIDs := make([]int, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}

	menus, err := s.roleRepo.GetMenusForRoles(roleIDs)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	return menus, nil
}

func (s *PermissionService) RolesOf(ctx context.Context, identityID string) ([]*models.Role, error) {
	roles, err := s.roleRepo.GetIdentityRoles(identityID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	return roles, nil
}

// InvalidateRBACCache bumps the version counter so every cached merge is
// orphaned. Called on role, grant and assignment mutations.
func (s *PermissionService) InvalidateRBACCache(ctx context.Context) {
	if s.redisClient == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, permCacheTimeout)
	defer cancel()
	if err := s.redisClient.Incr(cctx, rbacVersionKey).Err(); err != nil {
		log.Printf("failed to bump rbac cache version: %v", err)
	}
}

func (s *PermissionService) cachedPermissions(ctx context.Context, identityID string) []models.EffectivePermission {
	key, ok := s.cacheKey(ctx, identityID)
	if !ok {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, permCacheTimeout)
	defer cancel()

	raw, err := s.redisClient.Get(cctx, key).Bytes()
	if err != nil {
		return nil
	}
	var perms []models.EffectivePermission
	if err := json.Unmarshal(raw, &perms); err != nil {
		log.Printf("failed to decode cached permissions: %v", err)
		return nil
	}
	return perms
}

func (s *PermissionService) cachePermissions(ctx context.Context, identityID string, perms []models.EffectivePermission) {
	key, ok := s.cacheKey(ctx, identityID)
	if !ok {
		return
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, permCacheTimeout)
	defer cancel()
	s.redisClient.Set(cctx, key, raw, permCacheTTL)
}

func (s *PermissionService) cacheKey(ctx context.Context, identityID string) (string, bool) {
	if s.redisClient == nil {
		return "", false
	}
	cctx, cancel := context.WithTimeout(ctx, permCacheTimeout)
	defer cancel()

	version, err := s.redisClient.Get(cctx, rbacVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return fmt.Sprintf("perms:v%d:%s", version, identityID), true
}
