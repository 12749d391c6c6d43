package models

import "time"

// Authentication DTOs

type LoginRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	OTPCode         string `json:"otp_code"`
	TwoFactorMethod string `json:"two_factor_method"`
}

// TwoFactorChallengeResponse is returned without a cookie when a password
// check succeeded but step-up verification is still pending.
type TwoFactorChallengeResponse struct {
	Success           bool            `json:"success"`
	RequiresTwoFactor bool            `json:"requires_two_factor"`
	TwoFactorMethod   TwoFactorMethod `json:"two_factor_method"`
}

type SessionProfileResponse struct {
	Identity    *Identity             `json:"identity"`
	Roles       []*Role               `json:"roles"`
	Permissions []EffectivePermission `json:"permissions"`
	Menus       []string              `json:"menus"`
	Session     *SessionMetadata      `json:"session"`
}

type SessionMetadata struct {
	LoginAt        time.Time     `json:"login_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	Origin         SessionOrigin `json:"origin"`
	IdleTimeout    string        `json:"idle_timeout"`
}

// Two-factor DTOs

type TwoFactorSetupRequest struct {
	Method TwoFactorMethod `json:"method" binding:"required"`
}

type TwoFactorVerifySetupRequest struct {
	Code string `json:"code" binding:"required"`
}

// Role management DTOs

type CreateRoleRequest struct {
	Code        string `json:"code" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Level       int    `json:"level"`
}

type UpdateRoleRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Level       int    `json:"level"`
}

type AssignRoleRequest struct {
	IdentityID string `json:"identity_id" binding:"required"`
	IsPrimary  bool   `json:"is_primary"`
	AssignedBy *string `json:"assigned_by"`
}

type GrantPermissionRequest struct {
	PermissionID int       `json:"permission_id" binding:"required"`
	DataScope    DataScope `json:"data_scope" binding:"required"`
}

type SetRoleMenuRequest struct {
	MenuCode   string `json:"menu_code" binding:"required"`
	Accessible bool   `json:"accessible"`
}

// Permission management DTOs

type CreatePermissionRequest struct {
	Code        string `json:"code" binding:"required"`
	Category    string `json:"category" binding:"required"`
	CanCreate   bool   `json:"can_create"`
	CanRead     bool   `json:"can_read"`
	CanUpdate   bool   `json:"can_update"`
	CanDelete   bool   `json:"can_delete"`
	CanExport   bool   `json:"can_export"`
	CanBulkEdit bool   `json:"can_bulk_edit"`
}

// IP allow-list DTOs

type CreateIPAllowRequest struct {
	Pattern     string  `json:"pattern" binding:"required"`
	Description string  `json:"description"`
	CreatedBy   *string `json:"created_by"`
}

type UpdateIPAllowRequest struct {
	Pattern     string `json:"pattern" binding:"required"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// Paginated responses

type PaginatedRolesResponse struct {
	Roles  []*Role `json:"roles"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

type PaginatedPermissionsResponse struct {
	Permissions []*Permission `json:"permissions"`
	Total       int           `json:"total"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}

type PaginatedIdentitiesResponse struct {
	Identities []*Identity `json:"identities"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}
