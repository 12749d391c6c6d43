package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionOrigin classifies where a session was opened from, based on the
// IP allow list at login time.
type SessionOrigin string

const (
	OriginInternal SessionOrigin = "internal"
	OriginExternal SessionOrigin = "external"
)

type Session struct {
	ID             string        `json:"id" db:"id"`
	IdentityID     string        `json:"identity_id" db:"identity_id"`
	TokenHash      string        `json:"-" db:"token_hash"`
	IPAddress      *string       `json:"ip_address" db:"ip_address"`
	DeviceInfo     *string       `json:"device_info" db:"device_info"`
	Origin         SessionOrigin `json:"origin" db:"origin"`
	LoginAt        time.Time     `json:"login_at" db:"login_at"`
	LastActivityAt time.Time     `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time     `json:"expires_at" db:"expires_at"`
	LoggedOutAt    *time.Time    `json:"logged_out_at" db:"logged_out_at"`
	IsActive       bool          `json:"is_active" db:"is_active"`
}

// IdentityClaims is the short-lived assertion minted for downstream clinic
// services after a session cookie has been validated.
type IdentityClaims struct {
	jwt.RegisteredClaims
	IdentityID string   `json:"identity_id"`
	Email      string   `json:"email"`
	Roles      []string `json:"roles"`
}
