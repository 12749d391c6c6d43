package models

import "time"

type TwoFactorMethod string

const (
	TwoFactorTOTP TwoFactorMethod = "totp"
	TwoFactorSMS  TwoFactorMethod = "sms"
)

// TwoFactorConfig is the one-per-identity step-up configuration. A freshly
// provisioned TOTP secret stays disabled until the first code verifies.
type TwoFactorConfig struct {
	IdentityID string          `json:"identity_id" db:"identity_id"`
	Method     TwoFactorMethod `json:"method" db:"method"`
	TOTPSecret *string         `json:"-" db:"totp_secret"`
	Enabled    bool            `json:"is_enabled" db:"enabled"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// TOTPProvisioning is returned once at setup: the otpauth URI renders as a
// scannable code, the raw secret supports manual entry.
type TOTPProvisioning struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// OneTimeCode is the transient SMS code value object. It lives in Redis with
// its own TTL and is never written into the TOTP secret column.
type OneTimeCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
