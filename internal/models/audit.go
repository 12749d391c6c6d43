package models

import "time"

// Audit actions emitted by the identity core.
const (
	AuditLoginSuccess      = "auth.login.success"
	AuditLoginFailure      = "auth.login.failure"
	AuditLogout            = "auth.logout"
	AuditSessionExpired    = "auth.session.expired"
	AuditSessionRevoked    = "auth.session.revoked"
	AuditTwoFactorSetup    = "auth.2fa.setup"
	AuditTwoFactorVerified = "auth.2fa.verified"
	AuditTwoFactorFailed   = "auth.2fa.failed"
	AuditTwoFactorDisabled = "auth.2fa.disabled"
	AuditAccessDenied      = "auth.access.denied"
)

// AuditEvent is the fire-and-forget payload handed to the audit emitter.
// Storage of the log itself belongs to the audit service, not this core.
type AuditEvent struct {
	ID         string    `json:"id"`
	IdentityID *string   `json:"identity_id"`
	Action     string    `json:"action"`
	IPAddress  *string   `json:"ip_address"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
