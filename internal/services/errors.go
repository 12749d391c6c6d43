package services

import "errors"

// Error taxonomy recovered at the HTTP boundary into the uniform
// {success:false, error:{code,message}} envelope.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")

	ErrTwoFactorRequired       = errors.New("two-factor verification required")
	ErrTwoFactorNotProvisioned = errors.New("two-factor not provisioned")
	ErrCodeExpired             = errors.New("verification code expired")
	ErrCodeMismatch            = errors.New("verification code mismatch")
	ErrUnsupportedMethod       = errors.New("unsupported two-factor method")
	ErrPhoneRequired           = errors.New("phone number required for sms method")
	ErrTooManyAttempts         = errors.New("too many verification attempts")

	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")

	ErrPermissionDenied = errors.New("permission denied")
	ErrSystemRole       = errors.New("system role cannot be modified")

	ErrStoreUnavailable = errors.New("store unavailable")
)
