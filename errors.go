package authport

import "errors"

var (
	// ErrInvalidCredentials is returned for every credential failure a caller
	// is not allowed to distinguish: unknown user, non-credentials account,
	// password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountTemporarilyBlocked is returned when the failed-login counter
	// for a username reached the configured maximum.
	ErrAccountTemporarilyBlocked = errors.New("account temporarily blocked for too many failed logins")
	// ErrAccountBlockedForInactivity is returned when the account exceeded the
	// configured unused-credentials window.
	ErrAccountBlockedForInactivity = errors.New("account blocked for inactivity")
	// ErrTokenInvalid is the single verification failure exposed to callers.
	// Expired, immature, malformed, revoked and rotated-away tokens all
	// collapse to it.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenNotFound is returned when a token operation targets a jti with
	// no persisted record.
	ErrTokenNotFound = errors.New("token not found")
	// ErrNotFound is the store-level sentinel for an absent record. Backends
	// must return it (possibly wrapped) instead of driver-specific errors.
	ErrNotFound = errors.New("record not found")
	// ErrPasswordConfirmationMismatch is returned when new password and
	// confirmation differ.
	ErrPasswordConfirmationMismatch = errors.New("new password does not match confirmation")
	// ErrPasswordPolicy is returned when the new password fails the strength
	// rules. The wrapped message carries the reason.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidVerificationCode is returned when a submitted TOTP code is
	// missing, malformed or wrong.
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	// ErrTOTPDisabled is returned when a TOTP operation is requested while the
	// second factor is disabled in configuration.
	ErrTOTPDisabled = errors.New("totp second factor disabled")
	// ErrEmailAlreadyRegistered is returned when an external-account link
	// collides with a local credentials account. This is a hard conflict,
	// never a merge.
	ErrEmailAlreadyRegistered = errors.New("email already registered to a local account")
	// ErrStoreInconsistent is returned by bootstrap when the store is neither
	// empty nor completely initialized. The process must not start on it.
	ErrStoreInconsistent = errors.New("store inconsistent at bootstrap")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnauthorized is returned by the HTTP middleware when no usable
	// bearer token is present.
	ErrUnauthorized = errors.New("unauthorized")
)
