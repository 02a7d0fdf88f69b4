package authport

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
)

// VerifyBlockedUsername reports whether login attempts for the username
// must be refused because of accumulated failures. With
// MaxLoginAttempts <= 0 failures are still counted but never block.
func (e *Engine) VerifyBlockedUsername(ctx context.Context, username string) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrEngineNotReady
	}
	if e.config.Policy.MaxLoginAttempts <= 0 {
		return false, nil
	}

	count, err := e.store.FailedLoginCount(ctx, username)
	if err != nil {
		return false, err
	}
	return count >= e.config.Policy.MaxLoginAttempts, nil
}

// VerifyBlockedUser reports whether the account is blocked for
// inactivity. Users who never logged in are exempt, otherwise the last
// login must fall within DisableUnusedCredentialsAfter days. A zero or
// negative setting disables the check.
func (e *Engine) VerifyBlockedUser(user *User) bool {
	if e == nil || user == nil {
		return false
	}
	days := e.config.Policy.DisableUnusedCredentialsAfter
	if days <= 0 {
		return false
	}
	if user.LastLogin.IsZero() {
		return false
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	return user.LastLogin.Before(cutoff)
}

// passwordExpired reports whether MaxPasswordValidity days have elapsed
// since the last password change. A zero change stamp counts from
// FirstLogin; with neither stamp the password cannot expire.
func (e *Engine) passwordExpired(user *User) bool {
	days := e.config.Policy.MaxPasswordValidity
	if days <= 0 {
		return false
	}
	since := user.LastPasswordChange
	if since.IsZero() {
		since = user.FirstLogin
	}
	if since.IsZero() {
		return false
	}
	return since.Before(time.Now().AddDate(0, 0, -days))
}

// VerifyPasswordStrength checks a candidate password against the
// policy: different from the old one, at least 8 characters, and at
// least one lowercase, uppercase, digit and symbol each. The reason
// string names the first failed rule and is safe to show to users.
func (e *Engine) VerifyPasswordStrength(newPwd, oldPwd string) (bool, string) {
	if oldPwd != "" && newPwd == oldPwd {
		return false, "new password must differ from the current one"
	}
	if len(newPwd) < 8 {
		return false, "password must be at least 8 characters"
	}

	var lower, upper, digit, symbol bool
	for _, r := range newPwd {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	switch {
	case !lower:
		return false, "password must contain a lowercase letter"
	case !upper:
		return false, "password must contain an uppercase letter"
	case !digit:
		return false, "password must contain a digit"
	case !symbol:
		return false, "password must contain a symbol"
	}

	return true, ""
}

// ChangePassword replaces the user's credential and cascades the
// invalidation: every outstanding token record is soft-invalidated one
// by one and the stable identity is rotated afterwards, so both the
// per-record ownership check and identity resolution reject old tokens.
//
// currentPwd may be empty for administrative resets; when present it
// must verify against the stored digest. The strength policy applies
// only when EnforcePasswordStrength is set; the confirmation check
// always applies.
func (e *Engine) ChangePassword(ctx context.Context, user *User, currentPwd, newPwd, confirmPwd string) error {
	if e == nil || e.store == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	if user == nil {
		return ErrUnauthorized
	}

	if newPwd == "" || newPwd != confirmPwd {
		e.metricInc(MetricPasswordChangeFailure)
		return ErrPasswordConfirmationMismatch
	}

	if currentPwd != "" {
		ok, err := e.hasher.Verify(currentPwd, user.PasswordHash)
		if err != nil || !ok {
			e.metricInc(MetricPasswordChangeFailure)
			e.emitAudit(ctx, auditEventPasswordChange, false, user.ID, "", ErrInvalidCredentials, nil)
			return ErrInvalidCredentials
		}
	}

	if e.config.Policy.EnforcePasswordStrength {
		ok, reason := e.VerifyPasswordStrength(newPwd, currentPwd)
		if ok && currentPwd == "" {
			// No cleartext to compare against on admin resets; fall back
			// to the stored digest for the reuse rule.
			if same, verifyErr := e.hasher.Verify(newPwd, user.PasswordHash); verifyErr == nil && same {
				ok, reason = false, "new password must differ from the current one"
			}
		}
		if !ok {
			e.metricInc(MetricPasswordChangeFailure)
			return fmt.Errorf("%w: %s", ErrPasswordPolicy, reason)
		}
	}

	digest, err := e.hasher.Hash(newPwd)
	if err != nil {
		return err
	}
	user.PasswordHash = digest
	user.LastPasswordChange = time.Now()
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return err
	}

	// Soft-invalidate each outstanding record before rotating, while the
	// records are still listable under the old identity.
	records, err := e.store.TokensForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	for i := range records {
		if clearErr := e.store.ClearTokenOwner(ctx, records[i].JTI); clearErr != nil && !errors.Is(clearErr, ErrNotFound) {
			return clearErr
		}
		e.metricInc(MetricTokenInvalidated)
	}

	if err := e.InvalidateAllTokens(ctx, user); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, user.ID, "", nil, nil)

	return nil
}

// RegisterFailedLogin bumps the failure counter for the username and
// returns the new count.
func (e *Engine) RegisterFailedLogin(ctx context.Context, username string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	return e.store.RegisterFailedLogin(ctx, username)
}

// FailedLoginCount returns the current failure counter for the
// username without modifying it.
func (e *Engine) FailedLoginCount(ctx context.Context, username string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	return e.store.FailedLoginCount(ctx, username)
}
