package authport

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// LoginRequest carries everything a client can submit in a single login
// attempt. NewPassword/PasswordConfirm are set only for in-band password
// changes (forced first login, expired password); TOTPCode only when the
// client is answering a second-factor challenge.
type LoginRequest struct {
	Username        string
	Password        string
	NewPassword     string
	PasswordConfirm string
	TOTPCode        string
}

// PendingAction names a step the client must complete before a usable
// token is issued.
type PendingAction string

const (
	// ActionSecondFactor asks for a TOTP code.
	ActionSecondFactor PendingAction = "second_factor"
	// ActionPasswordChangeRequired forces a password change on first login.
	ActionPasswordChangeRequired PendingAction = "password_change_required"
	// ActionPasswordExpired forces a password change after the validity window.
	ActionPasswordExpired PendingAction = "password_expired"
)

// LoginOutcome is the result of a [Engine.LoginFlow] call that passed the
// credential check. With a non-empty Actions list no token has been
// persisted and Token/JTI are empty; QRCode carries the TOTP enrollment
// SVG when a second factor is pending.
type LoginOutcome struct {
	Token   string
	JTI     string
	User    *User
	Actions []PendingAction
	QRCode  []byte
}

// LoginFlow runs the complete login sequence:
//
//  1. lockout pre-check on the username.
//  2. credential check; a failure bumps the failure counter.
//  3. inactivity check.
//  4. TOTP verification, only when a code was actually submitted.
//  5. in-band password change, when a new password was submitted.
//  6. pending-action computation.
//  7. with no actions pending: login stamps, counter reset, token
//     persisted.
//
// The lockout check runs before the credential check, so a blocked
// username fails with [ErrAccountTemporarilyBlocked] even when the
// submitted credentials are correct.
func (e *Engine) LoginFlow(ctx context.Context, req LoginRequest) (*LoginOutcome, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	blocked, err := e.VerifyBlockedUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if blocked {
		e.metricInc(MetricLoginBlocked)
		e.emitAudit(ctx, auditEventLoginBlocked, false, "", "", ErrAccountTemporarilyBlocked, func() map[string]string {
			return map[string]string{"username": req.Username, "reason": "too_many_failures"}
		})
		return nil, ErrAccountTemporarilyBlocked
	}

	tokenStr, jti, err := e.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if _, regErr := e.store.RegisterFailedLogin(ctx, req.Username); regErr != nil {
				e.logger.Warn("failed-login registration failed", zap.Error(regErr))
			}
		}
		return nil, err
	}

	user, err := e.store.FindUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if e.VerifyBlockedUser(user) {
		e.metricInc(MetricLoginBlocked)
		e.emitAudit(ctx, auditEventLoginBlocked, false, user.ID, "", ErrAccountBlockedForInactivity, func() map[string]string {
			return map[string]string{"username": req.Username, "reason": "inactivity"}
		})
		return nil, ErrAccountBlockedForInactivity
	}

	totpSatisfied := !e.config.TOTP.Enabled
	if e.config.TOTP.Enabled && req.TOTPCode != "" {
		if err := e.VerifyTotp(ctx, user, req.TOTPCode); err != nil {
			return nil, err
		}
		totpSatisfied = true
	}

	passwordChanged := false
	if req.NewPassword != "" {
		if err := e.ChangePassword(ctx, user, req.Password, req.NewPassword, req.PasswordConfirm); err != nil {
			return nil, err
		}
		passwordChanged = true

		// The change rotated the identity and replaced the digest, so the
		// token issued during the credential check is already orphaned.
		claims := e.FillPayload(user)
		tokenStr, err = e.codec.Encode(claims)
		if err != nil {
			return nil, err
		}
		jti = claims.ID
	}

	outcome := &LoginOutcome{User: user}

	if !totpSatisfied {
		outcome.Actions = append(outcome.Actions, ActionSecondFactor)
		qr, qrErr := e.QRCode(user)
		if qrErr != nil {
			e.logger.Warn("totp qr generation failed", zap.Error(qrErr))
		} else {
			outcome.QRCode = qr
		}
	}
	if !passwordChanged {
		if e.config.Policy.ForceFirstPasswordChange && user.LastPasswordChange.IsZero() {
			outcome.Actions = append(outcome.Actions, ActionPasswordChangeRequired)
		} else if e.passwordExpired(user) {
			outcome.Actions = append(outcome.Actions, ActionPasswordExpired)
		}
	}

	if len(outcome.Actions) > 0 {
		return outcome, nil
	}

	now := time.Now()
	if user.FirstLogin.IsZero() {
		user.FirstLogin = now
	}
	user.LastLogin = now
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := e.store.ResetFailedLogins(ctx, req.Username); err != nil {
		e.logger.Warn("failed-login reset failed", zap.Error(err))
	}

	if err := e.SaveToken(ctx, user, tokenStr, jti); err != nil {
		return nil, err
	}

	outcome.Token = tokenStr
	outcome.JTI = jti

	return outcome, nil
}
