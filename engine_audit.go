package authport

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginBlocked     = "login_blocked"
	auditEventTokenIssued      = "token_issued"
	auditEventTokenExpired     = "token_expired"
	auditEventTokenInvalidated = "token_invalidated"
	auditEventTokenDestroyed   = "token_destroyed"
	auditEventIdentityRotated  = "identity_rotated"
	auditEventPasswordChange   = "password_change"
	auditEventTOTPSuccess      = "totp_success"
	auditEventTOTPFailure      = "totp_failure"
	auditEventExternalLink     = "external_account_link"
	auditEventBootstrap        = "store_bootstrap"
)

// emitAudit assembles and enqueues one event. The metadata closure runs
// only when auditing is enabled, so callers can build maps without
// paying for them on the disabled path.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, jti string, failure error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		JTI:       jti,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
