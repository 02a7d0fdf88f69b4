package authport

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quvio/authport/internal"
	"github.com/quvio/authport/password"
	"github.com/quvio/authport/token"
)

// Engine is the authentication core. It is stateless across requests:
// the only mutable state it touches lives behind the injected [Store],
// and the verified user/payload of a request travels in the [AuthResult]
// return value, never on the Engine.
//
// Engine instances are configured through [Builder.Build] and treated as
// immutable afterwards.
type Engine struct {
	config  Config
	store   Store
	hasher  *password.Hasher
	codec   *token.Codec
	totp    *totpManager
	audit   *auditDispatcher
	metrics *Metrics
	logger  *zap.Logger

	// totpKey seeds the deterministic per-user TOTP secrets. It is the
	// signing secret, so enrolling devices survive restarts.
	totpKey []byte
	// insecureSecret records that the built-in signing secret is in use;
	// surfaced through SecurityReport and warned about at Build.
	insecureSecret bool
}

// Close flushes the audit dispatcher. Safe on a nil engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login checks credentials and, on success, returns a signed token string
// and its jti. The token is NOT persisted yet: callers persist it with
// [Engine.SaveToken] once the surrounding flow (policy checks, second
// factor, pending actions) decides the login is complete. [Engine.LoginFlow]
// does all of that in one call.
//
// Every credential failure collapses to [ErrInvalidCredentials]: absent
// user, non-credentials account and password mismatch are deliberately
// indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, username, pwd string) (string, string, error) {
	if e == nil || e.store == nil || e.hasher == nil || e.codec == nil {
		return "", "", ErrEngineNotReady
	}
	if username == "" || pwd == "" {
		e.metricInc(MetricLoginFailure)
		return "", "", ErrInvalidCredentials
	}

	user, err := e.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"username": username, "reason": "user_not_found"}
			})
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	if user.AuthMethod != AuthMethodCredentials {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"username": username, "reason": "not_a_credentials_account"}
		})
		return "", "", ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(pwd, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"username": username, "reason": "password_mismatch"}
		})
		return "", "", ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsUpgrade(user.PasswordHash) {
		// Rehash update is best-effort and must not block successful login.
		if upgraded, hashErr := e.hasher.Hash(pwd); hashErr == nil {
			user.PasswordHash = upgraded
			if updateErr := e.store.UpdateUser(ctx, user); updateErr != nil {
				e.logger.Warn("password hash upgrade failed", zap.Error(updateErr))
			}
		}
	}
	pwd = ""

	claims := e.FillPayload(user)
	tokenStr, err := e.codec.Encode(claims)
	if err != nil {
		return "", "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, claims.ID, nil, func() map[string]string {
		return map[string]string{"username": username}
	})

	return tokenStr, claims.ID, nil
}

// FillPayload builds the claim set for a fresh token: iat/nbf now, exp
// now+LongTTL, a fresh random jti, and the password-digest fingerprint
// that lets a server-side password change orphan the payload later.
func (e *Engine) FillPayload(user *User) *token.Claims {
	claims := token.NewClaims(
		user.ID,
		internal.FingerprintDigest(user.PasswordHash),
		time.Now(),
		e.config.Token.LongTTL,
	)
	claims.ID = uuid.NewString()
	return claims
}

// VerifyToken runs the full verification pipeline and returns the
// request-scoped [AuthResult] on success:
//
//  1. decode: signature, exp, nbf; any failure is invalid.
//  2. resolve the user from the embedded stable identity; a rotated
//     identity resolves to nobody, which is the global-logout case.
//  3. re-check the password-digest fingerprint; a server-side password
//     change invalidates older payloads here.
//  4. the persisted record for this jti must still reference this user;
//     a soft-invalidated token fails here and only here.
//  5. rolling refresh: an expired record is invalidated on the spot,
//     a live one gets its window extended by ShortTTL.
//
// All expected failures collapse to [ErrTokenInvalid]; only unexpected
// persistence failures surface as other errors.
func (e *Engine) VerifyToken(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.store == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Decode(tokenStr)
	if err != nil {
		e.metricInc(MetricTokenVerifyFailure)
		e.logger.Debug("token decode failed", zap.Error(err))
		return nil, ErrTokenInvalid
	}

	user, err := e.store.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricTokenVerifyFailure)
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if claims.PwdFingerprint != "" &&
		claims.PwdFingerprint != internal.FingerprintDigest(user.PasswordHash) {
		e.metricInc(MetricTokenVerifyFailure)
		return nil, ErrTokenInvalid
	}

	rec, err := e.store.FindToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricTokenVerifyFailure)
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if rec.UserID == "" || rec.UserID != user.ID {
		e.metricInc(MetricTokenVerifyFailure)
		return nil, ErrTokenInvalid
	}

	if err := e.refreshToken(ctx, rec); err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			e.metricInc(MetricTokenVerifyFailure)
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	e.metricInc(MetricTokenVerifySuccess)

	return &AuthResult{User: user, Payload: claims, Token: rec}, nil
}

// refreshToken enforces the record expiry and extends the rolling window.
// An expired record is soft-invalidated in place and reported invalid.
func (e *Engine) refreshToken(ctx context.Context, rec *Token) error {
	now := time.Now()
	if !rec.Expiration.IsZero() && now.After(rec.Expiration) {
		if err := e.store.ClearTokenOwner(ctx, rec.JTI); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		e.metricInc(MetricTokenInvalidated)
		e.emitAudit(ctx, auditEventTokenExpired, false, rec.UserID, rec.JTI, ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	newExpiration := now.Add(e.config.Token.ShortTTL)
	if err := e.store.TouchToken(ctx, rec.JTI, now, newExpiration); err != nil {
		return err
	}
	rec.LastAccess = now
	rec.Expiration = newExpiration
	e.metricInc(MetricTokenRefreshed)

	return nil
}

// SaveToken persists the record for an issued token: creation and
// last-access now, expiration now+ShortTTL, requester IP from ctx, and a
// best-effort reverse-DNS hostname. Hostname resolution failure is
// swallowed; the field stays empty and login proceeds.
func (e *Engine) SaveToken(ctx context.Context, user *User, tokenStr, jti string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	now := time.Now()
	ip := clientIPFromContext(ctx)
	rec := &Token{
		JTI:        jti,
		Token:      tokenStr,
		UserID:     user.ID,
		Created:    now,
		LastAccess: now,
		Expiration: now.Add(e.config.Token.ShortTTL),
		IP:         ip,
		Hostname:   internal.LookupHostname(ctx, ip, e.config.Token.HostnameTimeout),
	}

	if err := e.store.SaveToken(ctx, rec); err != nil {
		return err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, user.ID, jti, nil, nil)

	return nil
}

// VerifyRoles reports whether the user carries every required role.
// AND-semantics: one missing role fails the whole check.
func (e *Engine) VerifyRoles(user *User, required ...string) bool {
	if user == nil {
		return false
	}
	for _, name := range required {
		if !user.HasRole(name) {
			return false
		}
	}
	return true
}

// UsingInsecureSecret reports whether tokens are being signed with the
// built-in default secret because no secret file was deployed.
func (e *Engine) UsingInsecureSecret() bool {
	return e != nil && e.insecureSecret
}
