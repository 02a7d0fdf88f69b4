package authport

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// TokensFor lists every persisted token record belonging to the user,
// including soft-invalidated ones the backend may still return, as
// [TokenInfo] values with epoch-second timestamps.
func (e *Engine) TokensFor(ctx context.Context, user *User) ([]TokenInfo, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	records, err := e.store.TokensForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	infos := make([]TokenInfo, 0, len(records))
	for i := range records {
		infos = append(infos, tokenInfoOf(&records[i]))
	}
	return infos, nil
}

// TokenByJTI returns the record for a single token id regardless of
// owner. Absent records return [ErrTokenNotFound].
func (e *Engine) TokenByJTI(ctx context.Context, jti string) (*TokenInfo, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.store.FindToken(ctx, jti)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	info := tokenInfoOf(rec)
	return &info, nil
}

func tokenInfoOf(rec *Token) TokenInfo {
	info := TokenInfo{
		ID:       rec.JTI,
		Token:    rec.Token,
		IP:       rec.IP,
		Hostname: rec.Hostname,
	}
	if !rec.Created.IsZero() {
		info.Emitted = rec.Created.Unix()
	}
	if !rec.LastAccess.IsZero() {
		info.LastAccess = rec.LastAccess.Unix()
	}
	if !rec.Expiration.IsZero() {
		info.Expiration = rec.Expiration.Unix()
	}
	return info
}

// InvalidateToken revokes a single token softly: the persisted record
// loses its owner reference but stays in place for audit trails. A
// missing record is logged and reported as [ErrTokenNotFound]; callers
// treat that as a no-op, not a fault.
func (e *Engine) InvalidateToken(ctx context.Context, jti string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.ClearTokenOwner(ctx, jti); err != nil {
		if errors.Is(err, ErrNotFound) {
			e.logger.Warn("invalidate of unknown token", zap.String("jti", jti))
			return ErrTokenNotFound
		}
		return err
	}

	e.metricInc(MetricTokenInvalidated)
	e.emitAudit(ctx, auditEventTokenInvalidated, true, "", jti, nil, nil)

	return nil
}

// DestroyToken removes the persisted record entirely. Unlike
// [Engine.InvalidateToken] nothing survives for later inspection.
func (e *Engine) DestroyToken(ctx context.Context, jti string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.DeleteToken(ctx, jti); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenNotFound
		}
		return err
	}

	e.metricInc(MetricTokenDestroyed)
	e.emitAudit(ctx, auditEventTokenDestroyed, true, "", jti, nil, nil)

	return nil
}

// InvalidateAllTokens logs the user out everywhere by rotating the
// stable identity every outstanding payload embeds. Existing token
// records keep their old owner reference, so resolution breaks while
// the ownership trail stays intact. The user's ID field is updated in
// place to the new identity.
func (e *Engine) InvalidateAllTokens(ctx context.Context, user *User) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if user == nil {
		return ErrUnauthorized
	}

	oldID := user.ID
	newID, err := e.store.RotateUserIdentity(ctx, user)
	if err != nil {
		return err
	}
	user.ID = newID

	e.metricInc(MetricIdentityRotated)
	e.emitAudit(ctx, auditEventIdentityRotated, true, newID, "", nil, func() map[string]string {
		return map[string]string{"previous_identity": oldID}
	})

	return nil
}
