package authport

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Default role names created by [Engine.InitStore].
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

var defaultRoles = []Role{
	{Name: RoleUser, Description: "Ordinary user"},
	{Name: RoleStaff, Description: "Internal staff user"},
	{Name: RoleAdmin, Description: "Administrator"},
}

// InitStore seeds an empty backend with the default role set and, when
// configured, one administrator account holding every default role. A
// store that already has roles is left untouched, which makes the call
// idempotent and safe to run on every startup.
//
// A store that has roles but is missing the default user while user
// creation is requested is neither empty nor initialized; that state is
// reported as [ErrStoreInconsistent] rather than repaired, because
// silently re-creating an admin account on a live store is worse than
// failing loudly.
func (e *Engine) InitStore(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	roles, err := e.store.ListRoles(ctx)
	if err != nil {
		return err
	}

	if len(roles) > 0 {
		if !e.config.Bootstrap.CreateDefaultUser {
			return nil
		}
		_, err := e.store.FindUserByUsername(ctx, e.config.Bootstrap.DefaultUsername)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: roles present but default user %q missing",
				ErrStoreInconsistent, e.config.Bootstrap.DefaultUsername)
		}
		return err
	}

	for _, r := range defaultRoles {
		if _, err := e.store.CreateRole(ctx, r.Name, r.Description); err != nil {
			return err
		}
	}
	e.logger.Info("default roles created", zap.Int("count", len(defaultRoles)))

	if !e.config.Bootstrap.CreateDefaultUser {
		return nil
	}

	digest, err := e.hasher.Hash(e.config.Bootstrap.DefaultPassword)
	if err != nil {
		return err
	}
	admin := &User{
		Email:        e.config.Bootstrap.DefaultUsername,
		PasswordHash: digest,
		AuthMethod:   AuthMethodCredentials,
	}
	if _, err := e.store.CreateUser(ctx, admin, []string{RoleUser, RoleStaff, RoleAdmin}); err != nil {
		return err
	}

	e.metricInc(MetricBootstrapRuns)
	e.emitAudit(ctx, auditEventBootstrap, true, "", "", nil, func() map[string]string {
		return map[string]string{"default_user": e.config.Bootstrap.DefaultUsername}
	})
	e.logger.Info("default administrator created",
		zap.String("username", e.config.Bootstrap.DefaultUsername))

	return nil
}
