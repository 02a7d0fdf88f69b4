package authport

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// LinkExternalAccount attaches an oauth2 identity to an internal user,
// creating the user on first link. The account email doubles as the
// internal username.
//
// An existing local account that does not belong to the same provider is
// a hard conflict: logging in with oauth2 must never take over a
// credentials account, so the call fails with
// [ErrEmailAlreadyRegistered]. Re-linking the same provider refreshes
// the stored provider token and certificate material in place; a user
// carries at most one external account.
func (e *Engine) LinkExternalAccount(ctx context.Context, acct *ExternalAccount) (*User, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if acct == nil || acct.Email == "" || acct.Provider == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := e.store.FindUserByUsername(ctx, acct.Email)
	switch {
	case err == nil:
		if user.AuthMethod != acct.Provider {
			e.emitAudit(ctx, auditEventExternalLink, false, user.ID, "", ErrEmailAlreadyRegistered, func() map[string]string {
				return map[string]string{"provider": acct.Provider, "email": acct.Email}
			})
			return nil, ErrEmailAlreadyRegistered
		}
	case errors.Is(err, ErrNotFound):
		// First link creates the internal user. The account can never be
		// used for password login: AuthMethod is the provider name and
		// the stored digest is a throwaway.
		throwaway, hashErr := e.hasher.Hash(uuid.NewString())
		if hashErr != nil {
			return nil, hashErr
		}
		user, err = e.store.CreateUser(ctx, &User{
			Email:        acct.Email,
			PasswordHash: throwaway,
			AuthMethod:   acct.Provider,
		}, []string{RoleUser})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	acct.Username = acct.Email
	acct.UserID = user.ID
	if err := e.store.LinkExternalAccount(ctx, acct); err != nil {
		return nil, err
	}

	e.metricInc(MetricExternalLinked)
	e.emitAudit(ctx, auditEventExternalLink, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"provider": acct.Provider}
	})

	return user, nil
}

// ExternalAccountFor returns the linked external account for the user,
// or [ErrNotFound] when none is linked.
func (e *Engine) ExternalAccountFor(ctx context.Context, user *User) (*ExternalAccount, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return e.store.ExternalAccountForUser(ctx, user.ID)
}
