package authport

import (
	"context"
	"time"

	"github.com/quvio/authport/token"
)

// AuthMethodCredentials marks accounts that authenticate with a local
// password. Accounts created through an external provider carry the
// provider name instead and can never password-login.
const AuthMethodCredentials = "credentials"

// User is the identity record the engine operates on.
//
// ID is the stable identity value embedded in token payloads, not a
// database primary key: replacing it with a fresh random value is the
// global-logout primitive (see [Store.RotateUserIdentity]).
//
// Zero timestamps act as the "never" sentinel: FirstLogin/LastLogin zero
// means the user never logged in, LastPasswordChange zero means the
// bootstrap password was never replaced.
type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	AuthMethod         string
	FirstLogin         time.Time
	LastLogin          time.Time
	LastPasswordChange time.Time
	Roles              []Role
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Role is a named capability attached to users. The default set is created
// at bootstrap; backends may add more.
type Role struct {
	Name        string
	Description string
}

// Token is the persisted record of one issued credential.
//
// UserID is set at issuance and cleared (never deleted) by single-token
// invalidation so the row survives as an audit trail; only DestroyToken
// removes it. A zero Expiration means the record never expires.
type Token struct {
	JTI        string
	Token      string
	UserID     string
	Created    time.Time
	LastAccess time.Time
	Expiration time.Time
	IP         string
	Hostname   string
}

// ExternalAccount links exactly one internal user to an oauth2/certificate
// identity. At most one per user.
type ExternalAccount struct {
	Username      string
	Email         string
	Provider      string
	ProviderToken string
	CertificateCN string
	CertificateDN string
	ProxyFile     string
	UserID        string
}

// TokenInfo is the listing representation of a token record. Timestamps
// are epoch seconds, matching the wire shape token-management endpoints
// expose.
type TokenInfo struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	Emitted    int64  `json:"emitted"`
	LastAccess int64  `json:"last_access"`
	Expiration int64  `json:"expiration"`
	IP         string `json:"ip"`
	Hostname   string `json:"hostname"`
}

// AuthResult carries the outcome of a successful token verification for
// the remainder of request handling. It is request-scoped by construction:
// the engine returns it, nothing stores it.
type AuthResult struct {
	User    *User
	Payload *token.Claims
	Token   *Token
}

// Store is the persistence port the engine depends on. Implementations
// (relational, Redis, in-memory) are selected at process startup and
// injected through [Builder.WithStore]; the engine never loads backends
// dynamically.
//
// All operations are synchronous and must return [ErrNotFound] (possibly
// wrapped) for absent records. The engine performs no retries; transient
// failures surface to the caller as-is. RotateUserIdentity is the one
// operation that must be atomic: concurrent reads of the old identity may
// transiently succeed or fail, but no state may be corrupted and all
// subsequent reads must see the new value.
type Store interface {
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByID(ctx context.Context, stableID string) (*User, error)
	CreateUser(ctx context.Context, user *User, roles []string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	RotateUserIdentity(ctx context.Context, user *User) (string, error)

	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)

	SaveToken(ctx context.Context, t *Token) error
	FindToken(ctx context.Context, jti string) (*Token, error)
	TokensForUser(ctx context.Context, userID string) ([]Token, error)
	TouchToken(ctx context.Context, jti string, lastAccess, expiration time.Time) error
	ClearTokenOwner(ctx context.Context, jti string) error
	DeleteToken(ctx context.Context, jti string) error

	RegisterFailedLogin(ctx context.Context, username string) (int, error)
	FailedLoginCount(ctx context.Context, username string) (int, error)
	ResetFailedLogins(ctx context.Context, username string) error

	LinkExternalAccount(ctx context.Context, acct *ExternalAccount) error
	ExternalAccountForUser(ctx context.Context, userID string) (*ExternalAccount, error)
}
