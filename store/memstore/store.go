package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	authport "github.com/quvio/authport"
)

// Store keeps all state in maps under one mutex. Reads return copies so
// callers can never alias the stored records.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*authport.User
	usernames map[string]string
	roles     map[string]authport.Role
	roleOrder []string
	tokens    map[string]*authport.Token
	failed    map[string]int
	external  map[string]*authport.ExternalAccount
}

var _ authport.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:     make(map[string]*authport.User),
		usernames: make(map[string]string),
		roles:     make(map[string]authport.Role),
		tokens:    make(map[string]*authport.Token),
		failed:    make(map[string]int),
		external:  make(map[string]*authport.ExternalAccount),
	}
}

func copyUser(u *authport.User) *authport.User {
	c := *u
	c.Roles = append([]authport.Role(nil), u.Roles...)
	return &c
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*authport.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, authport.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *Store) FindUserByID(_ context.Context, stableID string) (*authport.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[stableID]
	if !ok {
		return nil, authport.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) CreateUser(_ context.Context, user *authport.User, roles []string) (*authport.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usernames[user.Email]; exists {
		return nil, authport.ErrEmailAlreadyRegistered
	}

	stored := copyUser(user)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Roles = stored.Roles[:0]
	for _, name := range roles {
		role, ok := s.roles[name]
		if !ok {
			return nil, authport.ErrNotFound
		}
		stored.Roles = append(stored.Roles, role)
	}

	s.users[stored.ID] = stored
	s.usernames[stored.Email] = stored.ID

	return copyUser(stored), nil
}

func (s *Store) UpdateUser(_ context.Context, user *authport.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return authport.ErrNotFound
	}
	if stored.Email != user.Email {
		delete(s.usernames, stored.Email)
		s.usernames[user.Email] = user.ID
	}
	s.users[user.ID] = copyUser(user)

	return nil
}

// RotateUserIdentity re-keys the user under a fresh identity. Token
// records are deliberately left pointing at the old identity.
func (s *Store) RotateUserIdentity(_ context.Context, user *authport.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return "", authport.ErrNotFound
	}

	newID := uuid.NewString()
	delete(s.users, stored.ID)
	stored.ID = newID
	s.users[newID] = stored
	s.usernames[stored.Email] = newID

	if ext, ok := s.external[user.ID]; ok {
		delete(s.external, user.ID)
		ext.UserID = newID
		s.external[newID] = ext
	}

	return newID, nil
}

func (s *Store) ListRoles(_ context.Context) ([]authport.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := make([]authport.Role, 0, len(s.roleOrder))
	for _, name := range s.roleOrder {
		roles = append(roles, s.roles[name])
	}
	return roles, nil
}

func (s *Store) CreateRole(_ context.Context, name, description string) (authport.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.roles[name]; ok {
		return existing, nil
	}
	role := authport.Role{Name: name, Description: description}
	s.roles[name] = role
	s.roleOrder = append(s.roleOrder, name)

	return role, nil
}

func (s *Store) SaveToken(_ context.Context, t *authport.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *t
	s.tokens[t.JTI] = &c

	return nil
}

func (s *Store) FindToken(_ context.Context, jti string) (*authport.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[jti]
	if !ok {
		return nil, authport.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (s *Store) TokensForUser(_ context.Context, userID string) ([]authport.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []authport.Token
	for _, t := range s.tokens {
		if t.UserID != "" && t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Store) TouchToken(_ context.Context, jti string, lastAccess, expiration time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[jti]
	if !ok {
		return authport.ErrNotFound
	}
	t.LastAccess = lastAccess
	t.Expiration = expiration

	return nil
}

func (s *Store) ClearTokenOwner(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[jti]
	if !ok {
		return authport.ErrNotFound
	}
	t.UserID = ""

	return nil
}

func (s *Store) DeleteToken(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[jti]; !ok {
		return authport.ErrNotFound
	}
	delete(s.tokens, jti)

	return nil
}

func (s *Store) RegisterFailedLogin(_ context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed[username]++
	return s.failed[username], nil
}

func (s *Store) FailedLoginCount(_ context.Context, username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.failed[username], nil
}

func (s *Store) ResetFailedLogins(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failed, username)
	return nil
}

func (s *Store) LinkExternalAccount(_ context.Context, acct *authport.ExternalAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *acct
	s.external[acct.UserID] = &c

	return nil
}

func (s *Store) ExternalAccountForUser(_ context.Context, userID string) (*authport.ExternalAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ext, ok := s.external[userID]
	if !ok {
		return nil, authport.ErrNotFound
	}
	c := *ext
	return &c, nil
}
