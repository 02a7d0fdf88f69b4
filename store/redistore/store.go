package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	authport "github.com/quvio/authport"
)

// Store is a Redis-backed persistence adapter. All methods are safe for
// concurrent use; multi-key updates go through MULTI/EXEC pipelines.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ authport.Store = (*Store)(nil)

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ap"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) userKey(id string) string { return s.prefix + ":user:" + id }
func (s *Store) usernameKey(name string) string { return s.prefix + ":username:" + name }
func (s *Store) rolesKey() string { return s.prefix + ":roles" }
func (s *Store) roleOrderKey() string { return s.prefix + ":roleorder" }
func (s *Store) tokenKey(jti string) string { return s.prefix + ":token:" + jti }
func (s *Store) userTokensKey(id string) string { return s.prefix + ":usertokens:" + id }
func (s *Store) failedKey(name string) string { return s.prefix + ":failed:" + name }
func (s *Store) externalKey(id string) string { return s.prefix + ":ext:" + id }

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return authport.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, 0).Err()
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*authport.User, error) {
	id, err := s.rdb.Get(ctx, s.usernameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authport.ErrNotFound
		}
		return nil, err
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) FindUserByID(ctx context.Context, stableID string) (*authport.User, error) {
	var u authport.User
	if err := s.getJSON(ctx, s.userKey(stableID), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *authport.User, roles []string) (*authport.User, error) {
	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Roles = nil
	for _, name := range roles {
		desc, err := s.rdb.HGet(ctx, s.rolesKey(), name).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, authport.ErrNotFound
			}
			return nil, err
		}
		stored.Roles = append(stored.Roles, authport.Role{Name: name, Description: desc})
	}

	// The username index doubles as the uniqueness guard.
	ok, err := s.rdb.SetNX(ctx, s.usernameKey(stored.Email), stored.ID, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, authport.ErrEmailAlreadyRegistered
	}

	if err := s.setJSON(ctx, s.userKey(stored.ID), &stored); err != nil {
		return nil, err
	}

	out := stored
	return &out, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *authport.User) error {
	current, err := s.FindUserByID(ctx, user.ID)
	if err != nil {
		return err
	}

	if current.Email != user.Email {
		_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.usernameKey(current.Email))
			pipe.Set(ctx, s.usernameKey(user.Email), user.ID, 0)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return s.setJSON(ctx, s.userKey(user.ID), user)
}

// RotateUserIdentity re-keys the user blob under a fresh id in one
// MULTI/EXEC block. The per-user token set and the token records stay
// keyed by the previous identity, which is the point of the rotation.
func (s *Store) RotateUserIdentity(ctx context.Context, user *authport.User) (string, error) {
	current, err := s.FindUserByID(ctx, user.ID)
	if err != nil {
		return "", err
	}

	ext, extErr := s.ExternalAccountForUser(ctx, current.ID)
	if extErr != nil && !errors.Is(extErr, authport.ErrNotFound) {
		return "", extErr
	}

	newID := uuid.NewString()
	oldID := current.ID
	current.ID = newID

	userData, err := json.Marshal(current)
	if err != nil {
		return "", err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.userKey(newID), userData, 0)
		pipe.Del(ctx, s.userKey(oldID))
		pipe.Set(ctx, s.usernameKey(current.Email), newID, 0)
		if ext != nil {
			ext.UserID = newID
			extData, marshalErr := json.Marshal(ext)
			if marshalErr != nil {
				return marshalErr
			}
			pipe.Set(ctx, s.externalKey(newID), extData, 0)
			pipe.Del(ctx, s.externalKey(oldID))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return newID, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]authport.Role, error) {
	names, err := s.rdb.LRange(ctx, s.roleOrderKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	descs, err := s.rdb.HMGet(ctx, s.rolesKey(), names...).Result()
	if err != nil {
		return nil, err
	}

	roles := make([]authport.Role, 0, len(names))
	for i, name := range names {
		desc, _ := descs[i].(string)
		roles = append(roles, authport.Role{Name: name, Description: desc})
	}
	return roles, nil
}

func (s *Store) CreateRole(ctx context.Context, name, description string) (authport.Role, error) {
	created, err := s.rdb.HSetNX(ctx, s.rolesKey(), name, description).Result()
	if err != nil {
		return authport.Role{}, err
	}
	if !created {
		desc, getErr := s.rdb.HGet(ctx, s.rolesKey(), name).Result()
		if getErr != nil {
			return authport.Role{}, getErr
		}
		return authport.Role{Name: name, Description: desc}, nil
	}
	if err := s.rdb.RPush(ctx, s.roleOrderKey(), name).Err(); err != nil {
		return authport.Role{}, err
	}
	return authport.Role{Name: name, Description: description}, nil
}

func (s *Store) SaveToken(ctx context.Context, t *authport.Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(t.JTI), data, 0)
		if t.UserID != "" {
			pipe.SAdd(ctx, s.userTokensKey(t.UserID), t.JTI)
		}
		return nil
	})
	return err
}

func (s *Store) FindToken(ctx context.Context, jti string) (*authport.Token, error) {
	var t authport.Token
	if err := s.getJSON(ctx, s.tokenKey(jti), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) TokensForUser(ctx context.Context, userID string) ([]authport.Token, error) {
	jtis, err := s.rdb.SMembers(ctx, s.userTokensKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	var out []authport.Token
	for _, jti := range jtis {
		t, findErr := s.FindToken(ctx, jti)
		if findErr != nil {
			if errors.Is(findErr, authport.ErrNotFound) {
				continue
			}
			return nil, findErr
		}
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Store) TouchToken(ctx context.Context, jti string, lastAccess, expiration time.Time) error {
	t, err := s.FindToken(ctx, jti)
	if err != nil {
		return err
	}
	t.LastAccess = lastAccess
	t.Expiration = expiration
	return s.setJSON(ctx, s.tokenKey(jti), t)
}

func (s *Store) ClearTokenOwner(ctx context.Context, jti string) error {
	t, err := s.FindToken(ctx, jti)
	if err != nil {
		return err
	}

	owner := t.UserID
	t.UserID = ""
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(jti), data, 0)
		if owner != "" {
			pipe.SRem(ctx, s.userTokensKey(owner), jti)
		}
		return nil
	})
	return err
}

func (s *Store) DeleteToken(ctx context.Context, jti string) error {
	t, err := s.FindToken(ctx, jti)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.tokenKey(jti))
		if t.UserID != "" {
			pipe.SRem(ctx, s.userTokensKey(t.UserID), jti)
		}
		return nil
	})
	return err
}

func (s *Store) RegisterFailedLogin(ctx context.Context, username string) (int, error) {
	n, err := s.rdb.Incr(ctx, s.failedKey(username)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) FailedLoginCount(ctx context.Context, username string) (int, error) {
	n, err := s.rdb.Get(ctx, s.failedKey(username)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (s *Store) ResetFailedLogins(ctx context.Context, username string) error {
	return s.rdb.Del(ctx, s.failedKey(username)).Err()
}

func (s *Store) LinkExternalAccount(ctx context.Context, acct *authport.ExternalAccount) error {
	return s.setJSON(ctx, s.externalKey(acct.UserID), acct)
}

func (s *Store) ExternalAccountForUser(ctx context.Context, userID string) (*authport.ExternalAccount, error) {
	var ext authport.ExternalAccount
	if err := s.getJSON(ctx, s.externalKey(userID), &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}
