package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	authport "github.com/quvio/authport"
)

// Schema is the DDL this adapter expects. EnsureSchema applies it with
// IF NOT EXISTS guards so running it on every startup is safe.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY,
	email                TEXT NOT NULL UNIQUE,
	password_hash        TEXT NOT NULL,
	auth_method          TEXT NOT NULL,
	first_login          TIMESTAMPTZ,
	last_login           TIMESTAMPTZ,
	last_password_change TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS roles (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	position    SERIAL
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id   TEXT NOT NULL,
	role_name TEXT NOT NULL REFERENCES roles(name),
	PRIMARY KEY (user_id, role_name)
);

CREATE TABLE IF NOT EXISTS tokens (
	jti         TEXT PRIMARY KEY,
	token       TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	created     TIMESTAMPTZ,
	last_access TIMESTAMPTZ,
	expiration  TIMESTAMPTZ,
	ip          TEXT NOT NULL DEFAULT '',
	hostname    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS tokens_user_id_idx ON tokens (user_id);

CREATE TABLE IF NOT EXISTS failed_logins (
	username TEXT PRIMARY KEY,
	count    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS external_accounts (
	user_id        TEXT PRIMARY KEY,
	username       TEXT NOT NULL,
	email          TEXT NOT NULL,
	provider       TEXT NOT NULL,
	provider_token TEXT NOT NULL DEFAULT '',
	certificate_cn TEXT NOT NULL DEFAULT '',
	certificate_dn TEXT NOT NULL DEFAULT '',
	proxy_file     TEXT NOT NULL DEFAULT ''
);
`

// Store is a PostgreSQL-backed persistence adapter over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ authport.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies the DDL.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

const userColumns = `id, email, password_hash, auth_method, first_login, last_login, last_password_change`

func (s *Store) scanUser(ctx context.Context, row pgx.Row) (*authport.User, error) {
	var (
		u                            authport.User
		firstLogin, lastLogin, lastPasswordChange *time.Time
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AuthMethod,
		&firstLogin, &lastLogin, &lastPasswordChange); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authport.ErrNotFound
		}
		return nil, err
	}
	u.FirstLogin = timeValue(firstLogin)
	u.LastLogin = timeValue(lastLogin)
	u.LastPasswordChange = timeValue(lastPasswordChange)

	rows, err := s.pool.Query(ctx,
		`SELECT r.name, r.description
		   FROM user_roles ur JOIN roles r ON r.name = ur.role_name
		  WHERE ur.user_id = $1
		  ORDER BY r.position`, u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var role authport.Role
		if err := rows.Scan(&role.Name, &role.Description); err != nil {
			return nil, err
		}
		u.Roles = append(u.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*authport.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, username)
	return s.scanUser(ctx, row)
}

func (s *Store) FindUserByID(ctx context.Context, stableID string) (*authport.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, stableID)
	return s.scanUser(ctx, row)
}

func (s *Store) CreateUser(ctx context.Context, user *authport.User, roles []string) (*authport.User, error) {
	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, stored.Email).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, authport.ErrEmailAlreadyRegistered
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		stored.ID, stored.Email, stored.PasswordHash, stored.AuthMethod,
		nullableTime(stored.FirstLogin), nullableTime(stored.LastLogin),
		nullableTime(stored.LastPasswordChange)); err != nil {
		return nil, err
	}

	for _, name := range roles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2)`,
			stored.ID, name); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.FindUserByID(ctx, stored.ID)
}

func (s *Store) UpdateUser(ctx context.Context, user *authport.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		    SET email = $2, password_hash = $3, auth_method = $4,
		        first_login = $5, last_login = $6, last_password_change = $7
		  WHERE id = $1`,
		user.ID, user.Email, user.PasswordHash, user.AuthMethod,
		nullableTime(user.FirstLogin), nullableTime(user.LastLogin),
		nullableTime(user.LastPasswordChange))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authport.ErrNotFound
	}
	return nil
}

// RotateUserIdentity re-keys the user row and every row that must
// follow the user (role grants, external account) in one transaction.
// Token rows are deliberately left behind on the old identity.
func (s *Store) RotateUserIdentity(ctx context.Context, user *authport.User) (string, error) {
	newID := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE users SET id = $2 WHERE id = $1`, user.ID, newID)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", authport.ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE user_roles SET user_id = $2 WHERE user_id = $1`, user.ID, newID); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE external_accounts SET user_id = $2 WHERE user_id = $1`, user.ID, newID); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}

	return newID, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]authport.Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, description FROM roles ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []authport.Role
	for rows.Next() {
		var r authport.Role
		if err := rows.Scan(&r.Name, &r.Description); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) CreateRole(ctx context.Context, name, description string) (authport.Role, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2)
		 ON CONFLICT (name) DO NOTHING`, name, description); err != nil {
		return authport.Role{}, err
	}

	var r authport.Role
	if err := s.pool.QueryRow(ctx,
		`SELECT name, description FROM roles WHERE name = $1`, name).
		Scan(&r.Name, &r.Description); err != nil {
		return authport.Role{}, err
	}
	return r, nil
}

const tokenColumns = `jti, token, user_id, created, last_access, expiration, ip, hostname`

func scanToken(row pgx.Row) (*authport.Token, error) {
	var (
		t                               authport.Token
		created, lastAccess, expiration *time.Time
	)
	if err := row.Scan(&t.JTI, &t.Token, &t.UserID,
		&created, &lastAccess, &expiration, &t.IP, &t.Hostname); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authport.ErrNotFound
		}
		return nil, err
	}
	t.Created = timeValue(created)
	t.LastAccess = timeValue(lastAccess)
	t.Expiration = timeValue(expiration)
	return &t, nil
}

func (s *Store) SaveToken(ctx context.Context, t *authport.Token) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (jti) DO UPDATE
		    SET token = EXCLUDED.token, user_id = EXCLUDED.user_id,
		        created = EXCLUDED.created, last_access = EXCLUDED.last_access,
		        expiration = EXCLUDED.expiration, ip = EXCLUDED.ip,
		        hostname = EXCLUDED.hostname`,
		t.JTI, t.Token, t.UserID,
		nullableTime(t.Created), nullableTime(t.LastAccess), nullableTime(t.Expiration),
		t.IP, t.Hostname)
	return err
}

func (s *Store) FindToken(ctx context.Context, jti string) (*authport.Token, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE jti = $1`, jti)
	return scanToken(row)
}

func (s *Store) TokensForUser(ctx context.Context, userID string) ([]authport.Token, error) {
	if userID == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE user_id = $1 ORDER BY created`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authport.Token
	for rows.Next() {
		t, scanErr := scanToken(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) TouchToken(ctx context.Context, jti string, lastAccess, expiration time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET last_access = $2, expiration = $3 WHERE jti = $1`,
		jti, nullableTime(lastAccess), nullableTime(expiration))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authport.ErrNotFound
	}
	return nil
}

func (s *Store) ClearTokenOwner(ctx context.Context, jti string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET user_id = '' WHERE jti = $1`, jti)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authport.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteToken(ctx context.Context, jti string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE jti = $1`, jti)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authport.ErrNotFound
	}
	return nil
}

func (s *Store) RegisterFailedLogin(ctx context.Context, username string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO failed_logins (username, count) VALUES ($1, 1)
		 ON CONFLICT (username) DO UPDATE SET count = failed_logins.count + 1
		 RETURNING count`, username).Scan(&count)
	return count, err
}

func (s *Store) FailedLoginCount(ctx context.Context, username string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM failed_logins WHERE username = $1`, username).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func (s *Store) ResetFailedLogins(ctx context.Context, username string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM failed_logins WHERE username = $1`, username)
	return err
}

func (s *Store) LinkExternalAccount(ctx context.Context, acct *authport.ExternalAccount) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO external_accounts
		        (user_id, username, email, provider, provider_token,
		         certificate_cn, certificate_dn, proxy_file)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE
		    SET username = EXCLUDED.username, email = EXCLUDED.email,
		        provider = EXCLUDED.provider, provider_token = EXCLUDED.provider_token,
		        certificate_cn = EXCLUDED.certificate_cn,
		        certificate_dn = EXCLUDED.certificate_dn,
		        proxy_file = EXCLUDED.proxy_file`,
		acct.UserID, acct.Username, acct.Email, acct.Provider, acct.ProviderToken,
		acct.CertificateCN, acct.CertificateDN, acct.ProxyFile)
	return err
}

func (s *Store) ExternalAccountForUser(ctx context.Context, userID string) (*authport.ExternalAccount, error) {
	var ext authport.ExternalAccount
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, email, provider, provider_token,
		        certificate_cn, certificate_dn, proxy_file
		   FROM external_accounts WHERE user_id = $1`, userID).
		Scan(&ext.UserID, &ext.Username, &ext.Email, &ext.Provider,
			&ext.ProviderToken, &ext.CertificateCN, &ext.CertificateDN, &ext.ProxyFile)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authport.ErrNotFound
		}
		return nil, err
	}
	return &ext, nil
}
