package authport

import (
	"errors"
	"time"
)

// Config defines the tunables of the engine. Zero values are filled in by
// defaultConfig; Build validates the final result and refuses to construct
// an engine from an inconsistent configuration.
type Config struct {
	Token     TokenConfig
	Password  PasswordConfig
	Policy    PolicyConfig
	TOTP      TOTPConfig
	Bootstrap BootstrapConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig governs payload lifetimes and the signing secret.
//
// LongTTL bounds the payload itself (the exp claim at issuance); ShortTTL
// is the rolling verification window extended on every successful
// verify. SecretFile is read once at Build; when it is absent the engine
// falls back to a fixed insecure default and logs a loud warning, never
// silently.
type TokenConfig struct {
	SecretFile string
	Algorithm  string // "HS256" (default)
	LongTTL    time.Duration
	ShortTTL   time.Duration
	// HostnameTimeout bounds the best-effort reverse-DNS lookup performed at
	// token issuance. Lookup failure is swallowed, never fatal.
	HostnameTimeout time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing schemes.
//
// LegacySalt keys the deterministic HMAC-SHA512 scheme kept for digests
// issued by older deployments; it is documented as weak and replaceable.
// New hashes use argon2id unless PreferLegacy is set, and UpgradeOnLogin
// rehashes legacy digests transparently after a successful login.
type PasswordConfig struct {
	LegacySalt     string
	PreferLegacy   bool
	UpgradeOnLogin bool
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
}

/*
====================================
POLICY CONFIG
====================================
*/

// PolicyConfig holds the security-policy knobs around login.
type PolicyConfig struct {
	// MaxLoginAttempts blocks a username once its failed-login counter
	// reaches this value. Zero or negative means "count but never block".
	MaxLoginAttempts int
	// DisableUnusedCredentialsAfter blocks accounts whose last login is older
	// than this many days. Zero disables the check; users who never logged in
	// are always exempt.
	DisableUnusedCredentialsAfter int
	// MaxPasswordValidity forces a password change after this many days.
	// Zero disables expiry.
	MaxPasswordValidity int
	// EnforcePasswordStrength toggles the strength rules on password change.
	EnforcePasswordStrength bool
	// ForceFirstPasswordChange requires users who have never changed their
	// password to replace it before a token is issued.
	ForceFirstPasswordChange bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig governs the time-based second factor.
type TOTPConfig struct {
	Enabled   bool
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
}

/*
====================================
BOOTSTRAP CONFIG
====================================
*/

// BootstrapConfig controls what InitStore creates on an empty store.
type BootstrapConfig struct {
	CreateDefaultUser bool
	DefaultUsername   string
	DefaultPassword   string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig governs the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the Builder starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Algorithm:       "HS256",
			LongTTL:         30 * 24 * time.Hour,
			ShortTTL:        time.Hour,
			HostnameTimeout: 500 * time.Millisecond,
		},
		Password: PasswordConfig{
			LegacySalt:     "weak-legacy-salt-replace-me",
			UpgradeOnLogin: true,
			Memory:         64 * 1024,
			Time:           2,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
		},
		Policy: PolicyConfig{
			MaxLoginAttempts:         0,
			EnforcePasswordStrength:  true,
			ForceFirstPasswordChange: false,
		},
		TOTP: TOTPConfig{
			Issuer:    "authport",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Bootstrap: BootstrapConfig{
			CreateDefaultUser: true,
			DefaultUsername:   "admin@localhost",
			DefaultPassword:   "chang3m3!PLEASE",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Token.LongTTL <= 0 || cfg.Token.ShortTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.Token.ShortTTL > cfg.Token.LongTTL {
		return errors.New("short TTL must not exceed long TTL")
	}
	if cfg.Token.Algorithm != "" && cfg.Token.Algorithm != "HS256" {
		return errors.New("unsupported token algorithm")
	}
	if cfg.TOTP.Enabled {
		if cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 8 {
			return errors.New("totp digits out of range")
		}
		if cfg.TOTP.Period <= 0 {
			return errors.New("totp period must be positive")
		}
		if cfg.TOTP.Skew < 0 {
			return errors.New("totp skew must not be negative")
		}
	}
	if cfg.Bootstrap.CreateDefaultUser {
		if cfg.Bootstrap.DefaultUsername == "" || cfg.Bootstrap.DefaultPassword == "" {
			return errors.New("bootstrap default user requires username and password")
		}
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	return nil
}
