package authport

import "time"

// SecurityReport summarizes the engine's security posture for startup
// logging and operational review. It contains no secrets.
type SecurityReport struct {
	SigningAlgorithm        string
	InsecureSigningSecret   bool
	LongTTL                 time.Duration
	ShortTTL                time.Duration
	Argon2                  PasswordConfigReport
	LegacyHashingPreferred  bool
	UpgradeOnLogin          bool
	LockoutActive           bool
	InactivityBlockActive   bool
	PasswordExpiryActive    bool
	PasswordStrengthActive  bool
	TOTPEnabled             bool
	AuditEnabled            bool
}

// PasswordConfigReport mirrors the argon2id cost parameters in use.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport returns the current posture summary.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	algorithm := e.config.Token.Algorithm
	if algorithm == "" {
		algorithm = "HS256"
	}

	return SecurityReport{
		SigningAlgorithm:       algorithm,
		InsecureSigningSecret:  e.insecureSecret,
		LongTTL:                e.config.Token.LongTTL,
		ShortTTL:               e.config.Token.ShortTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		LegacyHashingPreferred: e.config.Password.PreferLegacy,
		UpgradeOnLogin:         e.config.Password.UpgradeOnLogin,
		LockoutActive:          e.config.Policy.MaxLoginAttempts > 0,
		InactivityBlockActive:  e.config.Policy.DisableUnusedCredentialsAfter > 0,
		PasswordExpiryActive:   e.config.Policy.MaxPasswordValidity > 0,
		PasswordStrengthActive: e.config.Policy.EnforcePasswordStrength,
		TOTPEnabled:            e.config.TOTP.Enabled,
		AuditEnabled:           e.config.Audit.Enabled,
	}
}
