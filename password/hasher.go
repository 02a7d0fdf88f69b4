package password

import (
	"errors"
	"strings"
)

// Config selects and parameterizes the schemes behind [Hasher].
type Config struct {
	LegacySalt   string
	PreferLegacy bool
	Argon2       Argon2Config
}

// Hasher fronts both schemes. Hash produces the preferred scheme; Verify
// dispatches on the stored digest format so both keep verifying during a
// migration.
type Hasher struct {
	legacy       *Legacy
	argon        *Argon2
	preferLegacy bool
}

// NewHasher wires both schemes from cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.LegacySalt == "" {
		return nil, errors.New("legacy salt must not be empty")
	}
	argon, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		legacy:       NewLegacy(cfg.LegacySalt),
		argon:        argon,
		preferLegacy: cfg.PreferLegacy,
	}, nil
}

// Hash derives a digest in the preferred scheme.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	if h.preferLegacy {
		return h.legacy.Hash(password), nil
	}
	return h.argon.Hash(password)
}

// Verify checks the candidate against a stored digest of either scheme.
func (h *Hasher) Verify(password, stored string) (bool, error) {
	if password == "" || stored == "" {
		return false, nil
	}
	if strings.HasPrefix(stored, phcPrefix) {
		return h.argon.Verify(password, stored)
	}
	return h.legacy.Verify(password, stored), nil
}

// NeedsUpgrade reports whether the stored digest should be rehashed under
// the current configuration: any legacy digest when argon2id is preferred,
// or an argon2id digest with weaker cost parameters.
func (h *Hasher) NeedsUpgrade(stored string) bool {
	if stored == "" {
		return false
	}
	if !strings.HasPrefix(stored, phcPrefix) {
		return !h.preferLegacy
	}
	rehash, err := h.argon.NeedsRehash(stored)
	if err != nil {
		return false
	}
	return rehash
}
