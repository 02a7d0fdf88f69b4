package password

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
)

// Legacy is the deterministic HMAC-SHA512 scheme: same password, same
// digest, no per-user salt. It exists for verification of pre-existing
// digests and for deployments that still require the deterministic
// contract; everything else should let [Hasher] pick argon2id.
type Legacy struct {
	salt []byte
}

// NewLegacy keys the scheme with the configured salt constant.
func NewLegacy(salt string) *Legacy {
	return &Legacy{salt: []byte(salt)}
}

// Hash computes base64(HMAC-SHA512(salt, password)).
func (l *Legacy) Hash(password string) string {
	mac := hmac.New(sha512.New, l.salt)
	_, _ = mac.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify rehashes the candidate and compares in constant time.
func (l *Legacy) Verify(password, digest string) bool {
	computed := l.Hash(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
