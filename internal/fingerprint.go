package internal

import (
	"crypto/sha256"
	"encoding/base64"
)

// FingerprintDigest reduces a stored password digest to a short opaque
// fingerprint. The fingerprint travels inside token payloads so that a
// server-side password change orphans older tokens; hashing here keeps the
// actual digest out of anything a client can read.
func FingerprintDigest(digest string) string {
	sum := sha256.Sum256([]byte(digest))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
