// Package password implements the credential hashing schemes the engine
// verifies against.
//
// Two schemes coexist. The legacy scheme is a deterministic HMAC-SHA512
// digest keyed by a fixed salt constant, weak by modern standards and
// kept only so digests from older deployments keep verifying. New hashes
// use argon2id with a per-user random salt in PHC string format. Verify
// dispatches on the stored format, which is the whole migration path:
// rehash on the next successful login and the legacy digest disappears.
package password
