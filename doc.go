// Package authport provides a token-based authentication engine with a
// pluggable persistence port. It covers credential verification, JWT
// issuance and validation, rolling-window token refresh, single-token and
// global revocation, TOTP step-up, and the password policy surrounding
// login.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authport is the public surface. It exposes [Engine], [Builder],
// [Config], the [Store] persistence contract, and value types
// (AuthResult, LoginOutcome, TokenInfo). Storage backends live under
// store/ and depend on this package, never the other way around.
//
// # What this package must NOT do
//
//   - Keep per-request state on the Engine. The verified user and payload
//     travel in the return value of [Engine.VerifyToken] and, for HTTP
//     handlers, in the request context via [WithAuthResult].
//   - Retry persistence failures. Retries, if any, belong to the Store
//     implementation's transport layer.
//   - Treat a bad token as a server error. Verification failures collapse
//     to [ErrTokenInvalid] so one malformed token never takes down
//     request handling.
package authport
