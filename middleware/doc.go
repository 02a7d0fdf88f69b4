// Package middleware provides net/http wrappers around the engine:
// bearer token extraction, client IP propagation and role guarding.
// The verified result travels on the request context, never on shared
// state.
package middleware
