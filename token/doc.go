// Package token encodes and decodes the signed claim set the engine
// issues. It owns nothing but the wire format: jti generation, payload
// lifetimes and revocation all belong to the caller.
//
// Decode failures map onto exactly three sentinel errors (expired,
// immature, malformed), and every one of them is a local recovery for the
// caller, never a server error.
package token
