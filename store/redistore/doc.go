// Package redistore implements the persistence contract on Redis.
//
// Records are stored as JSON blobs under a configurable key prefix, with
// a username index, a per-user token set and plain counters for failed
// logins. Token records carry no Redis TTL: expiry is a policy decision
// of the engine, and soft-invalidated records must survive for audit.
package redistore
