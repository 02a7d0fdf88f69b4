// Package memstore is the in-memory reference implementation of the
// persistence contract. It exists for tests and examples; nothing is
// persisted across process restarts.
package memstore
