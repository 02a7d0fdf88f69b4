// Package pgstore implements the persistence contract on PostgreSQL via
// pgx. The schema is owned by this package; EnsureSchema creates it
// idempotently. Token rows reference their owner by value with no
// foreign key, so identity rotation orphans them instead of cascading.
package pgstore
