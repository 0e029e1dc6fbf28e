// Package store persists projects, wizard artifacts, users, sessions, and
// license records in SQLite.
//
// The database lives under the configured data directory and is guarded by a
// schema_version table: a version mismatch surfaces ErrSchemaMismatch rather
// than attempting an in-place migration. Project status transitions are
// validated in a single place so the wizard ordering cannot be corrupted by
// concurrent writers.
package store
