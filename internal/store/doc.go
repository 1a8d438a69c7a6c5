// Package store persists the municipal data model in SQLite and exposes the
// query primitives the domain components build on.
//
// The Store manages database connections, schema initialization, the user
// directory, documents with optimistic version guards, notifications with
// atomically created delivery sets, conditional read/archive toggles, and the
// audit log. Writes retry on SQLITE_BUSY with bounded backoff.
//
// Ownership is split by caller: documents mutate only through the workflow,
// notifications and their delivery sets are created only by the fan-out, and
// delivery state changes only through the read-state tracker. The store itself
// enforces the low-level invariants (unique notification×recipient pairs,
// cascade deletes, version-guarded updates) and leaves policy to those
// components.
//
// Treat this package as the single source of truth for schema semantics; when
// you add statuses or columns, update schema.sql and bump schemaVersion.
package store
