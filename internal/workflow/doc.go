// Package workflow drives documents through their status lifecycle. The
// transition table is closed, each edge requires a capability from the
// permission engine, and concurrent writers are serialized per document with
// optimistic versioning.
package workflow
