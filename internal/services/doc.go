// Package services defines shared utilities consumed by the workflow,
// fan-out, and read-state components.
//
// Key responsibilities:
//   - Context helpers that stamp actor IDs and correlation identifiers for
//     logging and auditing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the taxonomy the operation surface exposes (validation,
//     authorization, not-found, invalid transition, conflict, delivery,
//     store).
//
// Use these helpers when wiring new operations so error handling and
// observability stay uniform across components.
package services
