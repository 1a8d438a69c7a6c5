// Package logging centralizes slog construction and conventions for Tramita.
//
// It builds console or JSON handlers from configuration, standardizes
// structured field keys (component, actor_id, document_id, notification_id),
// and extracts context-carried attributes so every component logs the same
// shape. Tests use NewNop to silence output.
package logging
