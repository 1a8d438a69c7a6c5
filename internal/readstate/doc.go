// Package readstate tracks per-recipient read, unread, and archive state for
// notification deliveries. All toggles are conditional updates so concurrent
// calls settle on exactly one state change, and unread counts are recomputed
// from live rows on every query.
package readstate
