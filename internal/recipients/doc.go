// Package recipients resolves declarative audience specifications into
// deduplicated sets of active user ids.
package recipients
