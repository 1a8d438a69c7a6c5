package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendAudit records an action in the audit log.
func (s *Store) AppendAudit(ctx context.Context, userID, action string, details map[string]string) error {
	detailsJSON, err := marshalMetadata(details)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO audit_log (user_id, action, details_json, created_at)
         VALUES (?, ?, ?, ?)`,
		userID,
		action,
		detailsJSON,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the most recent audit entries for a user, newest
// first, capped at limit.
func (s *Store) ListAuditEntries(ctx context.Context, userID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, user_id, action, details_json, created_at
         FROM audit_log WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			entry      AuditEntry
			detailsRaw sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &detailsRaw, &createdRaw); err != nil {
			return nil, err
		}
		entry.Details = unmarshalMetadata(detailsRaw)
		if created, err := parseTimeString(createdRaw.String); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
