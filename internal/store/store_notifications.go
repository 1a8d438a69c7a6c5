package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const notificationColumns = "id, title, content, type, priority, created_by, created_at, expires_at, recipient_count, metadata_json"

// CreateNotification persists a notification together with its full delivery
// set in one transaction, so a partially fanned-out recipient list is never
// observable. RecipientCount is derived from the delivery rows.
func (s *Store) CreateNotification(ctx context.Context, notification *Notification, deliveries []Delivery) error {
	if notification == nil {
		return errors.New("notification is nil")
	}
	ctx = ensureContext(ctx)

	now := time.Now().UTC()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	notification.RecipientCount = len(deliveries)

	metadata, err := marshalMetadata(notification.Metadata)
	if err != nil {
		return err
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin notification tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO notifications (
                id, title, content, type, priority, created_by,
                created_at, expires_at, recipient_count, metadata_json
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			notification.ID,
			notification.Title,
			notification.Content,
			string(notification.Type),
			string(notification.Priority),
			notification.CreatedBy,
			notification.CreatedAt.Format(time.RFC3339Nano),
			nullableTime(notification.ExpiresAt),
			notification.RecipientCount,
			metadata,
		); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}

		for i := range deliveries {
			d := &deliveries[i]
			d.NotificationID = notification.ID
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO deliveries (
                    id, notification_id, user_id, is_read, read_at,
                    is_archived, archived_at, methods, delivered_at,
                    action_taken, action_taken_at
                ) VALUES (?, ?, ?, 0, NULL, 0, NULL, ?, ?, NULL, NULL)`,
				d.ID,
				d.NotificationID,
				d.UserID,
				joinMethods(d.Methods),
				nullableTime(d.DeliveredAt),
			); err != nil {
				return fmt.Errorf("insert delivery for %s: %w", d.UserID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit notification: %w", err)
		}
		return nil
	})
}

// GetNotification fetches a notification by identifier. Returns nil when absent.
func (s *Store) GetNotification(ctx context.Context, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	notification, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return notification, nil
}

// NotificationFilter narrows inbox listings for one recipient.
type NotificationFilter struct {
	UnreadOnly      bool
	IncludeArchived bool
	Types           []NotificationType
	Priorities      []Priority
	Limit           int
	Offset          int
}

// ListUserNotifications returns a recipient's delivery records joined with
// their parent notifications, newest first.
func (s *Store) ListUserNotifications(ctx context.Context, userID string, filter NotificationFilter) ([]UserNotification, error) {
	clauses := []string{"d.user_id = ?"}
	args := []any{userID}

	if filter.UnreadOnly {
		clauses = append(clauses, "d.is_read = 0")
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "d.is_archived = 0")
	}
	if len(filter.Types) > 0 {
		placeholders := makePlaceholders(len(filter.Types))
		clauses = append(clauses, "n.type IN ("+placeholders+")")
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if len(filter.Priorities) > 0 {
		placeholders := makePlaceholders(len(filter.Priorities))
		clauses = append(clauses, "n.priority IN ("+placeholders+")")
		for _, p := range filter.Priorities {
			args = append(args, string(p))
		}
	}

	query := `SELECT ` + deliveryJoinColumns + `
        FROM deliveries d
        JOIN notifications n ON n.id = d.notification_id
        WHERE ` + strings.Join(clauses, " AND ") + `
        ORDER BY n.created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user notifications: %w", err)
	}
	defer rows.Close()

	var results []UserNotification
	for rows.Next() {
		entry, err := scanUserNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *entry)
	}
	return results, rows.Err()
}

// DeleteExpired removes notifications whose expiry has passed. Delivery rows
// cascade with the parent.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < ?`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	return res.RowsAffected()
}

// Statistics aggregates notification and delivery counts for a period.
type Statistics struct {
	Since              time.Time
	TotalNotifications int
	TotalDeliveries    int
	ReadDeliveries     int
	ByType             map[NotificationType]int
	ByPriority         map[Priority]int
}

// NotificationStatistics computes aggregates over notifications created at or
// after since. Counts are recomputed per call from live rows.
func (s *Store) NotificationStatistics(ctx context.Context, since time.Time) (*Statistics, error) {
	ctx = ensureContext(ctx)
	cutoff := since.UTC().Format(time.RFC3339Nano)

	stats := &Statistics{
		Since:      since,
		ByType:     make(map[NotificationType]int),
		ByPriority: make(map[Priority]int),
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notifications WHERE created_at >= ?`, cutoff)
	if err := row.Scan(&stats.TotalNotifications); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(d.is_read), 0)
         FROM deliveries d
         JOIN notifications n ON n.id = d.notification_id
         WHERE n.created_at >= ?`, cutoff)
	if err := row.Scan(&stats.TotalDeliveries, &stats.ReadDeliveries); err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(1) FROM notifications WHERE created_at >= ? GROUP BY type`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("group by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typeStr string
		var count int
		if err := rows.Scan(&typeStr, &count); err != nil {
			return nil, err
		}
		stats.ByType[NotificationType(typeStr)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prioRows, err := s.db.QueryContext(ctx,
		`SELECT priority, COUNT(1) FROM notifications WHERE created_at >= ? GROUP BY priority`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("group by priority: %w", err)
	}
	defer prioRows.Close()
	for prioRows.Next() {
		var prioStr string
		var count int
		if err := prioRows.Scan(&prioStr, &count); err != nil {
			return nil, err
		}
		stats.ByPriority[Priority(prioStr)] = count
	}
	return stats, prioRows.Err()
}

func scanNotification(scanner interface{ Scan(dest ...any) error }) (*Notification, error) {
	var (
		id             string
		title          sql.NullString
		content        sql.NullString
		typeStr        string
		priorityStr    string
		createdBy      string
		createdRaw     sql.NullString
		expiresRaw     sql.NullString
		recipientCount int
		metadataRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&title,
		&content,
		&typeStr,
		&priorityStr,
		&createdBy,
		&createdRaw,
		&expiresRaw,
		&recipientCount,
		&metadataRaw,
	); err != nil {
		return nil, err
	}

	notification := &Notification{
		ID:             id,
		Title:          title.String,
		Content:        content.String,
		Type:           NotificationType(typeStr),
		Priority:       Priority(priorityStr),
		CreatedBy:      createdBy,
		RecipientCount: recipientCount,
		Metadata:       unmarshalMetadata(metadataRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		notification.CreatedAt = created
	}
	notification.ExpiresAt = timePtr(expiresRaw)
	return notification, nil
}
