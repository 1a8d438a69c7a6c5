package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const deliveryColumns = "id, notification_id, user_id, is_read, read_at, is_archived, archived_at, methods, delivered_at, action_taken, action_taken_at"

const deliveryJoinColumns = `d.id, d.notification_id, d.user_id, d.is_read, d.read_at,
        d.is_archived, d.archived_at, d.methods, d.delivered_at, d.action_taken, d.action_taken_at,
        n.id, n.title, n.content, n.type, n.priority, n.created_by, n.created_at, n.expires_at,
        n.recipient_count, n.metadata_json`

// GetDelivery fetches the delivery record for one notification×recipient pair.
// Returns nil when absent.
func (s *Store) GetDelivery(ctx context.Context, notificationID, userID string) (*Delivery, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+deliveryColumns+` FROM deliveries WHERE notification_id = ? AND user_id = ?`,
		notificationID, userID)
	delivery, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return delivery, nil
}

// MarkDeliveryRead flips is_read to true for the pair, setting read_at on the
// first transition only. The conditional WHERE makes concurrent callers race
// safely: exactly one observes an affected row.
func (s *Store) MarkDeliveryRead(ctx context.Context, notificationID, userID string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE deliveries SET is_read = 1, read_at = ?
         WHERE notification_id = ? AND user_id = ? AND is_read = 0`,
		time.Now().UTC().Format(time.RFC3339Nano),
		notificationID,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark delivery read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark delivery read: %w", err)
	}
	return affected > 0, nil
}

// MarkDeliveryUnread is the symmetric toggle, clearing read_at.
func (s *Store) MarkDeliveryUnread(ctx context.Context, notificationID, userID string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE deliveries SET is_read = 0, read_at = NULL
         WHERE notification_id = ? AND user_id = ? AND is_read = 1`,
		notificationID,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark delivery unread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark delivery unread: %w", err)
	}
	return affected > 0, nil
}

// ArchiveDelivery sets is_archived with its own timestamp, independent of read
// state.
func (s *Store) ArchiveDelivery(ctx context.Context, notificationID, userID string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE deliveries SET is_archived = 1, archived_at = ?
         WHERE notification_id = ? AND user_id = ? AND is_archived = 0`,
		time.Now().UTC().Format(time.RFC3339Nano),
		notificationID,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("archive delivery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("archive delivery: %w", err)
	}
	return affected > 0, nil
}

// RestoreDelivery clears the archive flag and timestamp.
func (s *Store) RestoreDelivery(ctx context.Context, notificationID, userID string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE deliveries SET is_archived = 0, archived_at = NULL
         WHERE notification_id = ? AND user_id = ? AND is_archived = 1`,
		notificationID,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("restore delivery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("restore delivery: %w", err)
	}
	return affected > 0, nil
}

// ListUnreadDeliveries enumerates a recipient's unread, unarchived delivery
// records, optionally restricted to one notification type.
func (s *Store) ListUnreadDeliveries(ctx context.Context, userID string, types []NotificationType) ([]Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries
        WHERE user_id = ? AND is_read = 0 AND is_archived = 0`
	args := []any{userID}
	if len(types) > 0 {
		placeholders := makePlaceholders(len(types))
		query = `SELECT d.id, d.notification_id, d.user_id, d.is_read, d.read_at,
            d.is_archived, d.archived_at, d.methods, d.delivered_at, d.action_taken, d.action_taken_at
            FROM deliveries d
            JOIN notifications n ON n.id = d.notification_id
            WHERE d.user_id = ? AND d.is_read = 0 AND d.is_archived = 0
            AND n.type IN (` + placeholders + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unread deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *delivery)
	}
	return deliveries, rows.Err()
}

// UnreadCount returns the number of unread, unarchived deliveries for a
// recipient. Always recomputed from live rows.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM deliveries WHERE user_id = ? AND is_read = 0 AND is_archived = 0`,
		userID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread deliveries: %w", err)
	}
	return count, nil
}

// MarkDelivered stamps delivered_at after a channel dispatch attempt.
func (s *Store) MarkDelivered(ctx context.Context, notificationID, userID string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE deliveries SET delivered_at = ?
         WHERE notification_id = ? AND user_id = ? AND delivered_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano),
		notificationID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// RecordAction stores the action a recipient took from a notification. Set
// once; later calls do not overwrite the first action.
func (s *Store) RecordAction(ctx context.Context, notificationID, userID, action string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE deliveries SET action_taken = ?, action_taken_at = ?
         WHERE notification_id = ? AND user_id = ? AND action_taken IS NULL`,
		action,
		time.Now().UTC().Format(time.RFC3339Nano),
		notificationID,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("record action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record action: %w", err)
	}
	return affected > 0, nil
}

func scanDelivery(scanner interface{ Scan(dest ...any) error }) (*Delivery, error) {
	var (
		id             string
		notificationID string
		userID         string
		isRead         int
		readRaw        sql.NullString
		isArchived     int
		archivedRaw    sql.NullString
		methodsRaw     sql.NullString
		deliveredRaw   sql.NullString
		actionTaken    sql.NullString
		actionRaw      sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&notificationID,
		&userID,
		&isRead,
		&readRaw,
		&isArchived,
		&archivedRaw,
		&methodsRaw,
		&deliveredRaw,
		&actionTaken,
		&actionRaw,
	); err != nil {
		return nil, err
	}

	return &Delivery{
		ID:             id,
		NotificationID: notificationID,
		UserID:         userID,
		IsRead:         isRead != 0,
		ReadAt:         timePtr(readRaw),
		IsArchived:     isArchived != 0,
		ArchivedAt:     timePtr(archivedRaw),
		Methods:        splitMethods(methodsRaw.String),
		DeliveredAt:    timePtr(deliveredRaw),
		ActionTaken:    actionTaken.String,
		ActionTakenAt:  timePtr(actionRaw),
	}, nil
}

func scanUserNotification(scanner interface{ Scan(dest ...any) error }) (*UserNotification, error) {
	var (
		dID            string
		notificationID string
		userID         string
		isRead         int
		readRaw        sql.NullString
		isArchived     int
		archivedRaw    sql.NullString
		methodsRaw     sql.NullString
		deliveredRaw   sql.NullString
		actionTaken    sql.NullString
		actionRaw      sql.NullString

		nID            string
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
		&dID,
		&notificationID,
		&userID,
		&isRead,
		&readRaw,
		&isArchived,
		&archivedRaw,
		&methodsRaw,
		&deliveredRaw,
		&actionTaken,
		&actionRaw,
		&nID,
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

	entry := &UserNotification{
		Delivery: Delivery{
			ID:             dID,
			NotificationID: notificationID,
			UserID:         userID,
			IsRead:         isRead != 0,
			ReadAt:         timePtr(readRaw),
			IsArchived:     isArchived != 0,
			ArchivedAt:     timePtr(archivedRaw),
			Methods:        splitMethods(methodsRaw.String),
			DeliveredAt:    timePtr(deliveredRaw),
			ActionTaken:    actionTaken.String,
			ActionTakenAt:  timePtr(actionRaw),
		},
		Notification: Notification{
			ID:             nID,
			Title:          title.String,
			Content:        content.String,
			Type:           NotificationType(typeStr),
			Priority:       Priority(priorityStr),
			CreatedBy:      createdBy,
			RecipientCount: recipientCount,
			Metadata:       unmarshalMetadata(metadataRaw),
		},
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.Notification.CreatedAt = created
	}
	entry.Notification.ExpiresAt = timePtr(expiresRaw)
	return entry, nil
}
