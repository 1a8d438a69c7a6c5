package readstate

import (
	"context"
	"log/slog"

	"tramita/internal/logging"
	"tramita/internal/services"
	"tramita/internal/store"
)

// Deliveries is the slice of the store the tracker mutates. Conditional
// updates report whether a row actually changed, which is what makes the
// toggles idempotent under concurrent calls.
type Deliveries interface {
	GetDelivery(ctx context.Context, notificationID, userID string) (*store.Delivery, error)
	MarkDeliveryRead(ctx context.Context, notificationID, userID string) (bool, error)
	MarkDeliveryUnread(ctx context.Context, notificationID, userID string) (bool, error)
	ArchiveDelivery(ctx context.Context, notificationID, userID string) (bool, error)
	RestoreDelivery(ctx context.Context, notificationID, userID string) (bool, error)
	ListUnreadDeliveries(ctx context.Context, userID string, types []store.NotificationType) ([]store.Delivery, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	RecordAction(ctx context.Context, notificationID, userID, action string) (bool, error)
}

// Tracker owns all mutation of per-recipient delivery state.
type Tracker struct {
	deliveries Deliveries
	logger     *slog.Logger
}

func NewTracker(deliveries Deliveries, logger *slog.Logger) *Tracker {
	return &Tracker{
		deliveries: deliveries,
		logger:     logging.NewComponentLogger(logger, "readstate"),
	}
}

// toggle runs one conditional update and distinguishes "already in the target
// state" from "no such delivery". The first is a quiet no-op, the second is a
// not-found error.
func (t *Tracker) toggle(ctx context.Context, op, notificationID, userID string,
	apply func(context.Context, string, string) (bool, error)) (bool, error) {

	changed, err := apply(ctx, notificationID, userID)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "readstate", op, "update delivery", err)
	}
	if changed {
		return true, nil
	}

	delivery, err := t.deliveries.GetDelivery(ctx, notificationID, userID)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "readstate", op, "verify delivery", err)
	}
	if delivery == nil {
		return false, services.Wrap(services.ErrNotFound, "readstate", op,
			"no delivery for notification "+notificationID+" and user "+userID, nil)
	}
	return false, nil
}

// MarkRead sets the read flag exactly once. The returned bool reports whether
// this call performed the transition; repeat calls return false without error
// and leave the read timestamp untouched.
func (t *Tracker) MarkRead(ctx context.Context, notificationID, userID string) (bool, error) {
	return t.toggle(ctx, "mark_read", notificationID, userID, t.deliveries.MarkDeliveryRead)
}

// MarkUnread clears the read flag and timestamp, symmetric to MarkRead.
func (t *Tracker) MarkUnread(ctx context.Context, notificationID, userID string) (bool, error) {
	return t.toggle(ctx, "mark_unread", notificationID, userID, t.deliveries.MarkDeliveryUnread)
}

// Archive hides a delivery from the unread count without touching read state.
func (t *Tracker) Archive(ctx context.Context, notificationID, userID string) (bool, error) {
	return t.toggle(ctx, "archive", notificationID, userID, t.deliveries.ArchiveDelivery)
}

// Restore undoes Archive.
func (t *Tracker) Restore(ctx context.Context, notificationID, userID string) (bool, error) {
	return t.toggle(ctx, "restore", notificationID, userID, t.deliveries.RestoreDelivery)
}

// Filter narrows MarkAllRead to a subset of notification types. The zero
// value matches every unread delivery.
type Filter struct {
	Types []store.NotificationType
}

// MarkAllRead marks every matching unread delivery for userID and returns the
// count actually transitioned. A failure on one record is logged and skipped.
// Cancellation between records stops the scan; records already marked stay
// marked.
func (t *Tracker) MarkAllRead(ctx context.Context, userID string, filter Filter) (int, error) {
	unread, err := t.deliveries.ListUnreadDeliveries(ctx, userID, filter.Types)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "readstate", "mark_all_read", "list unread deliveries", err)
	}

	marked := 0
	for _, delivery := range unread {
		if err := ctx.Err(); err != nil {
			return marked, services.Wrap(services.ErrStore, "readstate", "mark_all_read", "cancelled", err)
		}
		changed, err := t.deliveries.MarkDeliveryRead(ctx, delivery.NotificationID, userID)
		if err != nil {
			t.logger.Warn("skipping delivery after mark failure",
				logging.String(logging.FieldNotificationID, delivery.NotificationID),
				logging.String(logging.FieldUserID, userID),
				logging.Error(err))
			continue
		}
		if changed {
			marked++
		}
	}
	return marked, nil
}

// UnreadCount reports the live number of unread, unarchived deliveries. The
// count is recomputed per call so it can never drift from the rows.
func (t *Tracker) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := t.deliveries.UnreadCount(ctx, userID)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "readstate", "unread_count", "count deliveries", err)
	}
	return count, nil
}

// RecordAction stores the action a recipient took on a notification. The
// first action wins; later calls are no-ops.
func (t *Tracker) RecordAction(ctx context.Context, notificationID, userID, action string) (bool, error) {
	if action == "" {
		return false, services.Wrap(services.ErrValidation, "readstate", "record_action", "action is required", nil)
	}
	return t.toggle(ctx, "record_action", notificationID, userID,
		func(ctx context.Context, nid, uid string) (bool, error) {
			return t.deliveries.RecordAction(ctx, nid, uid, action)
		})
}
