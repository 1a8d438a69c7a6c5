package readstate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"tramita/internal/readstate"
	"tramita/internal/services"
	"tramita/internal/store"
	"tramita/internal/testsupport"
)

type fixture struct {
	tracker *readstate.Tracker
	store   *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "reader", store.RoleFuncionario, store.WorkspaceCAM)
	return &fixture{tracker: readstate.NewTracker(st, nil), store: st}
}

func (f *fixture) notify(t *testing.T, notifType store.NotificationType, recipients ...string) string {
	t.Helper()
	notification := &store.Notification{
		ID:        uuid.New().String(),
		Title:     "Aviso",
		Content:   "contenido",
		Type:      notifType,
		Priority:  store.PriorityNormal,
		CreatedBy: "author",
	}
	deliveries := make([]store.Delivery, 0, len(recipients))
	for _, userID := range recipients {
		deliveries = append(deliveries, store.Delivery{
			ID:      uuid.New().String(),
			UserID:  userID,
			Methods: []store.DeliveryMethod{store.MethodBrowser},
		})
	}
	if err := f.store.CreateNotification(context.Background(), notification, deliveries); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	return notification.ID
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.notify(t, store.TypeAnnouncement, "reader")

	changed, err := f.tracker.MarkRead(ctx, id, "reader")
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if !changed {
		t.Fatal("first MarkRead should report a change")
	}

	count, err := f.tracker.UnreadCount(ctx, "reader")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected unread count 0, got %d", count)
	}

	changed, err = f.tracker.MarkRead(ctx, id, "reader")
	if err != nil {
		t.Fatalf("repeat MarkRead failed: %v", err)
	}
	if changed {
		t.Fatal("repeat MarkRead must be a no-op")
	}
}

func TestMarkReadMissingDelivery(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.MarkRead(context.Background(), "no-such-notification", "reader")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestMarkUnreadRestoresCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.notify(t, store.TypeAnnouncement, "reader")

	if _, err := f.tracker.MarkRead(ctx, id, "reader"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	changed, err := f.tracker.MarkUnread(ctx, id, "reader")
	if err != nil {
		t.Fatalf("MarkUnread failed: %v", err)
	}
	if !changed {
		t.Fatal("MarkUnread should report a change")
	}

	count, err := f.tracker.UnreadCount(ctx, "reader")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected unread count 1, got %d", count)
	}

	delivery, err := f.store.GetDelivery(ctx, id, "reader")
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if delivery.ReadAt != nil {
		t.Fatal("MarkUnread must clear the read timestamp")
	}
}

func TestArchiveAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.notify(t, store.TypeAlert, "reader")

	if _, err := f.tracker.Archive(ctx, id, "reader"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	changed, err := f.tracker.Archive(ctx, id, "reader")
	if err != nil {
		t.Fatalf("repeat Archive failed: %v", err)
	}
	if changed {
		t.Fatal("repeat Archive must be a no-op")
	}

	count, err := f.tracker.UnreadCount(ctx, "reader")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("archived deliveries must not be counted, got %d", count)
	}

	if _, err := f.tracker.Restore(ctx, id, "reader"); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	count, err = f.tracker.UnreadCount(ctx, "reader")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected unread count 1 after restore, got %d", count)
	}
}

func TestMarkAllReadCountsOnlyTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.notify(t, store.TypeAnnouncement, "reader")
	f.notify(t, store.TypeAnnouncement, "reader")
	f.notify(t, store.TypeReminder, "reader")

	if _, err := f.tracker.MarkRead(ctx, first, "reader"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	marked, err := f.tracker.MarkAllRead(ctx, "reader", readstate.Filter{})
	if err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 newly marked deliveries, got %d", marked)
	}

	count, err := f.tracker.UnreadCount(ctx, "reader")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected unread count 0, got %d", count)
	}
}

func TestMarkAllReadWithTypeFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.notify(t, store.TypeAnnouncement, "reader")
	f.notify(t, store.TypeReminder, "reader")

	marked, err := f.tracker.MarkAllRead(ctx, "reader", readstate.Filter{
		Types: []store.NotificationType{store.TypeReminder},
	})
	if err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 marked delivery, got %d", marked)
	}

	count, err := f.tracker.UnreadCount(ctx, "reader")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("announcement should remain unread, count=%d", count)
	}
}

func TestMarkAllReadHonorsCancellation(t *testing.T) {
	f := newFixture(t)

	f.notify(t, store.TypeAnnouncement, "reader")
	f.notify(t, store.TypeAnnouncement, "reader")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	marked, err := f.tracker.MarkAllRead(ctx, "reader", readstate.Filter{})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if marked != 0 {
		t.Fatalf("no deliveries should be marked after pre-cancelled context, got %d", marked)
	}
}

func TestRecordActionSetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.notify(t, store.TypeWorkflow, "reader")

	changed, err := f.tracker.RecordAction(ctx, id, "reader", "approved")
	if err != nil {
		t.Fatalf("RecordAction failed: %v", err)
	}
	if !changed {
		t.Fatal("first RecordAction should report a change")
	}

	changed, err = f.tracker.RecordAction(ctx, id, "reader", "rejected")
	if err != nil {
		t.Fatalf("repeat RecordAction failed: %v", err)
	}
	if changed {
		t.Fatal("second RecordAction must not overwrite the first")
	}

	delivery, err := f.store.GetDelivery(ctx, id, "reader")
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if delivery.ActionTaken != "approved" {
		t.Fatalf("expected first action to win, got %q", delivery.ActionTaken)
	}

	if _, err := f.tracker.RecordAction(ctx, id, "reader", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty action should be rejected, got %v", err)
	}
}
