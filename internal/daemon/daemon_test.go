package daemon_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"tramita/internal/daemon"
	"tramita/internal/store"
	"tramita/internal/testsupport"
)

func TestSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := daemon.New(cfg, st, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, st, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance should fail to acquire the lock")
	}

	first.Stop()
	if first.Running() {
		t.Fatal("Running should be false after Stop")
	}

	// The lock is free again.
	if err := second.Start(ctx); err != nil {
		t.Fatalf("restart after release failed: %v", err)
	}
	second.Stop()
}

func TestSweepExpiredRemovesOldNotifications(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "reader", store.RoleFuncionario, store.WorkspaceCAM)

	past := time.Now().UTC().Add(-time.Hour)
	expired := &store.Notification{
		ID:        uuid.New().String(),
		Title:     "Caducada",
		Content:   "x",
		Type:      store.TypeReminder,
		Priority:  store.PriorityLow,
		CreatedBy: "author",
		ExpiresAt: &past,
	}
	if err := st.CreateNotification(ctx, expired, []store.Delivery{
		{ID: uuid.New().String(), UserID: "reader", Methods: []store.DeliveryMethod{store.MethodBrowser}},
	}); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	live := &store.Notification{
		ID:        uuid.New().String(),
		Title:     "Vigente",
		Content:   "x",
		Type:      store.TypeAnnouncement,
		Priority:  store.PriorityNormal,
		CreatedBy: "author",
	}
	if err := st.CreateNotification(ctx, live, []store.Delivery{
		{ID: uuid.New().String(), UserID: "reader", Methods: []store.DeliveryMethod{store.MethodBrowser}},
	}); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	d, err := daemon.New(cfg, st, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	d.SweepExpired(ctx)

	if gone, err := st.GetNotification(ctx, expired.ID); err != nil || gone != nil {
		t.Fatalf("expired notification should be removed: %v %v", gone, err)
	}
	if kept, err := st.GetNotification(ctx, live.ID); err != nil || kept == nil {
		t.Fatalf("live notification should remain: %v %v", kept, err)
	}

	count, err := st.UnreadCount(ctx, "reader")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread after sweep, got %d", count)
	}
}
