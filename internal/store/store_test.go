package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"tramita/internal/store"
	"tramita/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedUser(t, st, "alice", store.RoleSecretario, store.WorkspaceCAM)

	user, err := st.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user == nil || user.Role != store.RoleSecretario || !user.Active {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestListUsersFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "sec-1", store.RoleSecretarioCF, store.WorkspaceComisionesCF)
	testsupport.SeedUser(t, st, "sec-2", store.RoleSecretarioCF, store.WorkspaceComisionesCF)
	testsupport.SeedUser(t, st, "mem-1", store.RoleCFMember, store.WorkspaceComisionesCF)
	testsupport.SeedInactiveUser(t, st, "sec-3", store.RoleSecretarioCF, store.WorkspaceComisionesCF)

	users, err := st.ListUsers(ctx, store.UserFilter{
		Roles:      []store.Role{store.RoleSecretarioCF},
		ActiveOnly: true,
	})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 active secretaries, got %d", len(users))
	}
	for _, u := range users {
		if u.Role != store.RoleSecretarioCF || !u.Active {
			t.Fatalf("unexpected user in result: %#v", u)
		}
	}

	byWorkspace, err := st.ListUsers(ctx, store.UserFilter{
		Workspaces: []store.Workspace{store.WorkspaceComisionesCF},
		ActiveOnly: true,
	})
	if err != nil {
		t.Fatalf("ListUsers by workspace failed: %v", err)
	}
	if len(byWorkspace) != 3 {
		t.Fatalf("expected 3 active workspace members, got %d", len(byWorkspace))
	}
}

func TestDocumentLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleFuncionario, store.WorkspaceCAM)

	doc, err := st.CreateDocument(ctx, "Acta 14/2026", store.WorkspaceCAM, "author", "")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if doc.Status != store.StatusDraft {
		t.Fatalf("expected draft status, got %s", doc.Status)
	}
	if doc.Version.String() != "1.0.0" {
		t.Fatalf("expected version 1.0.0, got %s", doc.Version)
	}

	affected, err := st.UpdateDocumentStatus(ctx, doc.ID, store.StatusPendingReview, doc.Status, doc.Version)
	if err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected row, got %d", affected)
	}

	updated, err := st.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if updated.Status != store.StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", updated.Status)
	}
}

func TestUpdateDocumentStatusVersionGuard(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleFuncionario, store.WorkspaceCAM)
	doc, err := st.CreateDocument(ctx, "Resolución 3", store.WorkspaceCAM, "author", "")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	stale := store.Version{Major: 0, Minor: 9, Patch: 9}
	affected, err := st.UpdateDocumentStatus(ctx, doc.ID, store.StatusPendingReview, doc.Status, stale)
	if err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected version guard to reject stale write, affected=%d", affected)
	}

	current, err := st.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if current.Status != store.StatusDraft {
		t.Fatalf("status should be unchanged, got %s", current.Status)
	}
}

func TestUpdateDocumentStatusSerializesWritersFromSameRead(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleFuncionario, store.WorkspaceCAM)
	doc, err := st.CreateDocument(ctx, "Dictamen 7", store.WorkspaceCAM, "author", "")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	// Two writers share the same read: draft at 1.0.0. Transitions do not
	// advance the version, so only the status guard can reject the loser.
	first, err := st.UpdateDocumentStatus(ctx, doc.ID, store.StatusPendingReview, doc.Status, doc.Version)
	if err != nil {
		t.Fatalf("first UpdateDocumentStatus failed: %v", err)
	}
	if first != 1 {
		t.Fatalf("first writer should commit, affected=%d", first)
	}

	second, err := st.UpdateDocumentStatus(ctx, doc.ID, store.StatusRejected, doc.Status, doc.Version)
	if err != nil {
		t.Fatalf("second UpdateDocumentStatus failed: %v", err)
	}
	if second != 0 {
		t.Fatalf("stale writer must be rejected, affected=%d", second)
	}

	current, err := st.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if current.Status != store.StatusPendingReview {
		t.Fatalf("first writer's edge should stand, got %s", current.Status)
	}
}

func TestUpdateDocumentContentBumpsVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleFuncionario, store.WorkspaceCAM)
	doc, err := st.CreateDocument(ctx, "Borrador", store.WorkspaceCAM, "author", "")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	next := doc.Version.Bump(store.BumpMinor)
	affected, err := st.UpdateDocumentContent(ctx, doc.ID, "Borrador v2", next, doc.Version)
	if err != nil {
		t.Fatalf("UpdateDocumentContent failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected row, got %d", affected)
	}

	updated, err := st.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if updated.Version.String() != "1.1.0" {
		t.Fatalf("expected version 1.1.0, got %s", updated.Version)
	}
	if updated.Title != "Borrador v2" {
		t.Fatalf("expected updated title, got %q", updated.Title)
	}
}

func seedNotification(t *testing.T, st *store.Store, recipients ...string) *store.Notification {
	t.Helper()

	notification := &store.Notification{
		ID:        uuid.New().String(),
		Title:     "Sesión ordinaria",
		Content:   "Convocatoria para la sesión del jueves",
		Type:      store.TypeAnnouncement,
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
	if err := st.CreateNotification(context.Background(), notification, deliveries); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	return notification
}

func TestCreateNotificationRequiresKnownCreator(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "r1", store.RoleCFMember, store.WorkspaceComisionesCF)

	notification := &store.Notification{
		ID:        uuid.New().String(),
		Title:     "Huérfana",
		Content:   "Sin autor en el directorio",
		Type:      store.TypeAlert,
		Priority:  store.PriorityNormal,
		CreatedBy: "nadie",
	}
	deliveries := []store.Delivery{{
		ID:      uuid.New().String(),
		UserID:  "r1",
		Methods: []store.DeliveryMethod{store.MethodBrowser},
	}}
	if err := st.CreateNotification(ctx, notification, deliveries); err == nil {
		t.Fatal("creator outside the user directory must be rejected")
	}

	stored, err := st.GetNotification(ctx, notification.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if stored != nil {
		t.Fatal("rejected notification must not persist")
	}
}

func TestCreateNotificationSetsRecipientCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "r1", store.RoleCFMember, store.WorkspaceComisionesCF)
	testsupport.SeedUser(t, st, "r2", store.RoleCFMember, store.WorkspaceComisionesCF)

	notification := seedNotification(t, st, "r1", "r2")
	if notification.RecipientCount != 2 {
		t.Fatalf("expected recipient count 2, got %d", notification.RecipientCount)
	}

	stored, err := st.GetNotification(ctx, notification.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if stored.RecipientCount != 2 {
		t.Fatalf("expected stored recipient count 2, got %d", stored.RecipientCount)
	}

	for _, userID := range []string{"r1", "r2"} {
		delivery, err := st.GetDelivery(ctx, notification.ID, userID)
		if err != nil {
			t.Fatalf("GetDelivery failed: %v", err)
		}
		if delivery == nil || delivery.IsRead {
			t.Fatalf("expected unread delivery for %s, got %#v", userID, delivery)
		}
	}
}

func TestCreateNotificationRollsBackOnDuplicateRecipient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "r1", store.RoleCFMember, store.WorkspaceComisionesCF)

	notification := &store.Notification{
		ID:        uuid.New().String(),
		Title:     "Duplicada",
		Content:   "x",
		Type:      store.TypeAlert,
		Priority:  store.PriorityNormal,
		CreatedBy: "author",
	}
	deliveries := []store.Delivery{
		{ID: uuid.New().String(), UserID: "r1", Methods: []store.DeliveryMethod{store.MethodBrowser}},
		{ID: uuid.New().String(), UserID: "r1", Methods: []store.DeliveryMethod{store.MethodBrowser}},
	}
	if err := st.CreateNotification(ctx, notification, deliveries); err == nil {
		t.Fatal("expected unique constraint violation")
	}

	stored, err := st.GetNotification(ctx, notification.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if stored != nil {
		t.Fatal("expected atomic rollback to remove the notification row")
	}
}

func TestMarkDeliveryReadIsConditional(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "r1", store.RoleCFMember, store.WorkspaceComisionesCF)
	notification := seedNotification(t, st, "r1")

	changed, err := st.MarkDeliveryRead(ctx, notification.ID, "r1")
	if err != nil {
		t.Fatalf("MarkDeliveryRead failed: %v", err)
	}
	if !changed {
		t.Fatal("first mark should report a state change")
	}

	first, err := st.GetDelivery(ctx, notification.ID, "r1")
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if !first.IsRead || first.ReadAt == nil {
		t.Fatalf("expected read delivery with timestamp, got %#v", first)
	}

	changed, err = st.MarkDeliveryRead(ctx, notification.ID, "r1")
	if err != nil {
		t.Fatalf("second MarkDeliveryRead failed: %v", err)
	}
	if changed {
		t.Fatal("second mark should be a no-op")
	}

	second, err := st.GetDelivery(ctx, notification.ID, "r1")
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if !second.ReadAt.Equal(*first.ReadAt) {
		t.Fatalf("read_at changed on repeat mark: %v vs %v", second.ReadAt, first.ReadAt)
	}
}

func TestArchiveIndependentOfReadState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "r1", store.RoleCFMember, store.WorkspaceComisionesCF)
	notification := seedNotification(t, st, "r1")

	if _, err := st.ArchiveDelivery(ctx, notification.ID, "r1"); err != nil {
		t.Fatalf("ArchiveDelivery failed: %v", err)
	}

	delivery, err := st.GetDelivery(ctx, notification.ID, "r1")
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if !delivery.IsArchived || delivery.IsRead {
		t.Fatalf("archive should not touch read state: %#v", delivery)
	}

	count, err := st.UnreadCount(ctx, "r1")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("archived deliveries must not count as unread, got %d", count)
	}

	if _, err := st.RestoreDelivery(ctx, notification.ID, "r1"); err != nil {
		t.Fatalf("RestoreDelivery failed: %v", err)
	}
	count, err = st.UnreadCount(ctx, "r1")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("restored unread delivery should count, got %d", count)
	}
}

func TestDeleteExpiredCascadesDeliveries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "r1", store.RoleCFMember, store.WorkspaceComisionesCF)

	past := time.Now().UTC().Add(-time.Hour)
	notification := &store.Notification{
		ID:        uuid.New().String(),
		Title:     "Caducada",
		Content:   "x",
		Type:      store.TypeReminder,
		Priority:  store.PriorityLow,
		CreatedBy: "author",
		ExpiresAt: &past,
	}
	deliveries := []store.Delivery{
		{ID: uuid.New().String(), UserID: "r1", Methods: []store.DeliveryMethod{store.MethodBrowser}},
	}
	if err := st.CreateNotification(ctx, notification, deliveries); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	removed, err := st.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired notification removed, got %d", removed)
	}

	delivery, err := st.GetDelivery(ctx, notification.ID, "r1")
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if delivery != nil {
		t.Fatal("expected delivery rows to cascade with the parent")
	}
}

func TestNotificationStatistics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUser(t, st, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, st, "r1", store.RoleCFMember, store.WorkspaceComisionesCF)
	testsupport.SeedUser(t, st, "r2", store.RoleCFMember, store.WorkspaceComisionesCF)

	notification := seedNotification(t, st, "r1", "r2")
	if _, err := st.MarkDeliveryRead(ctx, notification.ID, "r1"); err != nil {
		t.Fatalf("MarkDeliveryRead failed: %v", err)
	}

	stats, err := st.NotificationStatistics(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("NotificationStatistics failed: %v", err)
	}
	if stats.TotalNotifications != 1 {
		t.Fatalf("expected 1 notification, got %d", stats.TotalNotifications)
	}
	if stats.TotalDeliveries != 2 || stats.ReadDeliveries != 1 {
		t.Fatalf("unexpected delivery counts: %+v", stats)
	}
	if stats.ByType[store.TypeAnnouncement] != 1 {
		t.Fatalf("unexpected type breakdown: %v", stats.ByType)
	}
	if stats.ByPriority[store.PriorityNormal] != 1 {
		t.Fatalf("unexpected priority breakdown: %v", stats.ByPriority)
	}
}

func TestAuditLogRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.AppendAudit(ctx, "alice", "document.transition", map[string]string{
		"document_id": "d-1",
		"target":      "pending_review",
	}); err != nil {
		t.Fatalf("AppendAudit failed: %v", err)
	}

	entries, err := st.ListAuditEntries(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListAuditEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Action != "document.transition" || entries[0].Details["target"] != "pending_review" {
		t.Fatalf("unexpected entry: %#v", entries[0])
	}
}

func TestParseVersion(t *testing.T) {
	v, err := store.ParseVersion("2.4.11")
	if err != nil {
		t.Fatalf("ParseVersion failed: %v", err)
	}
	if v != (store.Version{Major: 2, Minor: 4, Patch: 11}) {
		t.Fatalf("unexpected version: %+v", v)
	}

	for _, bad := range []string{"", "1.2", "1.2.x", "-1.0.0", "1.2.3.4"} {
		if _, err := store.ParseVersion(bad); err == nil {
			t.Fatalf("expected parse error for %q", bad)
		}
	}
}

func TestVersionBump(t *testing.T) {
	v := store.Version{Major: 1, Minor: 2, Patch: 3}
	if got := v.Bump(store.BumpPatch); got.String() != "1.2.4" {
		t.Fatalf("patch bump: %s", got)
	}
	if got := v.Bump(store.BumpMinor); got.String() != "1.3.0" {
		t.Fatalf("minor bump: %s", got)
	}
	if got := v.Bump(store.BumpMajor); got.String() != "2.0.0" {
		t.Fatalf("major bump: %s", got)
	}
}
