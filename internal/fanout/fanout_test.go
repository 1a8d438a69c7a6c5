package fanout_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tramita/internal/audit"
	"tramita/internal/deliver"
	"tramita/internal/fanout"
	"tramita/internal/recipients"
	"tramita/internal/services"
	"tramita/internal/store"
	"tramita/internal/testsupport"
)

type fixture struct {
	service  *fanout.Service
	store    *store.Store
	pushHits *atomic.Int64
}

func newFixture(t *testing.T, opts ...fanout.Option) *fixture {
	t.Helper()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithPushEndpoint(server.URL))
	st := testsupport.MustOpenStore(t, cfg)

	resolver := recipients.NewResolver(st, nil)
	dispatcher := deliver.NewDispatcher(nil,
		deliver.NewPushChannel(cfg.Notifications.PushEndpoint, 5*time.Second),
		deliver.NewEmailChannel(true, "tramita@example.org", nil),
	)
	service := fanout.NewService(st, resolver, dispatcher, audit.Nop{}, nil, opts...)
	return &fixture{service: service, store: st, pushHits: &hits}
}

func (f *fixture) seedAudience(t *testing.T) {
	t.Helper()
	testsupport.SeedUser(t, f.store, "author", store.RoleSecretario, store.WorkspaceCAM)
	testsupport.SeedUser(t, f.store, "u1", store.RoleFuncionario, store.WorkspaceCAM)
	testsupport.SeedUser(t, f.store, "u2", store.RoleFuncionario, store.WorkspaceAMPP)
	testsupport.SeedInactiveUser(t, f.store, "ghost", store.RoleFuncionario, store.WorkspaceCAM)
}

func announcement(title string) fanout.Payload {
	return fanout.Payload{
		Title:     title,
		Content:   "contenido",
		Type:      store.TypeAnnouncement,
		Priority:  store.PriorityNormal,
		CreatedBy: "author",
		Audience:  recipients.Spec{Type: recipients.SpecAll},
	}
}

func TestCreateDefaultsPriorityToNormal(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	payload := announcement("Sin prioridad")
	payload.Priority = ""
	result, err := f.service.Create(ctx, payload)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	notification, err := f.store.GetNotification(ctx, result.NotificationID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if notification.Priority != store.PriorityNormal {
		t.Fatalf("expected normal priority, got %s", notification.Priority)
	}

	payload.Priority = store.Priority("maxima")
	if _, err := f.service.Create(ctx, payload); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown priority must fail validation, got %v", err)
	}
}

func TestCreateFansOutToActiveUsers(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	result, err := f.service.Create(ctx, announcement("Aviso general"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if result.RecipientCount != 3 {
		t.Fatalf("expected 3 recipients, got %d", result.RecipientCount)
	}

	for _, userID := range []string{"author", "u1", "u2"} {
		count, err := f.store.UnreadCount(ctx, userID)
		if err != nil {
			t.Fatalf("UnreadCount failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected unread count 1 for %s, got %d", userID, count)
		}
		status := result.DeliveryStatus[userID]
		if status[store.MethodBrowser] != deliver.StatusSent {
			t.Fatalf("expected browser delivery for %s, got %v", userID, status)
		}
		delivery, err := f.store.GetDelivery(ctx, result.NotificationID, userID)
		if err != nil {
			t.Fatalf("GetDelivery failed: %v", err)
		}
		if delivery.DeliveredAt == nil {
			t.Fatalf("delivered_at should be stamped for %s", userID)
		}
	}

	ghostCount, err := f.store.UnreadCount(ctx, "ghost")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if ghostCount != 0 {
		t.Fatalf("inactive user must not receive deliveries, count=%d", ghostCount)
	}
}

func TestCreateDeliveryMethodFlags(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	payload := announcement("Solo correo")
	payload.Audience = recipients.Spec{Type: recipients.SpecSpecific, UserIDs: []string{"u1"}}
	payload.DisableBrowser = true
	payload.RequestEmail = true

	result, err := f.service.Create(ctx, payload)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	delivery, err := f.store.GetDelivery(ctx, result.NotificationID, "u1")
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if len(delivery.Methods) != 1 || delivery.Methods[0] != store.MethodEmail {
		t.Fatalf("expected email-only methods, got %v", delivery.Methods)
	}
	if f.pushHits.Load() != 0 {
		t.Fatal("browser channel must not be hit when disabled")
	}
}

func TestCreateScheduledSkipsDispatch(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	later := time.Now().UTC().Add(time.Hour)
	payload := announcement("Programada")
	payload.ScheduledFor = &later

	result, err := f.service.Create(ctx, payload)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if result.DeliveryStatus != nil {
		t.Fatal("scheduled notification must not dispatch immediately")
	}
	if f.pushHits.Load() != 0 {
		t.Fatal("push endpoint must not be hit for scheduled notifications")
	}

	// Rows still exist so unread counts reflect the pending notification.
	count, err := f.store.UnreadCount(ctx, "u1")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected persisted delivery despite deferred dispatch, count=%d", count)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	payload := announcement("")
	if _, err := f.service.Create(ctx, payload); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty title should be rejected, got %v", err)
	}

	payload = announcement("Aviso")
	payload.Type = "broadcast"
	if _, err := f.service.Create(ctx, payload); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown type should be rejected, got %v", err)
	}
}

func TestCreateDefaultExpiry(t *testing.T) {
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t,
		fanout.WithDefaultExpiry(48*time.Hour),
		fanout.WithClock(func() time.Time { return fixed }),
	)
	f.seedAudience(t)
	ctx := context.Background()

	result, err := f.service.Create(ctx, announcement("Con caducidad"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	notification, err := f.store.GetNotification(ctx, result.NotificationID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if notification.ExpiresAt == nil || !notification.ExpiresAt.Equal(fixed.Add(48*time.Hour)) {
		t.Fatalf("unexpected expiry: %v", notification.ExpiresAt)
	}
}

func TestCreateBatchStopPolicy(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	payloads := []fanout.Payload{
		announcement("uno"),
		announcement(""), // fails validation
		announcement("tres"),
		announcement("cuatro"),
		announcement("cinco"),
	}
	batch := f.service.CreateBatch(ctx, payloads, fanout.BatchOptions{
		FailurePolicy: fanout.FailureStop,
	})

	if len(batch.Results) != 2 {
		t.Fatalf("expected 2 attempted items, got %d", len(batch.Results))
	}
	if batch.SuccessCount != 1 || batch.FailureCount != 1 {
		t.Fatalf("unexpected counts: %+v", batch)
	}
	if batch.Status != fanout.BatchPartial {
		t.Fatalf("expected partial status, got %s", batch.Status)
	}

	count, err := f.store.UnreadCount(ctx, "u1")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("items after the failure must never be attempted, unread=%d", count)
	}
}

func TestCreateBatchContinuePolicy(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	payloads := []fanout.Payload{
		announcement("uno"),
		announcement(""), // fails validation
		announcement("tres"),
		announcement("cuatro"),
		announcement("cinco"),
	}
	batch := f.service.CreateBatch(ctx, payloads, fanout.BatchOptions{})

	if len(batch.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(batch.Results))
	}
	if batch.SuccessCount != 4 || batch.FailureCount != 1 {
		t.Fatalf("unexpected counts: %+v", batch)
	}
	if batch.Status != fanout.BatchPartial {
		t.Fatalf("expected partial status, got %s", batch.Status)
	}
	if batch.Results[1].Err == nil {
		t.Fatal("failing item must carry its error")
	}
}

func TestCreateBatchCompleted(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)

	batch := f.service.CreateBatch(context.Background(), []fanout.Payload{
		announcement("uno"),
		announcement("dos"),
	}, fanout.BatchOptions{})

	if batch.Status != fanout.BatchCompleted {
		t.Fatalf("expected completed status, got %s", batch.Status)
	}
	if batch.SuccessCount != 2 || batch.FailureCount != 0 {
		t.Fatalf("unexpected counts: %+v", batch)
	}
}

func TestCreateBatchCancellationKeepsEarlierItems(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)

	ctx, cancel := context.WithCancel(context.Background())
	payloads := []fanout.Payload{
		announcement("uno"),
		announcement("dos"),
	}

	// Cancel after the first item by abusing the inter-item delay.
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	batch := f.service.CreateBatch(ctx, payloads, fanout.BatchOptions{Delay: 5 * time.Second})

	if batch.SuccessCount != 1 {
		t.Fatalf("expected first item committed, got %+v", batch)
	}
	if batch.Status != fanout.BatchPartial {
		t.Fatalf("cancelled batch should report partial, got %s", batch.Status)
	}

	count, err := f.store.UnreadCount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("completed item must stay committed after cancellation, unread=%d", count)
	}
}

func TestCreateFromTemplate(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)
	ctx := context.Background()

	result, err := f.service.CreateFromTemplate(ctx, "session_convocation",
		map[string]string{"session": "CAM 12/2026", "date": "2026-09-03", "location": "Salón de plenos"},
		recipients.Spec{Type: recipients.SpecWorkspace, Workspaces: []store.Workspace{store.WorkspaceCAM}},
		"author")
	if err != nil {
		t.Fatalf("CreateFromTemplate failed: %v", err)
	}

	notification, err := f.store.GetNotification(ctx, result.NotificationID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if notification.Title != "Convocatoria: CAM 12/2026" {
		t.Fatalf("unexpected rendered title: %q", notification.Title)
	}
	if notification.Metadata["template"] != "session_convocation" {
		t.Fatalf("expected template name in metadata, got %v", notification.Metadata)
	}

	if _, err := f.service.CreateFromTemplate(ctx, "no_such_template", nil,
		recipients.Spec{Type: recipients.SpecAll}, "author"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown template should be not-found, got %v", err)
	}
}

func TestCreateSystemAnnouncement(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)

	result, err := f.service.CreateSystemAnnouncement(context.Background(),
		"author", "Corte de servicio", "Mantenimiento el sábado", store.PriorityUrgent)
	if err != nil {
		t.Fatalf("CreateSystemAnnouncement failed: %v", err)
	}
	if result.RecipientCount != 3 {
		t.Fatalf("announcement should reach every active user, got %d", result.RecipientCount)
	}
}

func TestCreateReminderDefersDispatch(t *testing.T) {
	f := newFixture(t)
	f.seedAudience(t)

	later := time.Now().UTC().Add(time.Hour)
	result, err := f.service.CreateReminder(context.Background(),
		"author", "Entrega de informe", "Vence el viernes", []string{"u1"}, &later)
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	if result.RecipientCount != 1 {
		t.Fatalf("expected 1 recipient, got %d", result.RecipientCount)
	}
	if result.DeliveryStatus != nil {
		t.Fatal("reminder with a future remind time must not dispatch now")
	}
}
