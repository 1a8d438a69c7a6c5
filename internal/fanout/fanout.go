package fanout

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tramita/internal/deliver"
	"tramita/internal/logging"
	"tramita/internal/recipients"
	"tramita/internal/services"
	"tramita/internal/store"
)

// Payload describes one notification to create. Browser delivery is on by
// default and must be disabled explicitly; email must be requested
// explicitly.
type Payload struct {
	Title    string
	Content  string
	Type     store.NotificationType
	Priority store.Priority

	CreatedBy string
	Audience  recipients.Spec
	Metadata  map[string]string
	ExpiresAt *time.Time

	DisableBrowser bool
	RequestEmail   bool

	// ScheduledFor defers channel dispatch to a later sweep. DisableDispatch
	// skips it outright. Either way the notification and its deliveries are
	// still persisted now.
	ScheduledFor    *time.Time
	DisableDispatch bool
}

// Result reports one created notification and the per-recipient channel
// outcomes of the immediate dispatch, when one happened.
type Result struct {
	NotificationID string
	RecipientCount int
	DeliveryStatus map[string]deliver.Status
}

type notificationStore interface {
	CreateNotification(ctx context.Context, notification *store.Notification, deliveries []store.Delivery) error
	MarkDelivered(ctx context.Context, notificationID, userID string) error
}

type auditLog interface {
	LogAction(ctx context.Context, userID, action string, details map[string]string)
}

// Service creates notifications and fans them out, one delivery record per
// resolved recipient, written atomically with the parent row.
type Service struct {
	store      notificationStore
	resolver   *recipients.Resolver
	dispatcher *deliver.Dispatcher
	audit      auditLog
	logger     *slog.Logger

	templates map[string]Template

	defaultExpiry time.Duration
	now           func() time.Time
}

type Option func(*Service)

// WithDefaultExpiry stamps notifications that carry no explicit expiry.
// Zero disables the default.
func WithDefaultExpiry(d time.Duration) Option {
	return func(s *Service) { s.defaultExpiry = d }
}

// WithClock overrides the time source. Tests use this to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st notificationStore, resolver *recipients.Resolver, dispatcher *deliver.Dispatcher, audit auditLog, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      st,
		resolver:   resolver,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logging.NewComponentLogger(logger, "fanout"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) validate(payload Payload) error {
	if payload.Title == "" {
		return services.Wrap(services.ErrValidation, "fanout", "create", "title is required", nil)
	}
	if payload.CreatedBy == "" {
		return services.Wrap(services.ErrValidation, "fanout", "create", "created_by is required", nil)
	}
	if _, ok := store.ParseNotificationType(string(payload.Type)); !ok {
		return services.Wrap(services.ErrValidation, "fanout", "create",
			"unknown notification type "+string(payload.Type), nil)
	}
	// An absent priority is filled with the normal default later.
	if payload.Priority != "" {
		if _, ok := store.ParsePriority(string(payload.Priority)); !ok {
			return services.Wrap(services.ErrValidation, "fanout", "create",
				"unknown priority "+string(payload.Priority), nil)
		}
	}
	return nil
}

func (s *Service) methods(payload Payload) []store.DeliveryMethod {
	var methods []store.DeliveryMethod
	if !payload.DisableBrowser {
		methods = append(methods, store.MethodBrowser)
	}
	if payload.RequestEmail {
		methods = append(methods, store.MethodEmail)
	}
	return methods
}

// Create resolves the audience, persists the notification with its full
// delivery set in one write, and dispatches channels unless deferred.
// Channel failures land in the result's status map, never in the error.
func (s *Service) Create(ctx context.Context, payload Payload) (*Result, error) {
	if err := s.validate(payload); err != nil {
		return nil, err
	}

	recipientIDs, err := s.resolver.Resolve(ctx, payload.Audience)
	if err != nil {
		return nil, err
	}

	priority := payload.Priority
	if priority == "" {
		priority = store.PriorityNormal
	}
	expiresAt := payload.ExpiresAt
	if expiresAt == nil && s.defaultExpiry > 0 {
		t := s.now().Add(s.defaultExpiry)
		expiresAt = &t
	}

	notification := &store.Notification{
		ID:        uuid.New().String(),
		Title:     payload.Title,
		Content:   payload.Content,
		Type:      payload.Type,
		Priority:  priority,
		CreatedBy: payload.CreatedBy,
		ExpiresAt: expiresAt,
		Metadata:  payload.Metadata,
	}

	methods := s.methods(payload)
	deliveries := make([]store.Delivery, 0, len(recipientIDs))
	for _, userID := range recipientIDs {
		deliveries = append(deliveries, store.Delivery{
			ID:      uuid.New().String(),
			UserID:  userID,
			Methods: methods,
		})
	}

	if err := s.store.CreateNotification(ctx, notification, deliveries); err != nil {
		return nil, services.Wrap(services.ErrStore, "fanout", "create", "persist notification", err)
	}

	result := &Result{
		NotificationID: notification.ID,
		RecipientCount: len(deliveries),
	}

	if s.shouldDispatch(payload) {
		result.DeliveryStatus = s.dispatch(ctx, notification, deliveries)
	}

	s.audit.LogAction(ctx, payload.CreatedBy, "notification.create", map[string]string{
		"notification_id": notification.ID,
		"type":            string(notification.Type),
		"recipients":      strconv.Itoa(len(deliveries)),
	})

	s.logger.Info("notification created",
		logging.String(logging.FieldNotificationID, notification.ID),
		logging.String("type", string(notification.Type)),
		logging.Int("recipients", len(deliveries)))
	return result, nil
}

func (s *Service) shouldDispatch(payload Payload) bool {
	if payload.DisableDispatch {
		return false
	}
	if payload.ScheduledFor != nil && payload.ScheduledFor.After(s.now()) {
		return false
	}
	return true
}

// dispatch pushes to every recipient and stamps delivered_at when at least
// one channel got through. Best-effort throughout.
func (s *Service) dispatch(ctx context.Context, notification *store.Notification, deliveries []store.Delivery) map[string]deliver.Status {
	statuses := make(map[string]deliver.Status, len(deliveries))
	for _, delivery := range deliveries {
		status := s.dispatcher.Deliver(ctx, notification, delivery)
		statuses[delivery.UserID] = status

		delivered := false
		for _, outcome := range status {
			if outcome == deliver.StatusSent {
				delivered = true
				break
			}
		}
		if delivered {
			if err := s.store.MarkDelivered(ctx, notification.ID, delivery.UserID); err != nil {
				s.logger.Warn("failed to stamp delivery",
					logging.String(logging.FieldNotificationID, notification.ID),
					logging.String(logging.FieldUserID, delivery.UserID),
					logging.Error(err))
			}
		}
	}
	return statuses
}
