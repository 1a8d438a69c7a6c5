package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tramita/internal/fanout"
	"tramita/internal/logging"
	"tramita/internal/permissions"
	"tramita/internal/readstate"
	"tramita/internal/recipients"
	"tramita/internal/services"
	"tramita/internal/store"
	"tramita/internal/workflow"
)

// Service is the operation surface the transport layer calls. It wires the
// domain components together and applies the capability checks that belong
// at the boundary.
type Service struct {
	store    *store.Store
	perms    *permissions.Engine
	fanout   *fanout.Service
	workflow *workflow.Workflow
	tracker  *readstate.Tracker
	logger   *slog.Logger
}

func NewService(st *store.Store, perms *permissions.Engine, notifier *fanout.Service, wf *workflow.Workflow, tracker *readstate.Tracker, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		perms:    perms,
		fanout:   notifier,
		workflow: wf,
		tracker:  tracker,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

func (s *Service) requireNotifier(ctx context.Context, op, actorID string) error {
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return services.Wrap(services.ErrStore, "api", op, "load actor", err)
	}
	if actor == nil {
		return services.Wrap(services.ErrNotFound, "api", op, "no user "+actorID, nil)
	}
	if !s.perms.HasCapability(actor, permissions.CapabilityNotify, nil) {
		return services.Wrap(services.ErrAuthorization, "api", op,
			actorID+" may not create notifications", nil)
	}
	return nil
}

// CreateNotification gates fanout.Create behind the notify capability.
func (s *Service) CreateNotification(ctx context.Context, payload fanout.Payload) (*fanout.Result, error) {
	if err := s.requireNotifier(ctx, "create_notification", payload.CreatedBy); err != nil {
		return nil, err
	}
	return s.fanout.Create(ctx, payload)
}

// CreateBulkNotifications checks the notify capability once per distinct
// creator, then hands the batch to fanout.
func (s *Service) CreateBulkNotifications(ctx context.Context, payloads []fanout.Payload, opts fanout.BatchOptions) (*fanout.BatchResult, error) {
	checked := make(map[string]bool, 1)
	for _, payload := range payloads {
		if checked[payload.CreatedBy] {
			continue
		}
		if err := s.requireNotifier(ctx, "create_bulk", payload.CreatedBy); err != nil {
			return nil, err
		}
		checked[payload.CreatedBy] = true
	}
	return s.fanout.CreateBatch(ctx, payloads, opts), nil
}

func (s *Service) CreateSystemAnnouncement(ctx context.Context, actorID, title, content string, priority store.Priority) (*fanout.Result, error) {
	if err := s.requireNotifier(ctx, "create_announcement", actorID); err != nil {
		return nil, err
	}
	return s.fanout.CreateSystemAnnouncement(ctx, actorID, title, content, priority)
}

func (s *Service) CreateReminder(ctx context.Context, actorID, title, content string, userIDs []string, remindAt *time.Time) (*fanout.Result, error) {
	if err := s.requireNotifier(ctx, "create_reminder", actorID); err != nil {
		return nil, err
	}
	return s.fanout.CreateReminder(ctx, actorID, title, content, userIDs, remindAt)
}

func (s *Service) CreateFromTemplate(ctx context.Context, actorID, template string, vars map[string]string, audience recipients.Spec) (*fanout.Result, error) {
	if err := s.requireNotifier(ctx, "create_from_template", actorID); err != nil {
		return nil, err
	}
	return s.fanout.CreateFromTemplate(ctx, template, vars, audience, actorID)
}

// Inbox is one page of a user's notifications plus the live unread count.
type Inbox struct {
	Entries     []store.UserNotification
	UnreadCount int
}

// GetUserNotifications lists a user's deliveries joined with their parent
// notifications, newest first.
func (s *Service) GetUserNotifications(ctx context.Context, userID string, filter store.NotificationFilter) (*Inbox, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "api", "get_user_notifications", "load user", err)
	}
	if user == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get_user_notifications", "no user "+userID, nil)
	}

	entries, err := s.store.ListUserNotifications(ctx, userID, filter)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "api", "get_user_notifications", "list notifications", err)
	}
	count, err := s.tracker.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Inbox{Entries: entries, UnreadCount: count}, nil
}

func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) (bool, error) {
	return s.tracker.MarkRead(ctx, notificationID, userID)
}

func (s *Service) MarkAsUnread(ctx context.Context, notificationID, userID string) (bool, error) {
	return s.tracker.MarkUnread(ctx, notificationID, userID)
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID string, filter readstate.Filter) (int, error) {
	return s.tracker.MarkAllRead(ctx, userID, filter)
}

func (s *Service) Archive(ctx context.Context, notificationID, userID string) (bool, error) {
	return s.tracker.Archive(ctx, notificationID, userID)
}

func (s *Service) Restore(ctx context.Context, notificationID, userID string) (bool, error) {
	return s.tracker.Restore(ctx, notificationID, userID)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.tracker.UnreadCount(ctx, userID)
}

// TransitionDocumentStatus parses the wire-level transition request and runs
// it through the workflow.
func (s *Service) TransitionDocumentStatus(ctx context.Context, documentID, target, actorID, version, reason string) (*store.Document, error) {
	status, ok := store.ParseStatus(target)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "api", "transition",
			fmt.Sprintf("unknown status %q", target), nil)
	}
	parsed, err := store.ParseVersion(version)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "transition", "bad version", err)
	}
	return s.workflow.Transition(ctx, workflow.TransitionRequest{
		DocumentID: documentID,
		Target:     status,
		ActorID:    actorID,
		Version:    parsed,
		Reason:     reason,
	})
}

func (s *Service) CreateDocument(ctx context.Context, title, workspace, actorID string) (*store.Document, error) {
	return s.workflow.CreateDocument(ctx, title, store.Workspace(workspace), actorID)
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (*store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "api", "get_document", "load document", err)
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get_document", "no document "+documentID, nil)
	}
	return doc, nil
}

// statisticsPeriods maps the wire period names onto lookback windows.
var statisticsPeriods = map[string]time.Duration{
	"hour":  time.Hour,
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// GetNotificationStatistics aggregates notification and delivery counts over
// a named period. An empty period means "day".
func (s *Service) GetNotificationStatistics(ctx context.Context, period string) (*store.Statistics, error) {
	if period == "" {
		period = "day"
	}
	window, ok := statisticsPeriods[period]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "api", "statistics",
			fmt.Sprintf("unknown period %q", period), nil)
	}
	stats, err := s.store.NotificationStatistics(ctx, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "api", "statistics", "aggregate", err)
	}
	return stats, nil
}
