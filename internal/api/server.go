package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"tramita/internal/config"
	"tramita/internal/fanout"
	"tramita/internal/logging"
	"tramita/internal/readstate"
	"tramita/internal/recipients"
	"tramita/internal/services"
	"tramita/internal/store"
)

// Server is the JSON HTTP front for Service.
type Server struct {
	bind    string
	logger  *slog.Logger
	service *Service

	listener net.Listener
	server   *http.Server
}

func NewServer(cfg *config.Config, service *Service, logger *slog.Logger) *Server {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" || service == nil {
		return nil
	}

	srv := &Server{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api"),
		service: service,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/documents", authMiddleware(token, srv.handleDocuments))
	mux.HandleFunc("/api/documents/", authMiddleware(token, srv.handleDocumentSub))
	mux.HandleFunc("/api/notifications", authMiddleware(token, srv.handleNotifications))
	mux.HandleFunc("/api/notifications/", authMiddleware(token, srv.handleNotificationSub))
	mux.HandleFunc("/api/users/", authMiddleware(token, srv.handleUserSub))
	mux.HandleFunc("/api/statistics", authMiddleware(token, srv.handleStatistics))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createDocumentRequest struct {
	Title     string `json:"title"`
	Workspace string `json:"workspace"`
	ActorID   string `json:"actorId"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createDocumentRequest
	if !s.decode(w, r, &req) {
		return
	}
	doc, err := s.service.CreateDocument(r.Context(), req.Title, req.Workspace, req.ActorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, FromDocument(doc))
}

type transitionRequest struct {
	Target  string `json:"target"`
	ActorID string `json:"actorId"`
	Version string `json:"version"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) handleDocumentSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		doc, err := s.service.GetDocument(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, FromDocument(doc))
	case "transition":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req transitionRequest
		if !s.decode(w, r, &req) {
			return
		}
		doc, err := s.service.TransitionDocumentStatus(r.Context(), id, req.Target, req.ActorID, req.Version, req.Reason)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, FromDocument(doc))
	default:
		s.writeError(w, http.StatusNotFound, "unknown document action")
	}
}

type createNotificationRequest struct {
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	Type           string            `json:"type"`
	Priority       string            `json:"priority,omitempty"`
	CreatedBy      string            `json:"createdBy"`
	Recipients     recipientSpec     `json:"recipients"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ExpiresAt      string            `json:"expiresAt,omitempty"`
	DisableBrowser bool              `json:"disableBrowser,omitempty"`
	RequestEmail   bool              `json:"requestEmail,omitempty"`
	ScheduledFor   string            `json:"scheduledFor,omitempty"`
}

type recipientSpec struct {
	Type         string   `json:"type"`
	Roles        []string `json:"roles,omitempty"`
	Workspaces   []string `json:"workspaces,omitempty"`
	UserIDs      []string `json:"userIds,omitempty"`
	ExcludeUsers []string `json:"excludeUsers,omitempty"`
}

func (r recipientSpec) toSpec() recipients.Spec {
	spec := recipients.Spec{
		Type:         recipients.SpecType(r.Type),
		UserIDs:      r.UserIDs,
		ExcludeUsers: r.ExcludeUsers,
	}
	for _, role := range r.Roles {
		spec.Roles = append(spec.Roles, store.Role(role))
	}
	for _, ws := range r.Workspaces {
		spec.Workspaces = append(spec.Workspaces, store.Workspace(ws))
	}
	return spec
}

func (req createNotificationRequest) toPayload() (fanout.Payload, error) {
	payload := fanout.Payload{
		Title:          req.Title,
		Content:        req.Content,
		Type:           store.NotificationType(req.Type),
		Priority:       store.Priority(req.Priority),
		CreatedBy:      req.CreatedBy,
		Audience:       req.Recipients.toSpec(),
		Metadata:       req.Metadata,
		DisableBrowser: req.DisableBrowser,
		RequestEmail:   req.RequestEmail,
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return payload, fmt.Errorf("bad expiresAt: %w", err)
		}
		payload.ExpiresAt = &t
	}
	if req.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			return payload, fmt.Errorf("bad scheduledFor: %w", err)
		}
		payload.ScheduledFor = &t
	}
	return payload, nil
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createNotificationRequest
	if !s.decode(w, r, &req) {
		return
	}
	payload, err := req.toPayload()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.service.CreateNotification(r.Context(), payload)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, FromCreateResult(result))
}

type bulkRequest struct {
	Items         []createNotificationRequest `json:"items"`
	DelayMS       int                         `json:"delayMs,omitempty"`
	FailurePolicy string                      `json:"failurePolicy,omitempty"`
}

type announcementRequest struct {
	ActorID  string `json:"actorId"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority string `json:"priority,omitempty"`
}

type reminderRequest struct {
	ActorID  string   `json:"actorId"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	UserIDs  []string `json:"userIds"`
	RemindAt string   `json:"remindAt,omitempty"`
}

type templateRequest struct {
	ActorID    string            `json:"actorId"`
	Template   string            `json:"template"`
	Vars       map[string]string `json:"vars,omitempty"`
	Recipients recipientSpec     `json:"recipients"`
}

type markRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleNotificationSub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")

	switch rest {
	case "bulk":
		var req bulkRequest
		if !s.decode(w, r, &req) {
			return
		}
		payloads := make([]fanout.Payload, 0, len(req.Items))
		for _, item := range req.Items {
			payload, err := item.toPayload()
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			payloads = append(payloads, payload)
		}
		batch, err := s.service.CreateBulkNotifications(r.Context(), payloads, fanout.BatchOptions{
			Delay:         time.Duration(req.DelayMS) * time.Millisecond,
			FailurePolicy: fanout.FailurePolicy(req.FailurePolicy),
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, FromBatchResult(batch))
		return
	case "announcement":
		var req announcementRequest
		if !s.decode(w, r, &req) {
			return
		}
		result, err := s.service.CreateSystemAnnouncement(r.Context(), req.ActorID, req.Title, req.Content, store.Priority(req.Priority))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, FromCreateResult(result))
		return
	case "reminder":
		var req reminderRequest
		if !s.decode(w, r, &req) {
			return
		}
		var remindAt *time.Time
		if req.RemindAt != "" {
			t, err := time.Parse(time.RFC3339, req.RemindAt)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "bad remindAt: "+err.Error())
				return
			}
			remindAt = &t
		}
		result, err := s.service.CreateReminder(r.Context(), req.ActorID, req.Title, req.Content, req.UserIDs, remindAt)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, FromCreateResult(result))
		return
	case "template":
		var req templateRequest
		if !s.decode(w, r, &req) {
			return
		}
		result, err := s.service.CreateFromTemplate(r.Context(), req.ActorID, req.Template, req.Vars, req.Recipients.toSpec())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, FromCreateResult(result))
		return
	}

	// /api/notifications/{id}/{read|unread|archive|restore}
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || action == "" {
		s.writeError(w, http.StatusNotFound, "unknown notification action")
		return
	}
	var req markRequest
	if !s.decode(w, r, &req) {
		return
	}

	var (
		changed bool
		err     error
	)
	switch action {
	case "read":
		changed, err = s.service.MarkAsRead(r.Context(), id, req.UserID)
	case "unread":
		changed, err = s.service.MarkAsUnread(r.Context(), id, req.UserID)
	case "archive":
		changed, err = s.service.Archive(r.Context(), id, req.UserID)
	case "restore":
		changed, err = s.service.Restore(r.Context(), id, req.UserID)
	default:
		s.writeError(w, http.StatusNotFound, "unknown notification action")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

type markAllRequest struct {
	Types []string `json:"types,omitempty"`
}

func (s *Server) handleUserSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	userID, action, _ := strings.Cut(rest, "/")
	if userID == "" {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}

	switch action {
	case "notifications":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		filter := store.NotificationFilter{
			UnreadOnly:      r.URL.Query().Get("unread") == "1",
			IncludeArchived: r.URL.Query().Get("archived") == "1",
		}
		for _, value := range r.URL.Query()["type"] {
			if t, ok := store.ParseNotificationType(value); ok {
				filter.Types = append(filter.Types, t)
			}
		}
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
			filter.Limit = limit
		}
		if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
			filter.Offset = offset
		}
		inbox, err := s.service.GetUserNotifications(r.Context(), userID, filter)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, FromInbox(inbox))
	case "notifications/read-all":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req markAllRequest
		if !s.decode(w, r, &req) {
			return
		}
		var filter readstate.Filter
		for _, value := range req.Types {
			if t, ok := store.ParseNotificationType(value); ok {
				filter.Types = append(filter.Types, t)
			}
		}
		marked, err := s.service.MarkAllAsRead(r.Context(), userID, filter)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
	case "unread-count":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		count, err := s.service.UnreadCount(r.Context(), userID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"unreadCount": count})
	default:
		s.writeError(w, http.StatusNotFound, "unknown user action")
	}
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.service.GetNotificationStatistics(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromStatistics(stats))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return false
	}
	return true
}

// errorStatus maps the service error taxonomy onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	s.writeError(w, errorStatus(err), err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
