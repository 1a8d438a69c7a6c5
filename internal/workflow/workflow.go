package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"tramita/internal/fanout"
	"tramita/internal/logging"
	"tramita/internal/permissions"
	"tramita/internal/recipients"
	"tramita/internal/services"
	"tramita/internal/store"
)

// reviewerRoles receive the review notification when a document is submitted
// in their workspace.
var reviewerRoles = []store.Role{
	store.RolePresidente,
	store.RoleSecretario,
	store.RoleSecretarioCF,
}

type auditLog interface {
	LogAction(ctx context.Context, userID, action string, details map[string]string)
}

// Workflow enforces the document state machine. Every transition is gated by
// the permission engine and serialized per document through optimistic
// versioning.
type Workflow struct {
	store  *store.Store
	perms  *permissions.Engine
	fanout *fanout.Service
	audit  auditLog
	logger *slog.Logger
}

func New(st *store.Store, perms *permissions.Engine, notifier *fanout.Service, audit auditLog, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:  st,
		perms:  perms,
		fanout: notifier,
		audit:  audit,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
}

// TransitionRequest names the edge to take. Version must be the version the
// caller read; a mismatch at write time yields a conflict and the caller
// re-reads and retries. Reason is carried into the rejection notification.
type TransitionRequest struct {
	DocumentID string
	Target     store.DocumentStatus
	ActorID    string
	Version    store.Version
	Reason     string
}

func (w *Workflow) loadActor(ctx context.Context, op, actorID string) (*store.User, error) {
	actor, err := w.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "workflow", op, "load actor", err)
	}
	if actor == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", op, "no user "+actorID, nil)
	}
	return actor, nil
}

func (w *Workflow) loadDocument(ctx context.Context, op, documentID string) (*store.Document, error) {
	doc, err := w.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "workflow", op, "load document", err)
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", op, "no document "+documentID, nil)
	}
	return doc, nil
}

// Transition moves a document along one allowed edge and returns the updated
// document. A successful transition also writes an audit entry and, for
// submit, approve, and reject edges, fans out a workflow notification. Both
// side effects are best-effort.
func (w *Workflow) Transition(ctx context.Context, req TransitionRequest) (*store.Document, error) {
	const op = "transition"

	if _, ok := store.ParseStatus(string(req.Target)); !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", op,
			fmt.Sprintf("unknown status %q", req.Target), nil)
	}

	actor, err := w.loadActor(ctx, op, req.ActorID)
	if err != nil {
		return nil, err
	}
	doc, err := w.loadDocument(ctx, op, req.DocumentID)
	if err != nil {
		return nil, err
	}

	if !edgeAllowed(doc.Status, req.Target) {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", op,
			fmt.Sprintf("%s -> %s is not an allowed edge", doc.Status, req.Target), nil)
	}
	if !w.perms.HasCapability(actor, edgeCapability(doc.Status, req.Target), doc) {
		return nil, services.Wrap(services.ErrAuthorization, "workflow", op,
			fmt.Sprintf("%s may not move %s to %s", actor.ID, doc.ID, req.Target), nil)
	}

	affected, err := w.store.UpdateDocumentStatus(ctx, doc.ID, req.Target, doc.Status, req.Version)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "workflow", op, "write status", err)
	}
	if affected == 0 {
		return nil, services.Wrap(services.ErrConflict, "workflow", op,
			fmt.Sprintf("document %s changed since version %s was read", doc.ID, req.Version), nil)
	}

	updated, err := w.loadDocument(ctx, op, doc.ID)
	if err != nil {
		return nil, err
	}

	w.audit.LogAction(ctx, actor.ID, "document.transition", map[string]string{
		"document_id": doc.ID,
		"from":        string(doc.Status),
		"to":          string(req.Target),
	})
	w.notifyTransition(ctx, updated, doc.Status, req)

	w.logger.Info("document transitioned",
		logging.String(logging.FieldDocumentID, doc.ID),
		logging.String("from", string(doc.Status)),
		logging.String("to", string(req.Target)),
		logging.String(logging.FieldActorID, actor.ID))
	return updated, nil
}

// notifyTransition fans out the notification the triggers table asks for.
// Failures are logged and swallowed: a missed notification never unwinds a
// committed transition.
func (w *Workflow) notifyTransition(ctx context.Context, doc *store.Document, from store.DocumentStatus, req TransitionRequest) {
	if w.fanout == nil {
		return
	}

	var payload *fanout.Payload
	switch {
	case from == store.StatusDraft && req.Target == store.StatusPendingReview:
		reviewers, err := w.store.ListUsers(ctx, store.UserFilter{
			Roles:      reviewerRoles,
			Workspaces: []store.Workspace{doc.Workspace},
			ActiveOnly: true,
		})
		if err != nil {
			w.logger.Warn("could not resolve reviewers",
				logging.String(logging.FieldDocumentID, doc.ID),
				logging.Error(err))
			return
		}
		ids := make([]string, 0, len(reviewers))
		for _, reviewer := range reviewers {
			if reviewer.ID == req.ActorID {
				continue
			}
			ids = append(ids, reviewer.ID)
		}
		payload = &fanout.Payload{
			Title:    "Documento pendiente de revisión",
			Content:  fmt.Sprintf("%s espera revisión en %s.", doc.Title, doc.Workspace),
			Priority: store.PriorityNormal,
			Audience: recipients.Spec{Type: recipients.SpecSpecific, UserIDs: ids},
		}
	case req.Target == store.StatusApproved:
		payload = &fanout.Payload{
			Title:    "Documento aprobado",
			Content:  fmt.Sprintf("%s ha sido aprobado.", doc.Title),
			Priority: store.PriorityNormal,
			Audience: recipients.Spec{Type: recipients.SpecSpecific, UserIDs: []string{doc.CreatedBy}},
		}
	case req.Target == store.StatusRejected:
		payload = &fanout.Payload{
			Title:    "Documento rechazado",
			Content:  fmt.Sprintf("%s ha sido rechazado.", doc.Title),
			Priority: store.PriorityHigh,
			Audience: recipients.Spec{Type: recipients.SpecSpecific, UserIDs: []string{doc.CreatedBy}},
			Metadata: map[string]string{"reason": req.Reason},
		}
	default:
		return
	}

	payload.Type = store.TypeWorkflow
	payload.CreatedBy = req.ActorID
	if payload.Metadata == nil {
		payload.Metadata = map[string]string{}
	}
	payload.Metadata["document_id"] = doc.ID

	if _, err := w.fanout.Create(ctx, *payload); err != nil {
		w.logger.Warn("transition notification failed",
			logging.String(logging.FieldDocumentID, doc.ID),
			logging.Error(err))
	}
}

// CreateDocument starts a new draft in the actor's workspace unless another
// workspace is named and the actor may write there.
func (w *Workflow) CreateDocument(ctx context.Context, title string, workspace store.Workspace, actorID string) (*store.Document, error) {
	const op = "create_document"

	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", op, "title is required", nil)
	}
	actor, err := w.loadActor(ctx, op, actorID)
	if err != nil {
		return nil, err
	}
	if workspace == "" {
		workspace = actor.Workspace
	} else if _, ok := store.ParseWorkspace(string(workspace)); !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", op,
			fmt.Sprintf("unknown workspace %q", workspace), nil)
	}

	// The probe carries no creator: a document that does not exist yet has
	// no owner, so creation rests on the role and workspace grant alone.
	probe := &store.Document{Workspace: workspace, Status: store.StatusDraft}
	if !w.perms.HasCapability(actor, permissions.CapabilityWrite, probe) {
		return nil, services.Wrap(services.ErrAuthorization, "workflow", op,
			fmt.Sprintf("%s may not create documents in %s", actorID, workspace), nil)
	}

	doc, err := w.store.CreateDocument(ctx, title, workspace, actorID, "")
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "workflow", op, "persist document", err)
	}

	w.audit.LogAction(ctx, actorID, "document.create", map[string]string{
		"document_id": doc.ID,
		"workspace":   string(workspace),
	})
	return doc, nil
}

// EditContent records a content-changing edit: the title is replaced, the
// version advances at the requested level (patch when unspecified), and the
// document returns to draft. Subject to the same optimistic version guard as
// Transition.
func (w *Workflow) EditContent(ctx context.Context, documentID, actorID, title string, level store.BumpLevel, expect store.Version) (*store.Document, error) {
	const op = "edit_content"

	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", op, "title is required", nil)
	}
	actor, err := w.loadActor(ctx, op, actorID)
	if err != nil {
		return nil, err
	}
	doc, err := w.loadDocument(ctx, op, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Status.Editable() {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", op,
			fmt.Sprintf("document %s is not editable in status %s", doc.ID, doc.Status), nil)
	}
	if !w.perms.HasCapability(actor, permissions.CapabilityWrite, doc) {
		return nil, services.Wrap(services.ErrAuthorization, "workflow", op,
			fmt.Sprintf("%s may not edit %s", actorID, doc.ID), nil)
	}

	next := doc.Version.Bump(level)
	affected, err := w.store.UpdateDocumentContent(ctx, doc.ID, title, next, expect)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "workflow", op, "write content", err)
	}
	if affected == 0 {
		return nil, services.Wrap(services.ErrConflict, "workflow", op,
			fmt.Sprintf("document %s changed since version %s was read", doc.ID, expect), nil)
	}

	w.audit.LogAction(ctx, actorID, "document.edit", map[string]string{
		"document_id": doc.ID,
		"version":     next.String(),
	})
	return w.loadDocument(ctx, op, doc.ID)
}
