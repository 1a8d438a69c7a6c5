package permissions

import (
	"log/slog"

	"tramita/internal/logging"
	"tramita/internal/store"
)

// Capability names an action class an actor may be granted. Workflow edges
// map to one of these before the engine is consulted.
type Capability string

const (
	CapabilityRead    Capability = "read"
	CapabilityWrite   Capability = "write"
	CapabilityApprove Capability = "approve"
	CapabilityArchive Capability = "archive"
	CapabilityManage  Capability = "manage"
	CapabilityNotify  Capability = "notify"
)

// roleGrants is the static role to capability table. RoleAdministrator is
// handled as a wildcard before this table is consulted.
var roleGrants = map[store.Role]map[Capability]bool{
	store.RolePresidente: {
		CapabilityRead:    true,
		CapabilityWrite:   true,
		CapabilityApprove: true,
		CapabilityArchive: true,
		CapabilityNotify:  true,
	},
	store.RoleSecretario: {
		CapabilityRead:    true,
		CapabilityWrite:   true,
		CapabilityApprove: true,
		CapabilityArchive: true,
		CapabilityNotify:  true,
	},
	store.RoleSecretarioCF: {
		CapabilityRead:    true,
		CapabilityWrite:   true,
		CapabilityApprove: true,
		CapabilityNotify:  true,
	},
	store.RoleCFMember: {
		CapabilityRead:  true,
		CapabilityWrite: true,
	},
	store.RoleFuncionario: {
		CapabilityRead:  true,
		CapabilityWrite: true,
	},
}

// globalRoles act across every workspace. All other roles are confined to
// their own workspace when a document is in play.
var globalRoles = map[store.Role]bool{
	store.RoleAdministrator: true,
	store.RolePresidente:    true,
}

// Engine answers capability questions for actors against optional documents.
// It never returns an error: any unmet condition yields false and the caller
// decides how to report the denial.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "permissions")}
}

// HasCapability reports whether actor may perform action, optionally scoped
// to doc. A nil doc checks the role grant alone. Inactive actors are always
// denied.
func (e *Engine) HasCapability(actor *store.User, action Capability, doc *store.Document) bool {
	if actor == nil || !actor.Active {
		return false
	}
	if actor.Role == store.RoleAdministrator {
		return true
	}

	granted := roleGrants[actor.Role][action]
	if doc == nil {
		return granted
	}

	if granted && !globalRoles[actor.Role] && actor.Workspace != doc.Workspace {
		e.logger.Debug("capability denied outside workspace",
			logging.String(logging.FieldActorID, actor.ID),
			logging.String("action", string(action)),
			logging.String(logging.FieldDocumentID, doc.ID))
		granted = false
	}

	if granted {
		return true
	}

	// The creator keeps working rights on a document that is still editable.
	// Approval is the exception: it always requires a role grant.
	if action == CapabilityApprove {
		return false
	}
	if doc.CreatedBy == actor.ID && doc.Status.Editable() {
		return true
	}
	return false
}
