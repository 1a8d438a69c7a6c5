// Package audit records actor activity on a best-effort basis. A failed
// write is logged and swallowed so it can never interrupt the operation
// being audited.
package audit

import (
	"context"
	"log/slog"

	"tramita/internal/logging"
)

// Log is the write side of the audit trail.
type Log interface {
	LogAction(ctx context.Context, userID, action string, details map[string]string)
}

type journal interface {
	AppendAudit(ctx context.Context, userID, action string, details map[string]string) error
}

// Recorder persists audit entries through the store.
type Recorder struct {
	journal journal
	logger  *slog.Logger
}

func NewRecorder(journal journal, logger *slog.Logger) *Recorder {
	return &Recorder{
		journal: journal,
		logger:  logging.NewComponentLogger(logger, "audit"),
	}
}

// LogAction appends one entry. Errors are logged, never returned.
func (r *Recorder) LogAction(ctx context.Context, userID, action string, details map[string]string) {
	if err := r.journal.AppendAudit(ctx, userID, action, details); err != nil {
		r.logger.Warn("audit write failed",
			logging.String(logging.FieldUserID, userID),
			logging.String("action", action),
			logging.Error(err))
	}
}

// Nop is an audit log that discards everything. Useful in tests and for
// callers that have no journal wired.
type Nop struct{}

func (Nop) LogAction(context.Context, string, string, map[string]string) {}

var _ Log = (*Recorder)(nil)
var _ Log = Nop{}
