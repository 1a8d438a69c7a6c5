package recipients

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"tramita/internal/logging"
	"tramita/internal/services"
	"tramita/internal/store"
)

// SpecType selects how a recipient specification is interpreted.
type SpecType string

const (
	SpecAll       SpecType = "all"
	SpecRole      SpecType = "role"
	SpecWorkspace SpecType = "workspace"
	SpecSpecific  SpecType = "specific"
)

// Spec declares a notification audience. Exactly one criteria field matters
// per type; ExcludeUsers is subtracted from whatever the type selects.
type Spec struct {
	Type         SpecType
	Roles        []store.Role
	Workspaces   []store.Workspace
	UserIDs      []string
	ExcludeUsers []string
}

// Directory is the slice of the store the resolver needs.
type Directory interface {
	ListUsers(ctx context.Context, filter store.UserFilter) ([]store.User, error)
}

// Resolver turns a Spec into a deduplicated set of active user ids.
type Resolver struct {
	directory Directory
	logger    *slog.Logger
}

func NewResolver(directory Directory, logger *slog.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		logger:    logging.NewComponentLogger(logger, "recipients"),
	}
}

// Resolve returns the active user ids selected by spec, sorted for stable
// iteration. A spec whose required criteria field is empty resolves to the
// empty set rather than an error; only an unknown spec type is rejected.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) ([]string, error) {
	filter := store.UserFilter{ActiveOnly: true}

	switch spec.Type {
	case SpecAll:
	case SpecRole:
		if len(spec.Roles) == 0 {
			return nil, nil
		}
		filter.Roles = spec.Roles
	case SpecWorkspace:
		if len(spec.Workspaces) == 0 {
			return nil, nil
		}
		filter.Workspaces = spec.Workspaces
	case SpecSpecific:
		if len(spec.UserIDs) == 0 {
			return nil, nil
		}
		filter.IDs = spec.UserIDs
	default:
		return nil, services.Wrap(services.ErrValidation, "recipients", "resolve",
			fmt.Sprintf("unknown recipient spec type %q", spec.Type), nil)
	}

	users, err := r.directory.ListUsers(ctx, filter)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "recipients", "resolve", "query user directory", err)
	}

	excluded := make(map[string]struct{}, len(spec.ExcludeUsers))
	for _, id := range spec.ExcludeUsers {
		excluded[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(users))
	ids := make([]string, 0, len(users))
	for _, user := range users {
		if _, skip := excluded[user.ID]; skip {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		ids = append(ids, user.ID)
	}
	sort.Strings(ids)

	r.logger.Debug("recipient spec resolved",
		logging.String("spec_type", string(spec.Type)),
		logging.Int("recipients", len(ids)))
	return ids, nil
}
