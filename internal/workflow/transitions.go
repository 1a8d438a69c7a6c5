package workflow

import (
	"tramita/internal/permissions"
	"tramita/internal/store"
)

// allowedEdges is the complete transition table. A status missing from the
// map, or an empty slice, is terminal.
var allowedEdges = map[store.DocumentStatus][]store.DocumentStatus{
	store.StatusDraft:           {store.StatusPendingReview},
	store.StatusPendingReview:   {store.StatusUnderReview, store.StatusRejected},
	store.StatusUnderReview:     {store.StatusPendingApproval, store.StatusRejected},
	store.StatusPendingApproval: {store.StatusApproved, store.StatusRejected},
	store.StatusApproved:        {store.StatusPublished, store.StatusArchived},
	store.StatusRejected:        {store.StatusDraft},
	store.StatusPublished:       {store.StatusArchived, store.StatusObsolete},
	store.StatusArchived:        {store.StatusObsolete},
	store.StatusObsolete:        {},
}

// AllowedTransitions returns the targets reachable from status in one step.
func AllowedTransitions(status store.DocumentStatus) []store.DocumentStatus {
	targets := allowedEdges[status]
	cp := make([]store.DocumentStatus, len(targets))
	copy(cp, targets)
	return cp
}

func edgeAllowed(from, to store.DocumentStatus) bool {
	for _, target := range allowedEdges[from] {
		if target == to {
			return true
		}
	}
	return false
}

// edgeCapability maps a transition to the capability its actor must hold.
// Rejection is an approval-class decision, so every edge into rejected
// requires the approve capability.
func edgeCapability(from, to store.DocumentStatus) permissions.Capability {
	switch {
	case to == store.StatusRejected:
		return permissions.CapabilityApprove
	case from == store.StatusPendingApproval && to == store.StatusApproved:
		return permissions.CapabilityApprove
	case to == store.StatusArchived:
		return permissions.CapabilityArchive
	default:
		return permissions.CapabilityWrite
	}
}
