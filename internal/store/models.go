package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role identifies a user's function within the municipality.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RolePresidente    Role = "presidente"
	RoleSecretario    Role = "secretario"
	RoleSecretarioCF  Role = "secretario_cf"
	RoleCFMember      Role = "cf_member"
	RoleFuncionario   Role = "funcionario"
)

var allRoles = []Role{
	RoleAdministrator,
	RolePresidente,
	RoleSecretario,
	RoleSecretarioCF,
	RoleCFMember,
	RoleFuncionario,
}

// Workspace is the organizational partition scoping document visibility.
type Workspace string

const (
	WorkspacePresidencia  Workspace = "presidencia"
	WorkspaceCAM          Workspace = "cam"
	WorkspaceAMPP         Workspace = "ampp"
	WorkspaceIntendencia  Workspace = "intendencia"
	WorkspaceComisionesCF Workspace = "comisiones_cf"
)

var allWorkspaces = []Workspace{
	WorkspacePresidencia,
	WorkspaceCAM,
	WorkspaceAMPP,
	WorkspaceIntendencia,
	WorkspaceComisionesCF,
}

// DocumentStatus represents the lifecycle state of a document.
type DocumentStatus string

const (
	StatusDraft           DocumentStatus = "draft"
	StatusPendingReview   DocumentStatus = "pending_review"
	StatusUnderReview     DocumentStatus = "under_review"
	StatusPendingApproval DocumentStatus = "pending_approval"
	StatusApproved        DocumentStatus = "approved"
	StatusRejected        DocumentStatus = "rejected"
	StatusPublished       DocumentStatus = "published"
	StatusArchived        DocumentStatus = "archived"
	StatusObsolete        DocumentStatus = "obsolete"
)

var allStatuses = []DocumentStatus{
	StatusDraft,
	StatusPendingReview,
	StatusUnderReview,
	StatusPendingApproval,
	StatusApproved,
	StatusRejected,
	StatusPublished,
	StatusArchived,
	StatusObsolete,
}

// NotificationType classifies the origin and intent of a notification.
type NotificationType string

const (
	TypeWorkflow     NotificationType = "workflow"
	TypeAnnouncement NotificationType = "announcement"
	TypeReminder     NotificationType = "reminder"
	TypeAlert        NotificationType = "alert"
)

var allNotificationTypes = []NotificationType{
	TypeWorkflow,
	TypeAnnouncement,
	TypeReminder,
	TypeAlert,
}

// Priority orders notifications for display.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var allPriorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// DeliveryMethod names a delivery channel for a notification.
type DeliveryMethod string

const (
	MethodBrowser DeliveryMethod = "browser"
	MethodEmail   DeliveryMethod = "email"
)

// Version is a document's semantic version, bumped on content-changing edits.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// BumpLevel selects which version component a content edit increments.
type BumpLevel string

const (
	BumpPatch BumpLevel = "patch"
	BumpMinor BumpLevel = "minor"
	BumpMajor BumpLevel = "major"
)

// Bump returns the version incremented at the given level. Patch is the
// default for unknown levels.
func (v Version) Bump(level BumpLevel) Version {
	switch level {
	case BumpMajor:
		return Version{Major: v.Major + 1}
	case BumpMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	default:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}

// ParseVersion converts a "major.minor.patch" string into a Version.
func ParseVersion(value string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(value), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version %q: want major.minor.patch", value)
	}
	numbers := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version %q: component %q is not a non-negative integer", value, part)
		}
		numbers[i] = n
	}
	return Version{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

// User is an entry in the municipal user directory.
type User struct {
	ID        string
	Name      string
	Role      Role
	Workspace Workspace
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is a workflow-managed municipal document.
type Document struct {
	ID         string
	Title      string
	Status     DocumentStatus
	Workspace  Workspace
	CreatedBy  string
	AssignedTo string
	Version    Version
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Notification is an immutable alert fanned out to one or more recipients.
// Only RecipientCount changes after creation, and only through delivery-row
// bookkeeping.
type Notification struct {
	ID             string
	Title          string
	Content        string
	Type           NotificationType
	Priority       Priority
	CreatedBy      string
	CreatedAt      time.Time
	ExpiresAt      *time.Time
	RecipientCount int
	Metadata       map[string]string
}

// Delivery is the per-recipient join record carrying independent read and
// archive state for a notification.
type Delivery struct {
	ID             string
	NotificationID string
	UserID         string
	IsRead         bool
	ReadAt         *time.Time
	IsArchived     bool
	ArchivedAt     *time.Time
	Methods        []DeliveryMethod
	DeliveredAt    *time.Time
	ActionTaken    string
	ActionTakenAt  *time.Time
}

// UserNotification pairs a delivery record with its parent notification for
// inbox listings.
type UserNotification struct {
	Delivery     Delivery
	Notification Notification
}

// AuditEntry records an action taken against the system, best-effort.
type AuditEntry struct {
	ID        int64
	UserID    string
	Action    string
	Details   map[string]string
	CreatedAt time.Time
}

// AllStatuses returns the ordered list of known document statuses.
func AllStatuses() []DocumentStatus {
	cp := make([]DocumentStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// AllRoles returns the ordered list of known roles.
func AllRoles() []Role {
	cp := make([]Role, len(allRoles))
	copy(cp, allRoles)
	return cp
}

// AllWorkspaces returns the ordered list of known workspaces.
func AllWorkspaces() []Workspace {
	cp := make([]Workspace, len(allWorkspaces))
	copy(cp, allWorkspaces)
	return cp
}

var statusSet = toSet(allStatuses)
var roleSet = toSet(allRoles)
var workspaceSet = toSet(allWorkspaces)
var notificationTypeSet = toSet(allNotificationTypes)
var prioritySet = toSet(allPriorities)

func toSet[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ParseStatus converts a string into a known DocumentStatus.
func ParseStatus(value string) (DocumentStatus, bool) {
	status := DocumentStatus(normalize(value))
	_, ok := statusSet[status]
	return status, ok
}

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	role := Role(normalize(value))
	_, ok := roleSet[role]
	return role, ok
}

// ParseWorkspace converts a string into a known Workspace.
func ParseWorkspace(value string) (Workspace, bool) {
	ws := Workspace(normalize(value))
	_, ok := workspaceSet[ws]
	return ws, ok
}

// ParseNotificationType converts a string into a known NotificationType.
func ParseNotificationType(value string) (NotificationType, bool) {
	t := NotificationType(normalize(value))
	_, ok := notificationTypeSet[t]
	return t, ok
}

// ParsePriority converts a string into a known Priority. Empty input maps to
// PriorityNormal.
func ParsePriority(value string) (Priority, bool) {
	normalized := normalize(value)
	if normalized == "" {
		return PriorityNormal, true
	}
	p := Priority(normalized)
	_, ok := prioritySet[p]
	return p, ok
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusObsolete
}

// Editable reports whether a document in this status may still be modified by
// its creator. The set gates the ownership override in the permission engine.
func (s DocumentStatus) Editable() bool {
	switch s {
	case StatusDraft, StatusRejected:
		return true
	default:
		return false
	}
}
