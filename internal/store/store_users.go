package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const userColumns = "id, name, role, workspace, active, created_at, updated_at"

// UserFilter narrows directory queries. Zero-value fields are ignored.
type UserFilter struct {
	Roles      []Role
	Workspaces []Workspace
	IDs        []string
	ActiveOnly bool
}

// CreateUser inserts a directory entry. New users are active.
func (s *Store) CreateUser(ctx context.Context, user User) error {
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (id, name, role, workspace, active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		string(user.Role),
		string(user.Workspace),
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser fetches a user by identifier. Returns nil when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers returns directory entries matching the filter, ordered by id.
func (s *Store) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ActiveOnly {
		clauses = append(clauses, "active = 1")
	}
	if len(filter.Roles) > 0 {
		placeholders := makePlaceholders(len(filter.Roles))
		clauses = append(clauses, "role IN ("+placeholders+")")
		for _, role := range filter.Roles {
			args = append(args, string(role))
		}
	}
	if len(filter.Workspaces) > 0 {
		placeholders := makePlaceholders(len(filter.Workspaces))
		clauses = append(clauses, "workspace IN ("+placeholders+")")
		for _, ws := range filter.Workspaces {
			args = append(args, string(ws))
		}
	}
	if len(filter.IDs) > 0 {
		placeholders := makePlaceholders(len(filter.IDs))
		clauses = append(clauses, "id IN ("+placeholders+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetUserActive flips the active flag on a directory entry.
func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s not found", id)
	}
	return nil
}

// UpdateUserAssignment changes a user's role and workspace. Administrator-only
// at the operation surface; the store does not enforce that.
func (s *Store) UpdateUserAssignment(ctx context.Context, id string, role Role, workspace Workspace) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE users SET role = ?, workspace = ?, updated_at = ? WHERE id = ?`,
		string(role),
		string(workspace),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update user assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user assignment: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s not found", id)
	}
	return nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		id         string
		name       sql.NullString
		roleStr    string
		workspace  string
		active     sql.NullInt64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &name, &roleStr, &workspace, &active, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	user := &User{
		ID:        id,
		Name:      name.String,
		Role:      Role(roleStr),
		Workspace: Workspace(workspace),
		Active:    active.Valid && active.Int64 != 0,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		user.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		user.UpdatedAt = updated
	}
	return user, nil
}
