package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const documentColumns = "id, title, status, workspace, created_by, assigned_to, version_major, version_minor, version_patch, created_at, updated_at"

// DocumentFilter narrows document listings. Zero-value fields are ignored.
type DocumentFilter struct {
	Statuses   []DocumentStatus
	Workspaces []Workspace
	CreatedBy  string
}

// CreateDocument inserts a new document in draft at version 1.0.0.
func (s *Store) CreateDocument(ctx context.Context, title string, workspace Workspace, createdBy, assignedTo string) (*Document, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("document title is required")
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, errors.New("document creator is required")
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO documents (
            id, title, status, workspace, created_by, assigned_to,
            version_major, version_minor, version_patch, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		title,
		string(StatusDraft),
		string(workspace),
		createdBy,
		nullableString(assignedTo),
		1, 0, 0,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	return s.GetDocument(ctx, id)
}

// GetDocument fetches a document by identifier. Returns nil when absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns documents matching the filter ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		placeholders := makePlaceholders(len(filter.Statuses))
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if len(filter.Workspaces) > 0 {
		placeholders := makePlaceholders(len(filter.Workspaces))
		clauses = append(clauses, "workspace IN ("+placeholders+")")
		for _, ws := range filter.Workspaces {
			args = append(args, string(ws))
		}
	}
	if filter.CreatedBy != "" {
		clauses = append(clauses, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus writes a new status guarded by the status and version
// the caller read. Transitions do not advance the version, so the version
// alone cannot detect a racing transition; the from-status closes that
// window. The returned count is 0 when the stored row no longer matches,
// which callers surface as a conflict.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status, from DocumentStatus, expect Version) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE documents SET status = ?, updated_at = ?
         WHERE id = ? AND status = ?
           AND version_major = ? AND version_minor = ? AND version_patch = ?`,
		string(status),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		string(from),
		expect.Major,
		expect.Minor,
		expect.Patch,
	)
	if err != nil {
		return 0, fmt.Errorf("update document status: %w", err)
	}
	return res.RowsAffected()
}

// UpdateDocumentContent applies a content edit: the title is replaced, the
// version advances to next, and the status returns to draft. The write is
// guarded by the version the caller read, like UpdateDocumentStatus.
func (s *Store) UpdateDocumentContent(ctx context.Context, id, title string, next Version, expect Version) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE documents SET title = ?, status = ?,
             version_major = ?, version_minor = ?, version_patch = ?, updated_at = ?
         WHERE id = ? AND version_major = ? AND version_minor = ? AND version_patch = ?`,
		title,
		string(StatusDraft),
		next.Major,
		next.Minor,
		next.Patch,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		expect.Major,
		expect.Minor,
		expect.Patch,
	)
	if err != nil {
		return 0, fmt.Errorf("update document content: %w", err)
	}
	return res.RowsAffected()
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		id         string
		title      sql.NullString
		statusStr  string
		workspace  string
		createdBy  string
		assignedTo sql.NullString
		major      int
		minor      int
		patch      int
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&title,
		&statusStr,
		&workspace,
		&createdBy,
		&assignedTo,
		&major,
		&minor,
		&patch,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:         id,
		Title:      title.String,
		Status:     DocumentStatus(statusStr),
		Workspace:  Workspace(workspace),
		CreatedBy:  createdBy,
		AssignedTo: assignedTo.String,
		Version:    Version{Major: major, Minor: minor, Patch: patch},
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		doc.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		doc.UpdatedAt = updated
	}
	return doc, nil
}
