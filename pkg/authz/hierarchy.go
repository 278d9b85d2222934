package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Ancestor is one step in a resource's chain up to its company
type Ancestor struct {
	Kind ResourceKind
	ID   int64
}

// Index answers containment questions about the resource hierarchy.
// It reads the domain tables directly and never caches: resolution must
// observe deletes in the same transaction-ordering the services use.
type Index struct {
	db *sql.DB
}

// NewIndex creates a hierarchy index over the domain tables
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Ancestors returns the chain of containing resources from the immediate
// parent up to the company. A missing resource yields an empty chain and
// no error, so nonexistent targets resolve to "no access" downstream.
func (ix *Index) Ancestors(ctx context.Context, kind ResourceKind, id int64) ([]Ancestor, error) {
	switch kind {
	case KindCompany:
		return nil, nil
	case KindProject:
		companyID, ok, err := ix.lookupParent(ctx, `SELECT company_id FROM projects WHERE id = $1`, id)
		if err != nil || !ok {
			return nil, err
		}
		return []Ancestor{{KindCompany, companyID}}, nil
	case KindTask:
		projectID, ok, err := ix.lookupParent(ctx, `SELECT project_id FROM tasks WHERE id = $1`, id)
		if err != nil || !ok {
			return nil, err
		}
		chain, err := ix.Ancestors(ctx, KindProject, projectID)
		if err != nil || chain == nil {
			return nil, err
		}
		return append([]Ancestor{{KindProject, projectID}}, chain...), nil
	case KindSubtask:
		taskID, ok, err := ix.lookupParent(ctx, `SELECT task_id FROM subtasks WHERE id = $1`, id)
		if err != nil || !ok {
			return nil, err
		}
		chain, err := ix.Ancestors(ctx, KindTask, taskID)
		if err != nil || chain == nil {
			return nil, err
		}
		return append([]Ancestor{{KindTask, taskID}}, chain...), nil
	case KindNote:
		ref, err := ix.Note(ctx, id)
		if err != nil {
			return nil, err
		}
		if ref == nil || ref.Scope.IsZero() {
			return nil, nil
		}
		chain, err := ix.Ancestors(ctx, ref.Scope.Kind(), ref.Scope.ResourceID())
		if err != nil {
			return nil, err
		}
		return append([]Ancestor{{ref.Scope.Kind(), ref.Scope.ResourceID()}}, chain...), nil
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}

// CompanyOf returns the company containing the resource. ok is false when
// the resource does not exist.
func (ix *Index) CompanyOf(ctx context.Context, kind ResourceKind, id int64) (int64, bool, error) {
	if kind == KindCompany {
		exists, err := ix.CompanyExists(ctx, id)
		return id, exists, err
	}

	chain, err := ix.Ancestors(ctx, kind, id)
	if err != nil || len(chain) == 0 {
		return 0, false, err
	}
	top := chain[len(chain)-1]
	if top.Kind != KindCompany {
		return 0, false, nil
	}
	return top.ID, true, nil
}

// CompanyExists reports whether a company row exists
func (ix *Index) CompanyExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := ix.db.QueryRowContext(ctx, `SELECT id FROM companies WHERE id = $1`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check company: %w", err)
	}
	return true, nil
}

// NoteRef carries the resolution-relevant fields of a note: its author and
// the resource it is attached to (zero scope for personal notes)
type NoteRef struct {
	ID       int64
	AuthorID int64
	Scope    GrantScope
}

// Note returns the author and attachment of a note, or (nil, nil) when the
// note does not exist
func (ix *Index) Note(ctx context.Context, id int64) (*NoteRef, error) {
	query := `
		SELECT id, user_id, company_id, project_id, task_id, subtask_id
		FROM notes
		WHERE id = $1
	`

	var ref NoteRef
	var companyID, projectID, taskID, subtaskID sql.NullInt64

	err := ix.db.QueryRowContext(ctx, query, id).Scan(
		&ref.ID,
		&ref.AuthorID,
		&companyID,
		&projectID,
		&taskID,
		&subtaskID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	if companyID.Valid {
		v := companyID.Int64
		ref.Scope.CompanyID = &v
	}
	if projectID.Valid {
		v := projectID.Int64
		ref.Scope.ProjectID = &v
	}
	if taskID.Valid {
		v := taskID.Int64
		ref.Scope.TaskID = &v
	}
	if subtaskID.Valid {
		v := subtaskID.Int64
		ref.Scope.SubtaskID = &v
	}

	return &ref, nil
}

func (ix *Index) lookupParent(ctx context.Context, query string, id int64) (int64, bool, error) {
	var parentID int64
	err := ix.db.QueryRowContext(ctx, query, id).Scan(&parentID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up parent: %w", err)
	}
	return parentID, true, nil
}
