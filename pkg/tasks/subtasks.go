package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// CreateSubtask inserts a subtask and self-grants the creator ownership of
// it in one transaction. The actor needs manager or better on the task.
func (s *Service) CreateSubtask(ctx context.Context, actorID, taskID int64, subtask *Subtask) (*Subtask, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindTask, taskID, authz.SubtaskCreate); err != nil {
		return nil, err
	}

	if subtask.Status == "" {
		subtask.Status = StatusPending
	}
	if !subtask.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", subtask.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	subtask.TaskID = taskID
	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO subtasks (task_id, title, description, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, subtask.TaskID, subtask.Title, subtask.Description, subtask.Status, subtask.DueDate, now, now).Scan(&subtask.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create subtask: %w", err)
	}
	subtask.CreatedAt = now
	subtask.UpdatedAt = now

	scope, err := authz.ScopeFor(authz.KindSubtask, subtask.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.grants.GrantOwner(ctx, tx, actorID, scope); err != nil {
		return nil, fmt.Errorf("failed to grant creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return subtask, nil
}

// GetSubtask returns a subtask together with the caller's effective access
func (s *Service) GetSubtask(ctx context.Context, actorID, subtaskID int64) (*SubtaskWithAccess, error) {
	eff, err := s.gate.Resolver().Resolve(ctx, actorID, authz.KindSubtask, subtaskID)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return nil, authz.ErrPermissionDenied
	}

	subtask, err := s.getSubtask(ctx, subtaskID)
	if err != nil {
		return nil, err
	}
	if subtask == nil {
		return nil, authz.ErrPermissionDenied
	}

	return &SubtaskWithAccess{Subtask: *subtask, RoleLevel: eff.RoleLevel, Tier: eff.Tier}, nil
}

// ListSubtasks lists a task's subtasks. The caller needs any access to the
// task.
func (s *Service) ListSubtasks(ctx context.Context, actorID, taskID int64) ([]Subtask, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindTask, taskID, authz.AtMost(authz.LevelGuest)); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, title, description, status, due_date, created_at, updated_at
		FROM subtasks
		WHERE task_id = $1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []Subtask
	for rows.Next() {
		subtask, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		subtasks = append(subtasks, *subtask)
	}
	return subtasks, rows.Err()
}

// UpdateSubtask edits a subtask. Requires manager or better on the subtask.
func (s *Service) UpdateSubtask(ctx context.Context, actorID int64, subtask *Subtask) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindSubtask, subtask.ID, authz.SubtaskUpdate); err != nil {
		return err
	}
	if !subtask.Status.Valid() {
		return fmt.Errorf("invalid status %q", subtask.Status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE subtasks
		SET title = $1, description = $2, status = $3, due_date = $4, updated_at = $5
		WHERE id = $6
	`, subtask.Title, subtask.Description, subtask.Status, subtask.DueDate, time.Now(), subtask.ID)
	if err != nil {
		return fmt.Errorf("failed to update subtask: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return authz.ErrPermissionDenied
	}
	return nil
}

// DeleteSubtask removes a subtask, its attached notes and its grants in
// one transaction. Owner only.
func (s *Service) DeleteSubtask(ctx context.Context, actorID, subtaskID int64) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindSubtask, subtaskID, authz.SubtaskDelete); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.grants.CascadeDeleteGrants(ctx, tx, authz.KindSubtask, subtaskID); err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM notes WHERE subtask_id = $1`,
		`DELETE FROM subtasks WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, subtaskID); err != nil {
			return fmt.Errorf("failed to delete subtask: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// AddSubtaskUser grants a user a role on the subtask
func (s *Service) AddSubtaskUser(ctx context.Context, actorID, targetUserID, subtaskID int64, level int, tier authz.AccessTier) (*authz.ResourceGrant, error) {
	scope, err := authz.ScopeFor(authz.KindSubtask, subtaskID)
	if err != nil {
		return nil, err
	}
	return s.grants.AddGrant(ctx, actorID, targetUserID, scope, level, tier)
}

// RemoveSubtaskUser removes a user's grant on the subtask
func (s *Service) RemoveSubtaskUser(ctx context.Context, actorID, targetUserID, subtaskID int64) error {
	scope, err := authz.ScopeFor(authz.KindSubtask, subtaskID)
	if err != nil {
		return err
	}
	return s.grants.RemoveGrant(ctx, actorID, targetUserID, scope)
}

func (s *Service) getSubtask(ctx context.Context, id int64) (*Subtask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, title, description, status, due_date, created_at, updated_at
		FROM subtasks
		WHERE id = $1
	`, id)

	subtask, err := scanSubtask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtask: %w", err)
	}
	return subtask, nil
}

func scanSubtask(scanner interface {
	Scan(dest ...interface{}) error
}) (*Subtask, error) {
	var subtask Subtask
	var description sql.NullString
	var dueDate sql.NullTime

	err := scanner.Scan(
		&subtask.ID,
		&subtask.TaskID,
		&subtask.Title,
		&description,
		&subtask.Status,
		&dueDate,
		&subtask.CreatedAt,
		&subtask.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		subtask.Description = description.String
	}
	if dueDate.Valid {
		d := dueDate.Time
		subtask.DueDate = &d
	}
	return &subtask, nil
}
