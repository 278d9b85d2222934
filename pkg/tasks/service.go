package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/storage/migrate"
)

// Service implements task and subtask operations on PostgreSQL
type Service struct {
	db     *sql.DB
	gate   *authz.Gate
	grants *authz.GrantService
}

// NewService creates a task service
func NewService(db *sql.DB, gate *authz.Gate, grants *authz.GrantService) *Service {
	return &Service{db: db, gate: gate, grants: grants}
}

// Create inserts a task and self-grants the creator ownership of it in one
// transaction. The actor needs manager or better on the project.
func (s *Service) Create(ctx context.Context, actorID, projectID int64, task *Task) (*Task, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindProject, projectID, authz.TaskCreate); err != nil {
		return nil, err
	}

	if task.Status == "" {
		task.Status = StatusPending
	}
	if !task.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", task.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	task.ProjectID = projectID
	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tasks (project_id, title, description, status, priority, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, task.ProjectID, task.Title, task.Description, task.Status, task.Priority, task.DueDate, now, now).Scan(&task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	task.CreatedAt = now
	task.UpdatedAt = now

	scope, err := authz.ScopeFor(authz.KindTask, task.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.grants.GrantOwner(ctx, tx, actorID, scope); err != nil {
		return nil, fmt.Errorf("failed to grant creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return task, nil
}

// Get returns a task together with the caller's effective access
func (s *Service) Get(ctx context.Context, actorID, taskID int64) (*TaskWithAccess, error) {
	eff, err := s.gate.Resolver().Resolve(ctx, actorID, authz.KindTask, taskID)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return nil, authz.ErrPermissionDenied
	}

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, authz.ErrPermissionDenied
	}

	return &TaskWithAccess{Task: *task, RoleLevel: eff.RoleLevel, Tier: eff.Tier}, nil
}

// ListByProject lists a project's tasks. The caller needs any access to
// the project.
func (s *Service) ListByProject(ctx context.Context, actorID, projectID int64) ([]Task, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindProject, projectID, authz.AtMost(authz.LevelGuest)); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, status, priority, due_date, created_at, updated_at
		FROM tasks
		WHERE project_id = $1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Update edits a task. Requires manager or better on the task.
func (s *Service) Update(ctx context.Context, actorID int64, task *Task) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindTask, task.ID, authz.TaskUpdate); err != nil {
		return err
	}
	if !task.Status.Valid() {
		return fmt.Errorf("invalid status %q", task.Status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, updated_at = $6
		WHERE id = $7
	`, task.Title, task.Description, task.Status, task.Priority, task.DueDate, time.Now(), task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
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

// Delete removes a task, its subtasks, attached notes and every grant
// underneath, in one transaction. Owner only.
func (s *Service) Delete(ctx context.Context, actorID, taskID int64) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindTask, taskID, authz.TaskDelete); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.grants.CascadeDeleteGrants(ctx, tx, authz.KindTask, taskID); err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM notes WHERE task_id = $1
			OR subtask_id IN (SELECT id FROM subtasks WHERE task_id = $1)`,
		`DELETE FROM subtasks WHERE task_id = $1`,
		`DELETE FROM tasks WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, taskID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// AddUser grants a user a role on the task
func (s *Service) AddUser(ctx context.Context, actorID, targetUserID, taskID int64, level int, tier authz.AccessTier) (*authz.ResourceGrant, error) {
	scope, err := authz.ScopeFor(authz.KindTask, taskID)
	if err != nil {
		return nil, err
	}
	return s.grants.AddGrant(ctx, actorID, targetUserID, scope, level, tier)
}

// RemoveUser removes a user's grant on the task
func (s *Service) RemoveUser(ctx context.Context, actorID, targetUserID, taskID int64) error {
	scope, err := authz.ScopeFor(authz.KindTask, taskID)
	if err != nil {
		return err
	}
	return s.grants.RemoveGrant(ctx, actorID, targetUserID, scope)
}

func (s *Service) getTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, status, priority, due_date, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func scanTask(scanner interface {
	Scan(dest ...interface{}) error
}) (*Task, error) {
	var task Task
	var description sql.NullString
	var priority sql.NullInt64
	var dueDate sql.NullTime

	err := scanner.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&description,
		&task.Status,
		&priority,
		&dueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = description.String
	}
	if priority.Valid {
		p := int(priority.Int64)
		task.Priority = &p
	}
	if dueDate.Valid {
		d := dueDate.Time
		task.DueDate = &d
	}
	return &task, nil
}

// Migrations returns the schema migrations for tasks and subtasks
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create tasks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tasks (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					description TEXT,
					status VARCHAR(16) NOT NULL DEFAULT 'pending',
					priority INT,
					due_date TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_tasks_project_id ON tasks(project_id);
				CREATE INDEX idx_tasks_status ON tasks(status);
			`,
		},
		{
			Version:     2,
			Description: "Create subtasks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subtasks (
					id BIGSERIAL PRIMARY KEY,
					task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					description TEXT,
					status VARCHAR(16) NOT NULL DEFAULT 'pending',
					due_date TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_subtasks_task_id ON subtasks(task_id);
			`,
		},
	}
}
