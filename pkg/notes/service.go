// Package notes implements free-form notes attached to at most one
// resource in the hierarchy, or to nothing (personal notes). Authors keep
// full access to their notes regardless of any other association.
package notes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/storage/migrate"
)

// Note is a free-form text record owned by its author
type Note struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CompanyID *int64    `json:"company_id,omitempty"`
	ProjectID *int64    `json:"project_id,omitempty"`
	TaskID    *int64    `json:"task_id,omitempty"`
	SubtaskID *int64    `json:"subtask_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope returns the note's attachment, zero for personal notes
func (n *Note) Scope() authz.GrantScope {
	return authz.GrantScope{
		CompanyID: n.CompanyID,
		ProjectID: n.ProjectID,
		TaskID:    n.TaskID,
		SubtaskID: n.SubtaskID,
	}
}

// Service implements note operations on PostgreSQL
type Service struct {
	db   *sql.DB
	gate *authz.Gate
}

// NewService creates a note service
func NewService(db *sql.DB, gate *authz.Gate) *Service {
	return &Service{db: db, gate: gate}
}

// Create inserts a note authored by the actor. An attached note requires
// administrator or better on the attachment; a note with more than one
// attachment is rejected. Personal notes need no privileges.
func (s *Service) Create(ctx context.Context, actorID int64, note *Note) (*Note, error) {
	scope := note.Scope()
	if !scope.IsZero() {
		if err := scope.Validate(); err != nil {
			return nil, err
		}
		if err := s.gate.Authorize(ctx, actorID, scope.Kind(), scope.ResourceID(), authz.NoteCreate); err != nil {
			return nil, err
		}
	}

	note.UserID = actorID
	now := time.Now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (user_id, company_id, project_id, task_id, subtask_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, note.UserID, note.CompanyID, note.ProjectID, note.TaskID, note.SubtaskID, note.Content, now, now).Scan(&note.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	note.CreatedAt = now
	note.UpdatedAt = now
	return note, nil
}

// Get returns a note the actor can read: their own, or one whose
// attachment they can reach at administrator or better
func (s *Service) Get(ctx context.Context, actorID, noteID int64) (*Note, error) {
	eff, err := s.gate.Resolver().Resolve(ctx, actorID, authz.KindNote, noteID)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return nil, authz.ErrPermissionDenied
	}

	note, err := s.get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, authz.ErrPermissionDenied
	}
	return note, nil
}

// ListForUser returns every note the user authored, attached or personal
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, company_id, project_id, task_id, subtask_id, content, created_at, updated_at
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, *note)
	}
	return notes, rows.Err()
}

// Update edits a note's content. Same rule as reading: author or
// administrator on the attachment.
func (s *Service) Update(ctx context.Context, actorID, noteID int64, content string) error {
	eff, err := s.gate.Resolver().Resolve(ctx, actorID, authz.KindNote, noteID)
	if err != nil {
		return err
	}
	if eff == nil {
		return authz.ErrPermissionDenied
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE notes SET content = $1, updated_at = $2 WHERE id = $3`,
		content, time.Now(), noteID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return nil
}

// Delete removes a note under the same rule as reading
func (s *Service) Delete(ctx context.Context, actorID, noteID int64) error {
	eff, err := s.gate.Resolver().Resolve(ctx, actorID, authz.KindNote, noteID)
	if err != nil {
		return err
	}
	if eff == nil {
		return authz.ErrPermissionDenied
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, noteID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, id int64) (*Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, company_id, project_id, task_id, subtask_id, content, created_at, updated_at
		FROM notes
		WHERE id = $1
	`, id)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

func scanNote(scanner interface {
	Scan(dest ...interface{}) error
}) (*Note, error) {
	var note Note
	var companyID, projectID, taskID, subtaskID sql.NullInt64

	err := scanner.Scan(
		&note.ID,
		&note.UserID,
		&companyID,
		&projectID,
		&taskID,
		&subtaskID,
		&note.Content,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if companyID.Valid {
		v := companyID.Int64
		note.CompanyID = &v
	}
	if projectID.Valid {
		v := projectID.Int64
		note.ProjectID = &v
	}
	if taskID.Valid {
		v := taskID.Int64
		note.TaskID = &v
	}
	if subtaskID.Valid {
		v := subtaskID.Int64
		note.SubtaskID = &v
	}
	return &note, nil
}

// Migrations returns the schema migrations for the notes table
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create notes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notes (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					company_id BIGINT REFERENCES companies(id) ON DELETE CASCADE,
					project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
					task_id BIGINT REFERENCES tasks(id) ON DELETE CASCADE,
					subtask_id BIGINT REFERENCES subtasks(id) ON DELETE CASCADE,
					content TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CHECK (num_nonnulls(company_id, project_id, task_id, subtask_id) <= 1)
				);

				CREATE INDEX idx_notes_user_id ON notes(user_id);
				CREATE INDEX idx_notes_task_id ON notes(task_id);
			`,
		},
	}
}
