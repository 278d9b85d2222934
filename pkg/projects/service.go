package projects

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/storage/migrate"
)

// Service implements project operations on PostgreSQL
type Service struct {
	db     *sql.DB
	gate   *authz.Gate
	grants *authz.GrantService
}

// NewService creates a project service
func NewService(db *sql.DB, gate *authz.Gate, grants *authz.GrantService) *Service {
	return &Service{db: db, gate: gate, grants: grants}
}

// Create inserts a project and self-grants the creator ownership of it in
// one transaction. The actor needs manager or better on the company.
func (s *Service) Create(ctx context.Context, actorID, companyID int64, title, description, color string) (*Project, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindCompany, companyID, authz.ProjectCreate); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	project := &Project{
		CompanyID:   companyID,
		Title:       title,
		Description: description,
		Color:       color,
	}

	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (company_id, title, description, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, project.CompanyID, project.Title, project.Description, project.Color, now, now).Scan(&project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	project.CreatedAt = now
	project.UpdatedAt = now

	scope, err := authz.ScopeFor(authz.KindProject, project.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.grants.GrantOwner(ctx, tx, actorID, scope); err != nil {
		return nil, fmt.Errorf("failed to grant creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return project, nil
}

// Get returns a project together with the caller's effective access
func (s *Service) Get(ctx context.Context, actorID, projectID int64) (*ProjectWithAccess, error) {
	eff, err := s.gate.Resolver().Resolve(ctx, actorID, authz.KindProject, projectID)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return nil, authz.ErrPermissionDenied
	}

	project, err := s.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, authz.ErrPermissionDenied
	}

	return &ProjectWithAccess{Project: *project, RoleLevel: eff.RoleLevel, Tier: eff.Tier}, nil
}

// ListForUser returns every project the user can reach, either through a
// project grant or through a company membership within the project
// ceiling, keeping the strongest level per project
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]ProjectWithAccess, error) {
	query := `
		SELECT p.id, p.company_id, p.title, p.description, p.color, p.created_at, p.updated_at,
		       r.level, g.access_tier
		FROM projects p
		JOIN resource_grants g ON g.project_id = p.id
		JOIN roles r ON r.id = g.role_id
		WHERE g.user_id = $1
		UNION ALL
		SELECT p.id, p.company_id, p.title, p.description, p.color, p.created_at, p.updated_at,
		       r.level, cm.access_tier
		FROM projects p
		JOIN company_members cm ON cm.company_id = p.company_id
		JOIN roles r ON r.id = cm.role_id
		WHERE cm.user_id = $2 AND r.level <= $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID, authz.MembershipCeiling(authz.KindProject))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]int)
	var projects []ProjectWithAccess
	for rows.Next() {
		var p ProjectWithAccess
		var description, color sql.NullString
		err := rows.Scan(&p.ID, &p.CompanyID, &p.Title, &description, &color,
			&p.CreatedAt, &p.UpdatedAt, &p.RoleLevel, &p.Tier)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if description.Valid {
			p.Description = description.String
		}
		if color.Valid {
			p.Color = color.String
		}

		if idx, seen := byID[p.ID]; seen {
			if p.RoleLevel < projects[idx].RoleLevel {
				projects[idx] = p
			}
			continue
		}
		byID[p.ID] = len(projects)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update edits a project's attributes. Requires manager or better.
func (s *Service) Update(ctx context.Context, actorID, projectID int64, title, description, color string) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindProject, projectID, authz.ProjectUpdate); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET title = $1, description = $2, color = $3, updated_at = $4 WHERE id = $5`,
		title, description, color, time.Now(), projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
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

// Delete removes a project, its tasks, subtasks, attached notes and every
// grant underneath, in one transaction. Owner only.
func (s *Service) Delete(ctx context.Context, actorID, projectID int64) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindProject, projectID, authz.ProjectDelete); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.grants.CascadeDeleteGrants(ctx, tx, authz.KindProject, projectID); err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM notes WHERE project_id = $1
			OR task_id IN (SELECT id FROM tasks WHERE project_id = $1)
			OR subtask_id IN (SELECT st.id FROM subtasks st JOIN tasks t ON st.task_id = t.id WHERE t.project_id = $1)`,
		`DELETE FROM subtasks WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)`,
		`DELETE FROM tasks WHERE project_id = $1`,
		`DELETE FROM projects WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, projectID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// AddUser grants a user a role on the project
func (s *Service) AddUser(ctx context.Context, actorID, targetUserID, projectID int64, level int, tier authz.AccessTier) (*authz.ResourceGrant, error) {
	scope, err := authz.ScopeFor(authz.KindProject, projectID)
	if err != nil {
		return nil, err
	}
	return s.grants.AddGrant(ctx, actorID, targetUserID, scope, level, tier)
}

// RemoveUser removes a user's grant on the project
func (s *Service) RemoveUser(ctx context.Context, actorID, targetUserID, projectID int64) error {
	scope, err := authz.ScopeFor(authz.KindProject, projectID)
	if err != nil {
		return err
	}
	return s.grants.RemoveGrant(ctx, actorID, targetUserID, scope)
}

func (s *Service) get(ctx context.Context, id int64) (*Project, error) {
	var p Project
	var description, color sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, title, description, color, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, id).Scan(&p.ID, &p.CompanyID, &p.Title, &description, &color, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if description.Valid {
		p.Description = description.String
	}
	if color.Valid {
		p.Color = color.String
	}
	return &p, nil
}

// Migrations returns the schema migrations for the projects table
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create projects table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					description TEXT,
					color VARCHAR(7),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_projects_company_id ON projects(company_id);
			`,
		},
	}
}
