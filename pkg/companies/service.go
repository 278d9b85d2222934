package companies

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// aliasAttempts bounds the retry loop when generated aliases collide
const aliasAttempts = 5

// Service implements company operations on PostgreSQL
type Service struct {
	db     *sql.DB
	gate   *authz.Gate
	grants *authz.GrantService
}

// NewService creates a company service
func NewService(db *sql.DB, gate *authz.Gate, grants *authz.GrantService) *Service {
	return &Service{db: db, gate: gate, grants: grants}
}

// Gate exposes the authorization gate for callers that enforce their own
// company-scoped checks
func (s *Service) Gate() *authz.Gate {
	return s.gate
}

// Create inserts a company and enrolls the creator as its owner with full
// access, in one transaction. The alias is derived from the name; on
// collision a random numeric suffix is appended and the insert retried.
func (s *Service) Create(ctx context.Context, creatorID int64, name, description string) (*Company, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	company := &Company{
		Name:        name,
		Description: description,
	}

	base := generateAlias(name)
	alias := base
	now := time.Now()
	for attempt := 0; ; attempt++ {
		taken, err := s.aliasTaken(ctx, tx, alias)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		if attempt >= aliasAttempts {
			return nil, fmt.Errorf("failed to find a free alias for %q", name)
		}
		alias = fmt.Sprintf("%s%d", base, rand.Intn(10000))
	}
	company.NameAlias = alias

	err = tx.QueryRowContext(ctx, `
		INSERT INTO companies (name, name_alias, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, company.Name, company.NameAlias, company.Description, now, now).Scan(&company.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	company.CreatedAt = now
	company.UpdatedAt = now

	if _, err := s.grants.EnrollOwner(ctx, tx, creatorID, company.ID); err != nil {
		return nil, fmt.Errorf("failed to enroll creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return company, nil
}

// Get returns a company together with the caller's effective access.
// Inaccessible and missing companies are indistinguishable.
func (s *Service) Get(ctx context.Context, actorID, companyID int64) (*CompanyWithAccess, error) {
	eff, err := s.gate.Resolver().Resolve(ctx, actorID, authz.KindCompany, companyID)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return nil, authz.ErrPermissionDenied
	}

	company, err := s.get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, authz.ErrPermissionDenied
	}

	return &CompanyWithAccess{
		Company:   *company,
		RoleLevel: eff.RoleLevel,
		Tier:      eff.Tier,
	}, nil
}

// ListForUser returns the companies a user is a member of, with their
// membership level
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]CompanyWithAccess, error) {
	query := `
		SELECT c.id, c.name, c.name_alias, c.description, c.created_at, c.updated_at,
		       r.level, cm.access_tier
		FROM companies c
		JOIN company_members cm ON cm.company_id = c.id
		JOIN roles r ON r.id = cm.role_id
		WHERE cm.user_id = $1
		ORDER BY c.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []CompanyWithAccess
	for rows.Next() {
		var c CompanyWithAccess
		var description sql.NullString
		err := rows.Scan(&c.ID, &c.Name, &c.NameAlias, &description, &c.CreatedAt, &c.UpdatedAt, &c.RoleLevel, &c.Tier)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		if description.Valid {
			c.Description = description.String
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// Update renames a company. Requires administrator or better.
func (s *Service) Update(ctx context.Context, actorID, companyID int64, name, description string) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindCompany, companyID, authz.CompanyUpdate); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE companies SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		name, description, time.Now(), companyID,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
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

// Delete removes a company and everything beneath it: notes, subtasks,
// tasks, projects, invitations, grants and memberships, in one
// transaction. Owner only.
func (s *Service) Delete(ctx context.Context, actorID, companyID int64) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindCompany, companyID, authz.CompanyDelete); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Grants first: the cascade subselects need the domain rows intact
	if err := s.grants.CascadeDeleteGrants(ctx, tx, authz.KindCompany, companyID); err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM notes WHERE company_id = $1
			OR project_id IN (SELECT id FROM projects WHERE company_id = $1)
			OR task_id IN (SELECT t.id FROM tasks t JOIN projects p ON t.project_id = p.id WHERE p.company_id = $1)
			OR subtask_id IN (SELECT st.id FROM subtasks st JOIN tasks t ON st.task_id = t.id JOIN projects p ON t.project_id = p.id WHERE p.company_id = $1)`,
		`DELETE FROM subtasks WHERE task_id IN (SELECT t.id FROM tasks t JOIN projects p ON t.project_id = p.id WHERE p.company_id = $1)`,
		`DELETE FROM tasks WHERE project_id IN (SELECT id FROM projects WHERE company_id = $1)`,
		`DELETE FROM projects WHERE company_id = $1`,
		`DELETE FROM company_invitations WHERE company_id = $1`,
		`DELETE FROM companies WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, companyID); err != nil {
			return fmt.Errorf("failed to delete company: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// AddMember enrolls a user through the grant mutation rules
func (s *Service) AddMember(ctx context.Context, actorID, targetUserID, companyID int64, level int, tier authz.AccessTier) (*authz.CompanyMembership, error) {
	return s.grants.AddMember(ctx, actorID, targetUserID, companyID, level, tier)
}

// RemoveMember removes a user's membership through the grant mutation rules
func (s *Service) RemoveMember(ctx context.Context, actorID, targetUserID, companyID int64) error {
	return s.grants.RemoveMember(ctx, actorID, targetUserID, companyID)
}

// ListMembers lists a company's memberships. Requires any access to the
// company.
func (s *Service) ListMembers(ctx context.Context, actorID, companyID int64) ([]authz.CompanyMembership, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindCompany, companyID, authz.AtMost(authz.LevelGuest)); err != nil {
		return nil, err
	}
	return authz.NewStore(s.db).ListCompanyMembers(ctx, companyID)
}

func (s *Service) get(ctx context.Context, id int64) (*Company, error) {
	var c Company
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, name_alias, description, created_at, updated_at
		FROM companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.NameAlias, &description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if description.Valid {
		c.Description = description.String
	}
	return &c, nil
}

func (s *Service) aliasTaken(ctx context.Context, q authz.Querier, alias string) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM companies WHERE name_alias = $1`, alias).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check alias: %w", err)
	}
	return true, nil
}

// generateAlias lowercases the name and strips everything outside [a-z0-9]
func generateAlias(name string) string {
	alias := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.ToLower(name))
	if alias == "" {
		alias = "company"
	}
	return alias
}
