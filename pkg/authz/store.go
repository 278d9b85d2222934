package authz

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so grant mutations can
// join a caller's transaction
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store persists the role catalog, company memberships and resource grants
type Store struct {
	db *sql.DB
}

// NewStore creates a new grant store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that open transactions
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateRole inserts a catalog role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (name, level, parent_role_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		role.Name,
		role.Level,
		role.ParentRoleID,
		now,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	return nil
}

// GetRoleByLevel retrieves the catalog role with the given level
func (s *Store) GetRoleByLevel(ctx context.Context, level int) (*Role, error) {
	query := `
		SELECT id, name, level, parent_role_id, created_at
		FROM roles
		WHERE level = $1
	`

	var role Role
	var parentRoleID sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, level).Scan(
		&role.ID,
		&role.Name,
		&role.Level,
		&parentRoleID,
		&role.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found for level %d", level)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if parentRoleID.Valid {
		id := parentRoleID.Int64
		role.ParentRoleID = &id
	}

	return &role, nil
}

// ListRoles returns the role catalog ordered by level
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, name, level, parent_role_id, created_at
		FROM roles
		ORDER BY level ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var parentRoleID sql.NullInt64

		if err := rows.Scan(&role.ID, &role.Name, &role.Level, &parentRoleID, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if parentRoleID.Valid {
			id := parentRoleID.Int64
			role.ParentRoleID = &id
		}

		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// GetMembership retrieves a user's membership in a company, joined with the
// role catalog for the level. Returns (nil, nil) when no membership exists.
func (s *Store) GetMembership(ctx context.Context, userID, companyID int64) (*CompanyMembership, error) {
	query := `
		SELECT cm.id, cm.user_id, cm.company_id, cm.role_id, r.level, cm.access_tier, cm.created_at
		FROM company_members cm
		JOIN roles r ON r.id = cm.role_id
		WHERE cm.user_id = $1 AND cm.company_id = $2
	`

	var m CompanyMembership
	err := s.db.QueryRowContext(ctx, query, userID, companyID).Scan(
		&m.ID,
		&m.UserID,
		&m.CompanyID,
		&m.RoleID,
		&m.Level,
		&m.Tier,
		&m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

// InsertMembership inserts a company membership row. The insert and the
// uniqueness check over (user_id, company_id) happen in one statement:
// when a membership already exists, nothing is written and the call
// reports inserted=false without error.
func (s *Store) InsertMembership(ctx context.Context, q Querier, m *CompanyMembership) (bool, error) {
	query := `
		INSERT INTO company_members (user_id, company_id, role_id, access_tier, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING id
	`

	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		m.UserID,
		m.CompanyID,
		m.RoleID,
		m.Tier,
		now,
	).Scan(&m.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert membership: %w", err)
	}

	m.CreatedAt = now
	return true, nil
}

// DeleteMembership removes a user's membership in a company and reports
// how many rows were removed
func (s *Store) DeleteMembership(ctx context.Context, q Querier, userID, companyID int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM company_members WHERE user_id = $1 AND company_id = $2`,
		userID, companyID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete membership: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// ListCompanyMembers returns all memberships for a company ordered by
// level, most privileged first
func (s *Store) ListCompanyMembers(ctx context.Context, companyID int64) ([]CompanyMembership, error) {
	query := `
		SELECT cm.id, cm.user_id, cm.company_id, cm.role_id, r.level, cm.access_tier, cm.created_at
		FROM company_members cm
		JOIN roles r ON r.id = cm.role_id
		WHERE cm.company_id = $1
		ORDER BY r.level ASC, cm.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list company members: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// ListUserMemberships returns all company memberships a user holds
func (s *Store) ListUserMemberships(ctx context.Context, userID int64) ([]CompanyMembership, error) {
	query := `
		SELECT cm.id, cm.user_id, cm.company_id, cm.role_id, r.level, cm.access_tier, cm.created_at
		FROM company_members cm
		JOIN roles r ON r.id = cm.role_id
		WHERE cm.user_id = $1
		ORDER BY cm.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

func scanMemberships(rows *sql.Rows) ([]CompanyMembership, error) {
	var members []CompanyMembership
	for rows.Next() {
		var m CompanyMembership
		err := rows.Scan(&m.ID, &m.UserID, &m.CompanyID, &m.RoleID, &m.Level, &m.Tier, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// scopeColumn maps a scope kind to its resource_grants column
func scopeColumn(kind ResourceKind) (string, error) {
	switch kind {
	case KindCompany:
		return "company_id", nil
	case KindProject:
		return "project_id", nil
	case KindTask:
		return "task_id", nil
	case KindSubtask:
		return "subtask_id", nil
	default:
		return "", ErrInvalidScope
	}
}

const grantColumns = `g.id, g.user_id, g.company_id, g.project_id, g.task_id, g.subtask_id, g.role_id, r.level, g.access_tier, g.created_at`

// GetGrant retrieves a user's grant on the scoped resource, joined with the
// role catalog for the level. Returns (nil, nil) when no grant exists.
func (s *Store) GetGrant(ctx context.Context, userID int64, scope GrantScope) (*ResourceGrant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	column, err := scopeColumn(scope.Kind())
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM resource_grants g
		JOIN roles r ON r.id = g.role_id
		WHERE g.user_id = $1 AND g.%s = $2
	`, grantColumns, column)

	grant, err := scanGrant(s.db.QueryRowContext(ctx, query, userID, scope.ResourceID()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return grant, nil
}

// InsertGrant inserts a resource grant row. The unique indexes over
// (user_id, scope column) make the existence check and the insert a single
// statement: when the user already holds a grant on the resource, nothing
// is written and the call reports inserted=false without error.
func (s *Store) InsertGrant(ctx context.Context, q Querier, grant *ResourceGrant) (bool, error) {
	if err := grant.Scope().Validate(); err != nil {
		return false, err
	}

	query := `
		INSERT INTO resource_grants (user_id, company_id, project_id, task_id, subtask_id, role_id, access_tier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING id
	`

	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		grant.UserID,
		grant.CompanyID,
		grant.ProjectID,
		grant.TaskID,
		grant.SubtaskID,
		grant.RoleID,
		grant.Tier,
		now,
	).Scan(&grant.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert grant: %w", err)
	}

	grant.CreatedAt = now
	return true, nil
}

// DeleteGrant removes a user's grant on the scoped resource and reports how
// many rows were removed
func (s *Store) DeleteGrant(ctx context.Context, q Querier, userID int64, scope GrantScope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	column, err := scopeColumn(scope.Kind())
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM resource_grants WHERE user_id = $1 AND %s = $2`, column)
	result, err := q.ExecContext(ctx, query, userID, scope.ResourceID())
	if err != nil {
		return 0, fmt.Errorf("failed to delete grant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// ListGrantsForResource returns all grants scoped to a resource ordered by
// level, most privileged first
func (s *Store) ListGrantsForResource(ctx context.Context, scope GrantScope) ([]ResourceGrant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	column, err := scopeColumn(scope.Kind())
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM resource_grants g
		JOIN roles r ON r.id = g.role_id
		WHERE g.%s = $1
		ORDER BY r.level ASC, g.created_at ASC
	`, grantColumns, column)

	rows, err := s.db.QueryContext(ctx, query, scope.ResourceID())
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []ResourceGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, *grant)
	}
	return grants, rows.Err()
}

// scanGrant scans a grant row from either *sql.Row or *sql.Rows
func scanGrant(scanner interface {
	Scan(dest ...interface{}) error
}) (*ResourceGrant, error) {
	var grant ResourceGrant
	var companyID, projectID, taskID, subtaskID sql.NullInt64

	err := scanner.Scan(
		&grant.ID,
		&grant.UserID,
		&companyID,
		&projectID,
		&taskID,
		&subtaskID,
		&grant.RoleID,
		&grant.Level,
		&grant.Tier,
		&grant.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if companyID.Valid {
		id := companyID.Int64
		grant.CompanyID = &id
	}
	if projectID.Valid {
		id := projectID.Int64
		grant.ProjectID = &id
	}
	if taskID.Valid {
		id := taskID.Int64
		grant.TaskID = &id
	}
	if subtaskID.Valid {
		id := subtaskID.Int64
		grant.SubtaskID = &id
	}

	return &grant, nil
}
