package authz

import (
	"context"
	"fmt"
)

// Defaults applied when a caller adds a grant or membership without
// specifying a role or tier
const (
	DefaultGrantLevel = LevelManager
	DefaultGrantTier  = TierLimited
)

// Auditor receives grant mutation events. Implementations must not fail the
// mutation; errors are their own concern.
type Auditor interface {
	GrantAdded(ctx context.Context, actorID, userID int64, kind ResourceKind, resourceID int64, level int)
	GrantRemoved(ctx context.Context, actorID, userID int64, kind ResourceKind, resourceID int64)
}

// GrantService mutates company memberships and resource grants behind the
// authorization gate
type GrantService struct {
	store   *Store
	gate    *Gate
	auditor Auditor
}

// NewGrantService creates a grant mutation service
func NewGrantService(store *Store, gate *Gate) *GrantService {
	return &GrantService{store: store, gate: gate}
}

// SetAuditor attaches an audit sink for grant mutations
func (s *GrantService) SetAuditor(a Auditor) {
	s.auditor = a
}

// AddGrant gives targetUserID a role on the scoped resource. The actor must
// clear MemberManage on that resource. A level of 0 or empty tier fall back
// to the defaults. The existence check and the insert are one statement, so
// concurrent adds for the same (user, resource) pair persist a single row;
// the loser reads back the winner's grant and returns it unchanged.
func (s *GrantService) AddGrant(ctx context.Context, actorID, targetUserID int64, scope GrantScope, level int, tier AccessTier) (*ResourceGrant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if err := s.gate.Authorize(ctx, actorID, scope.Kind(), scope.ResourceID(), MemberManage); err != nil {
		return nil, err
	}

	if level == 0 {
		level = DefaultGrantLevel
	}
	if tier == "" {
		tier = DefaultGrantTier
	}

	for {
		grant, inserted, err := s.insertGrant(ctx, s.store.db, targetUserID, scope, level, tier)
		if err != nil {
			return nil, err
		}
		if inserted {
			if s.auditor != nil {
				s.auditor.GrantAdded(ctx, actorID, targetUserID, scope.Kind(), scope.ResourceID(), level)
			}
			return grant, nil
		}

		existing, err := s.store.GetGrant(ctx, targetUserID, scope)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		// the conflicting grant was removed between insert and read
	}
}

// GrantOwner records an owner-level, full-tier grant without consulting the
// gate. It exists for resource creation flows, which grant the creator
// inside the same transaction that inserts the resource.
func (s *GrantService) GrantOwner(ctx context.Context, q Querier, userID int64, scope GrantScope) (*ResourceGrant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	grant, inserted, err := s.insertGrant(ctx, q, userID, scope, LevelOwner, TierFull)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("failed to grant owner: grant already exists")
	}
	return grant, nil
}

func (s *GrantService) insertGrant(ctx context.Context, q Querier, userID int64, scope GrantScope, level int, tier AccessTier) (*ResourceGrant, bool, error) {
	role, err := s.store.GetRoleByLevel(ctx, level)
	if err != nil {
		return nil, false, err
	}

	grant := &ResourceGrant{
		UserID:    userID,
		CompanyID: scope.CompanyID,
		ProjectID: scope.ProjectID,
		TaskID:    scope.TaskID,
		SubtaskID: scope.SubtaskID,
		RoleID:    role.ID,
		Level:     role.Level,
		Tier:      tier,
	}
	inserted, err := s.store.InsertGrant(ctx, q, grant)
	if err != nil {
		return nil, false, err
	}
	return grant, inserted, nil
}

// RemoveGrant deletes targetUserID's grant on the scoped resource.
// Users may always remove themselves. Removing someone else requires
// clearing MemberManage on the resource plus the peer rule: the actor's
// effective level must not exceed the target's granted level. Returns
// ErrNotAssociated when the target holds no grant there.
func (s *GrantService) RemoveGrant(ctx context.Context, actorID, targetUserID int64, scope GrantScope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	if actorID != targetUserID {
		if err := s.gate.Authorize(ctx, actorID, scope.Kind(), scope.ResourceID(), MemberManage); err != nil {
			return err
		}

		target, err := s.store.GetGrant(ctx, targetUserID, scope)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrNotAssociated
		}

		actor, err := s.gate.Resolver().Resolve(ctx, actorID, scope.Kind(), scope.ResourceID())
		if err != nil {
			return err
		}
		if actor == nil || actor.RoleLevel > target.Level {
			return ErrPermissionDenied
		}
	}

	rows, err := s.store.DeleteGrant(ctx, s.store.db, targetUserID, scope)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotAssociated
	}

	if s.auditor != nil {
		s.auditor.GrantRemoved(ctx, actorID, targetUserID, scope.Kind(), scope.ResourceID())
	}
	return nil
}

// AddMember enrolls targetUserID in the company. The actor must clear
// MemberManage on the company. Defaults mirror AddGrant, and so does the
// concurrency behavior: the check and insert are one statement, and a
// concurrent duplicate add returns the existing membership unchanged.
func (s *GrantService) AddMember(ctx context.Context, actorID, targetUserID, companyID int64, level int, tier AccessTier) (*CompanyMembership, error) {
	if err := s.gate.Authorize(ctx, actorID, KindCompany, companyID, MemberManage); err != nil {
		return nil, err
	}

	if level == 0 {
		level = DefaultGrantLevel
	}
	if tier == "" {
		tier = DefaultGrantTier
	}

	role, err := s.store.GetRoleByLevel(ctx, level)
	if err != nil {
		return nil, err
	}

	for {
		m := &CompanyMembership{
			UserID:    targetUserID,
			CompanyID: companyID,
			RoleID:    role.ID,
			Level:     role.Level,
			Tier:      tier,
		}
		inserted, err := s.store.InsertMembership(ctx, s.store.db, m)
		if err != nil {
			return nil, err
		}
		if inserted {
			if s.auditor != nil {
				s.auditor.GrantAdded(ctx, actorID, targetUserID, KindCompany, companyID, level)
			}
			return m, nil
		}

		existing, err := s.store.GetMembership(ctx, targetUserID, companyID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		// the conflicting membership was removed between insert and read
	}
}

// EnrollOwner records an owner-level, full-tier membership without
// consulting the gate, for company creation flows
func (s *GrantService) EnrollOwner(ctx context.Context, q Querier, userID, companyID int64) (*CompanyMembership, error) {
	role, err := s.store.GetRoleByLevel(ctx, LevelOwner)
	if err != nil {
		return nil, err
	}

	m := &CompanyMembership{
		UserID:    userID,
		CompanyID: companyID,
		RoleID:    role.ID,
		Level:     role.Level,
		Tier:      TierFull,
	}
	inserted, err := s.store.InsertMembership(ctx, q, m)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("failed to enroll owner: membership already exists")
	}
	return m, nil
}

// RemoveMember removes targetUserID's membership in the company under the
// same rules as RemoveGrant: self-removal is unconditional, anything else
// requires MemberManage plus the peer rule against the target's membership
// level
func (s *GrantService) RemoveMember(ctx context.Context, actorID, targetUserID, companyID int64) error {
	if actorID != targetUserID {
		if err := s.gate.Authorize(ctx, actorID, KindCompany, companyID, MemberManage); err != nil {
			return err
		}

		target, err := s.store.GetMembership(ctx, targetUserID, companyID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrNotAssociated
		}

		actor, err := s.gate.Resolver().Resolve(ctx, actorID, KindCompany, companyID)
		if err != nil {
			return err
		}
		if actor == nil || actor.RoleLevel > target.Level {
			return ErrPermissionDenied
		}
	}

	rows, err := s.store.DeleteMembership(ctx, s.store.db, targetUserID, companyID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotAssociated
	}

	if s.auditor != nil {
		s.auditor.GrantRemoved(ctx, actorID, targetUserID, KindCompany, companyID)
	}
	return nil
}

// CascadeDeleteGrants removes every grant scoped to the resource and to
// resources beneath it, plus memberships when the resource is a company.
// It runs on the caller's Querier so resource deletion flows can include
// it in their transaction, before the domain rows themselves are deleted.
func (s *GrantService) CascadeDeleteGrants(ctx context.Context, q Querier, kind ResourceKind, id int64) error {
	var statements []string
	switch kind {
	case KindCompany:
		statements = []string{
			`DELETE FROM resource_grants WHERE company_id = $1
				OR project_id IN (SELECT id FROM projects WHERE company_id = $1)
				OR task_id IN (SELECT t.id FROM tasks t JOIN projects p ON t.project_id = p.id WHERE p.company_id = $1)
				OR subtask_id IN (SELECT st.id FROM subtasks st JOIN tasks t ON st.task_id = t.id JOIN projects p ON t.project_id = p.id WHERE p.company_id = $1)`,
			`DELETE FROM company_members WHERE company_id = $1`,
		}
	case KindProject:
		statements = []string{
			`DELETE FROM resource_grants WHERE project_id = $1
				OR task_id IN (SELECT id FROM tasks WHERE project_id = $1)
				OR subtask_id IN (SELECT st.id FROM subtasks st JOIN tasks t ON st.task_id = t.id WHERE t.project_id = $1)`,
		}
	case KindTask:
		statements = []string{
			`DELETE FROM resource_grants WHERE task_id = $1
				OR subtask_id IN (SELECT id FROM subtasks WHERE task_id = $1)`,
		}
	case KindSubtask:
		statements = []string{
			`DELETE FROM resource_grants WHERE subtask_id = $1`,
		}
	default:
		return ErrInvalidScope
	}

	for _, stmt := range statements {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to cascade grant deletion: %w", err)
		}
	}
	return nil
}
