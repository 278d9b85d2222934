// Package authz implements hierarchical access resolution for the
// company/project/task/subtask/note resource tree. Access is derived from
// company memberships and resource-scoped grants; the most privileged
// (lowest numeric level) path wins.
package authz

import (
	"time"
)

// ResourceKind identifies a level of the resource hierarchy
type ResourceKind string

const (
	KindCompany ResourceKind = "company"
	KindProject ResourceKind = "project"
	KindTask    ResourceKind = "task"
	KindSubtask ResourceKind = "subtask"
	KindNote    ResourceKind = "note"
)

// AccessTier qualifies how much of a resource a grant exposes
type AccessTier string

const (
	TierFull       AccessTier = "full"
	TierLimited    AccessTier = "limited"
	TierRestricted AccessTier = "restricted"
)

// Role levels. Lower numbers are more privileged.
const (
	LevelOwner         = 1
	LevelAdministrator = 2
	LevelManager       = 3
	LevelUser          = 4
	LevelSupport       = 5
	LevelGuest         = 6
)

// Role is an entry in the fixed role catalog
type Role struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Level        int       `json:"level"`
	ParentRoleID *int64    `json:"parent_role_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleCatalog returns the six seeded roles in level order. ParentRoleID is
// informational only and never participates in resolution.
func RoleCatalog() []Role {
	return []Role{
		{Name: "owner", Level: LevelOwner},
		{Name: "administrator", Level: LevelAdministrator},
		{Name: "manager", Level: LevelManager},
		{Name: "user", Level: LevelUser},
		{Name: "support", Level: LevelSupport},
		{Name: "guest", Level: LevelGuest},
	}
}

// CompanyMembership links a user to a company with a role and tier.
// At most one membership exists per user per company.
type CompanyMembership struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	CompanyID int64      `json:"company_id"`
	RoleID    int64      `json:"role_id"`
	Level     int        `json:"level"`
	Tier      AccessTier `json:"access_tier"`
	CreatedAt time.Time  `json:"created_at"`
}

// ResourceGrant scopes a role to exactly one resource in the hierarchy
type ResourceGrant struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	CompanyID *int64     `json:"company_id,omitempty"`
	ProjectID *int64     `json:"project_id,omitempty"`
	TaskID    *int64     `json:"task_id,omitempty"`
	SubtaskID *int64     `json:"subtask_id,omitempty"`
	RoleID    int64      `json:"role_id"`
	Level     int        `json:"level"`
	Tier      AccessTier `json:"access_tier"`
	CreatedAt time.Time  `json:"created_at"`
}

// Scope returns the single resource the grant is attached to
func (g *ResourceGrant) Scope() GrantScope {
	return GrantScope{
		CompanyID: g.CompanyID,
		ProjectID: g.ProjectID,
		TaskID:    g.TaskID,
		SubtaskID: g.SubtaskID,
	}
}

// GrantScope designates the target of a resource grant. Exactly one field
// must be set; Validate enforces this before any write.
type GrantScope struct {
	CompanyID *int64
	ProjectID *int64
	TaskID    *int64
	SubtaskID *int64
}

// ScopeFor builds a GrantScope for a resource kind and id
func ScopeFor(kind ResourceKind, id int64) (GrantScope, error) {
	switch kind {
	case KindCompany:
		return GrantScope{CompanyID: &id}, nil
	case KindProject:
		return GrantScope{ProjectID: &id}, nil
	case KindTask:
		return GrantScope{TaskID: &id}, nil
	case KindSubtask:
		return GrantScope{SubtaskID: &id}, nil
	default:
		return GrantScope{}, ErrInvalidScope
	}
}

// Validate returns ErrInvalidScope unless exactly one field is set
func (s GrantScope) Validate() error {
	set := 0
	for _, id := range []*int64{s.CompanyID, s.ProjectID, s.TaskID, s.SubtaskID} {
		if id != nil {
			set++
		}
	}
	if set != 1 {
		return ErrInvalidScope
	}
	return nil
}

// IsZero reports whether no field is set
func (s GrantScope) IsZero() bool {
	return s.CompanyID == nil && s.ProjectID == nil && s.TaskID == nil && s.SubtaskID == nil
}

// Kind returns the resource kind the scope points at. Undefined for
// invalid scopes; call Validate first.
func (s GrantScope) Kind() ResourceKind {
	switch {
	case s.CompanyID != nil:
		return KindCompany
	case s.ProjectID != nil:
		return KindProject
	case s.TaskID != nil:
		return KindTask
	default:
		return KindSubtask
	}
}

// ResourceID returns the id of the scoped resource
func (s GrantScope) ResourceID() int64 {
	switch {
	case s.CompanyID != nil:
		return *s.CompanyID
	case s.ProjectID != nil:
		return *s.ProjectID
	case s.TaskID != nil:
		return *s.TaskID
	case s.SubtaskID != nil:
		return *s.SubtaskID
	}
	return 0
}

// GrantSource identifies which path produced an effective grant
type GrantSource string

const (
	SourceMembership    GrantSource = "company_membership"
	SourceResourceGrant GrantSource = "resource_grant"
	SourceProjectGrant  GrantSource = "project_grant"
	SourceNoteAuthor    GrantSource = "note_author"
)

// EffectiveGrant is the outcome of access resolution: the most privileged
// role level any admissible path yields for a user on a resource
type EffectiveGrant struct {
	RoleLevel int         `json:"role_level"`
	Tier      AccessTier  `json:"access_tier"`
	Source    GrantSource `json:"source"`
}
