// Package companies implements the top level of the resource hierarchy:
// company CRUD, membership management and email invitations. Every
// operation is checked through the authorization gate; creation enrolls
// the creator as owner in the same transaction.
package companies

import (
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// Company is a tenant: the root every project, task and note hangs off
type Company struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	NameAlias   string    `json:"name_alias"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CompanyWithAccess pairs a company with the caller's effective grant
type CompanyWithAccess struct {
	Company
	RoleLevel int              `json:"role_level"`
	Tier      authz.AccessTier `json:"access_tier"`
}

// Invitation is a pending email invite into a company
type Invitation struct {
	ID         int64      `json:"id"`
	CompanyID  int64      `json:"company_id"`
	Email      string     `json:"email"`
	RoleLevel  int        `json:"role_level"`
	Token      string     `json:"-"`
	InvitedBy  int64      `json:"invited_by"`
	InvitedAt  time.Time  `json:"invited_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *int64     `json:"accepted_by,omitempty"`
}
