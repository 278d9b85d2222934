// Package projects implements project CRUD and project-level access
// management inside a company.
package projects

import (
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// Project groups tasks inside a company
type Project struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectWithAccess pairs a project with the caller's effective grant
type ProjectWithAccess struct {
	Project
	RoleLevel int              `json:"role_level"`
	Tier      authz.AccessTier `json:"access_tier"`
}
