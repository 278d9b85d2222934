// Package tasks implements tasks and subtasks: the two lowest levels of
// the work hierarchy.
package tasks

import (
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// Status is a task's workflow state
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether the status is one of the known states
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work inside a project
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    *int       `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Subtask is a unit of work inside a task
type Subtask struct {
	ID          int64      `json:"id"`
	TaskID      int64      `json:"task_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskWithAccess pairs a task with the caller's effective grant
type TaskWithAccess struct {
	Task
	RoleLevel int              `json:"role_level"`
	Tier      authz.AccessTier `json:"access_tier"`
}

// SubtaskWithAccess pairs a subtask with the caller's effective grant
type SubtaskWithAccess struct {
	Subtask
	RoleLevel int              `json:"role_level"`
	Tier      authz.AccessTier `json:"access_tier"`
}
