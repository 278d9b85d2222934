// Package users persists the principals the rest of the system grants
// access to. Password hashing happens upstream; the store only keeps the
// resulting hash.
package users

import "time"

// User is a registered principal
type User struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
