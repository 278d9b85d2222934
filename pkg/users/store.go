package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/storage/migrate"
)

// Store handles user persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new user
func (s *Store) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (login, username, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	user.IsActive = true
	err := s.db.QueryRowContext(ctx, query,
		user.Login,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		now,
		now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by id. Returns (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.get(ctx, `WHERE id = $1`, id)
}

// GetByLogin retrieves a user by login. Returns (nil, nil) when absent.
func (s *Store) GetByLogin(ctx context.Context, login string) (*User, error) {
	return s.get(ctx, `WHERE login = $1`, login)
}

func (s *Store) get(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := `
		SELECT id, login, username, email, password_hash, is_active, created_at, updated_at
		FROM users
	` + where

	var user User
	var email sql.NullString

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Login,
		&user.Username,
		&email,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if email.Valid {
		user.Email = email.String
	}
	return &user, nil
}

// SetActive toggles a user's active flag
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %d", id)
	}
	return nil
}

// Migrations returns the schema migrations for the users table
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					login VARCHAR(255) NOT NULL UNIQUE,
					username VARCHAR(255) NOT NULL,
					email VARCHAR(255),
					password_hash VARCHAR(255) NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_login ON users(login);
			`,
		},
	}
}
