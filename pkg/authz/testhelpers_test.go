package authz

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Minimal schema mirroring the production migrations
	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT NOT NULL UNIQUE,
			username TEXT
		);

		CREATE TABLE companies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			name_alias TEXT NOT NULL UNIQUE
		);

		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id INTEGER NOT NULL,
			title TEXT NOT NULL
		);

		CREATE TABLE tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			title TEXT NOT NULL
		);

		CREATE TABLE subtasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			title TEXT NOT NULL
		);

		CREATE TABLE notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			company_id INTEGER,
			project_id INTEGER,
			task_id INTEGER,
			subtask_id INTEGER,
			content TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			level INTEGER NOT NULL UNIQUE CHECK (level > 0),
			parent_role_id INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE company_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			company_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			access_tier TEXT NOT NULL DEFAULT 'limited',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, company_id)
		);

		CREATE TABLE resource_grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			company_id INTEGER,
			project_id INTEGER,
			task_id INTEGER,
			subtask_id INTEGER,
			role_id INTEGER NOT NULL,
			access_tier TEXT NOT NULL DEFAULT 'limited',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE UNIQUE INDEX idx_resource_grants_user_company ON resource_grants(user_id, company_id) WHERE company_id IS NOT NULL;
		CREATE UNIQUE INDEX idx_resource_grants_user_project ON resource_grants(user_id, project_id) WHERE project_id IS NOT NULL;
		CREATE UNIQUE INDEX idx_resource_grants_user_task ON resource_grants(user_id, task_id) WHERE task_id IS NOT NULL;
		CREATE UNIQUE INDEX idx_resource_grants_user_subtask ON resource_grants(user_id, subtask_id) WHERE subtask_id IS NOT NULL;
	`)
	if err != nil {
		db.Close()
		t.Fatalf("Failed to create test schema: %v", err)
	}

	if err := SeedRoles(context.Background(), NewStore(db)); err != nil {
		db.Close()
		t.Fatalf("Failed to seed roles: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *sql.DB, login string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO users (login, username) VALUES (?, ?)`, login, login)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", login, err)
	}
	id, _ := result.LastInsertId()
	return id
}

func createCompany(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO companies (name, name_alias) VALUES (?, ?)`, name, name)
	if err != nil {
		t.Fatalf("Failed to create company %s: %v", name, err)
	}
	id, _ := result.LastInsertId()
	return id
}

func createProject(t *testing.T, db *sql.DB, companyID int64, title string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO projects (company_id, title) VALUES (?, ?)`, companyID, title)
	if err != nil {
		t.Fatalf("Failed to create project %s: %v", title, err)
	}
	id, _ := result.LastInsertId()
	return id
}

func createTask(t *testing.T, db *sql.DB, projectID int64, title string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO tasks (project_id, title) VALUES (?, ?)`, projectID, title)
	if err != nil {
		t.Fatalf("Failed to create task %s: %v", title, err)
	}
	id, _ := result.LastInsertId()
	return id
}

func createSubtask(t *testing.T, db *sql.DB, taskID int64, title string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO subtasks (task_id, title) VALUES (?, ?)`, taskID, title)
	if err != nil {
		t.Fatalf("Failed to create subtask %s: %v", title, err)
	}
	id, _ := result.LastInsertId()
	return id
}

// createNote attaches a note to the given scope; pass a zero scope for a
// personal note
func createNote(t *testing.T, db *sql.DB, authorID int64, scope GrantScope, content string) int64 {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO notes (user_id, company_id, project_id, task_id, subtask_id, content) VALUES (?, ?, ?, ?, ?, ?)`,
		authorID, scope.CompanyID, scope.ProjectID, scope.TaskID, scope.SubtaskID, content,
	)
	if err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func roleIDForLevel(t *testing.T, db *sql.DB, level int) int64 {
	t.Helper()
	var id int64
	if err := db.QueryRow(`SELECT id FROM roles WHERE level = ?`, level).Scan(&id); err != nil {
		t.Fatalf("Failed to look up role level %d: %v", level, err)
	}
	return id
}

func addMembership(t *testing.T, db *sql.DB, userID, companyID int64, level int, tier AccessTier) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO company_members (user_id, company_id, role_id, access_tier) VALUES (?, ?, ?, ?)`,
		userID, companyID, roleIDForLevel(t, db, level), tier,
	)
	if err != nil {
		t.Fatalf("Failed to add membership: %v", err)
	}
}

func addGrant(t *testing.T, db *sql.DB, userID int64, scope GrantScope, level int, tier AccessTier) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO resource_grants (user_id, company_id, project_id, task_id, subtask_id, role_id, access_tier) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, scope.CompanyID, scope.ProjectID, scope.TaskID, scope.SubtaskID, roleIDForLevel(t, db, level), tier,
	)
	if err != nil {
		t.Fatalf("Failed to add grant: %v", err)
	}
}

func mustScope(t *testing.T, kind ResourceKind, id int64) GrantScope {
	t.Helper()
	scope, err := ScopeFor(kind, id)
	if err != nil {
		t.Fatalf("Failed to build scope for %s: %v", kind, err)
	}
	return scope
}

func newResolver(db *sql.DB) *Resolver {
	return NewResolver(NewStore(db), NewIndex(db))
}

func newGrantService(db *sql.DB) *GrantService {
	store := NewStore(db)
	gate := NewGate(NewResolver(store, NewIndex(db)), nil)
	return NewGrantService(store, gate)
}
