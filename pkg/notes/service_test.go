package notes

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskhive/taskhive/pkg/authz"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT NOT NULL UNIQUE
		);

		CREATE TABLE companies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			name_alias TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			color TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT DEFAULT 'pending',
			priority INTEGER,
			due_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE subtasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT DEFAULT 'pending',
			due_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			company_id INTEGER,
			project_id INTEGER,
			task_id INTEGER,
			subtask_id INTEGER,
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
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
	`)
	if err != nil {
		db.Close()
		t.Fatalf("Failed to create test schema: %v", err)
	}

	if err := authz.SeedRoles(context.Background(), authz.NewStore(db)); err != nil {
		db.Close()
		t.Fatalf("Failed to seed roles: %v", err)
	}

	return db
}

type fixture struct {
	db      *sql.DB
	svc     *Service
	store   *authz.Store
	company int64
	task    int64
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	store := authz.NewStore(db)
	gate := authz.NewGate(authz.NewResolver(store, authz.NewIndex(db)), nil)

	if _, err := db.Exec(`INSERT INTO companies (name, name_alias) VALUES ('Acme', 'acme')`); err != nil {
		t.Fatalf("Failed to insert company: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO projects (company_id, title) VALUES (1, 'rollout')`); err != nil {
		t.Fatalf("Failed to insert project: %v", err)
	}
	result, err := db.Exec(`INSERT INTO tasks (project_id, title) VALUES (1, 'ship')`)
	if err != nil {
		t.Fatalf("Failed to insert task: %v", err)
	}
	taskID, _ := result.LastInsertId()

	return &fixture{
		db:      db,
		svc:     NewService(db, gate),
		store:   store,
		company: 1,
		task:    taskID,
	}
}

func (f *fixture) createUser(t *testing.T, login string) int64 {
	t.Helper()
	result, err := f.db.Exec(`INSERT INTO users (login) VALUES (?)`, login)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", login, err)
	}
	id, _ := result.LastInsertId()
	return id
}

func (f *fixture) addMember(t *testing.T, userID int64, level int) {
	t.Helper()
	role, err := f.store.GetRoleByLevel(context.Background(), level)
	if err != nil {
		t.Fatalf("Failed to look up role: %v", err)
	}
	m := &authz.CompanyMembership{
		UserID:    userID,
		CompanyID: f.company,
		RoleID:    role.ID,
		Tier:      authz.TierLimited,
	}
	if _, err := f.store.InsertMembership(context.Background(), f.db, m); err != nil {
		t.Fatalf("Failed to insert membership: %v", err)
	}
}

func TestService_CreateAttachedRequiresAdministrator(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	admin := f.createUser(t, "admin")
	manager := f.createUser(t, "manager")
	f.addMember(t, admin, authz.LevelAdministrator)
	f.addMember(t, manager, authz.LevelManager)

	note, err := f.svc.Create(ctx, admin, &Note{TaskID: &f.task, Content: "remember the deadline"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if note.UserID != admin {
		t.Errorf("Expected author %d, got %d", admin, note.UserID)
	}

	// Managers cannot attach notes to a task
	if _, err := f.svc.Create(ctx, manager, &Note{TaskID: &f.task, Content: "nope"}); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for manager, got %v", err)
	}
}

func TestService_CreateRejectsDoubleAttachment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	admin := f.createUser(t, "admin")
	f.addMember(t, admin, authz.LevelAdministrator)

	note := &Note{CompanyID: &f.company, TaskID: &f.task, Content: "ambiguous"}
	if _, err := f.svc.Create(ctx, admin, note); !errors.Is(err, authz.ErrInvalidScope) {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
}

func TestService_PersonalNotesNeedNoPrivileges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	loner := f.createUser(t, "loner")

	note, err := f.svc.Create(ctx, loner, &Note{Content: "groceries"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := f.svc.Get(ctx, loner, note.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "groceries" {
		t.Errorf("Expected content preserved, got %q", got.Content)
	}

	// Nobody else can see it, administrators included
	admin := f.createUser(t, "admin")
	f.addMember(t, admin, authz.LevelAdministrator)
	if _, err := f.svc.Get(ctx, admin, note.ID); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for non-author, got %v", err)
	}
}

func TestService_AttachedNoteVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	author := f.createUser(t, "author")
	admin := f.createUser(t, "admin")
	manager := f.createUser(t, "manager")
	f.addMember(t, author, authz.LevelAdministrator)
	f.addMember(t, admin, authz.LevelAdministrator)
	f.addMember(t, manager, authz.LevelManager)

	note, err := f.svc.Create(ctx, author, &Note{TaskID: &f.task, Content: "deadline"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Another administrator reaches it through the attachment
	if _, err := f.svc.Get(ctx, admin, note.ID); err != nil {
		t.Errorf("Expected admin to read attached note, got %v", err)
	}
	// Managers are past the attachment ceiling
	if _, err := f.svc.Get(ctx, manager, note.ID); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for manager, got %v", err)
	}
}

func TestService_UpdateDeleteByAuthor(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	author := f.createUser(t, "author")
	stranger := f.createUser(t, "stranger")

	note, err := f.svc.Create(ctx, author, &Note{Content: "draft"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := f.svc.Update(ctx, stranger, note.ID, "defaced"); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for stranger update, got %v", err)
	}
	if err := f.svc.Update(ctx, author, note.ID, "final"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := f.svc.Get(ctx, author, note.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "final" {
		t.Errorf("Expected updated content, got %q", got.Content)
	}

	if err := f.svc.Delete(ctx, stranger, note.ID); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for stranger delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, author, note.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.svc.Get(ctx, author, note.ID); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied after delete, got %v", err)
	}
}

func TestService_ListForUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	author := f.createUser(t, "author")
	f.addMember(t, author, authz.LevelAdministrator)

	if _, err := f.svc.Create(ctx, author, &Note{Content: "personal"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.Create(ctx, author, &Note{TaskID: &f.task, Content: "attached"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	notes, err := f.svc.ListForUser(ctx, author)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(notes) != 2 {
		t.Errorf("Expected 2 notes, got %d", len(notes))
	}
}
