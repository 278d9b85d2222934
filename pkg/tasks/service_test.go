package tasks

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

	db, err := sql.Open("sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared")
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
	grants  *authz.GrantService
	store   *authz.Store
	project int64
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	store := authz.NewStore(db)
	gate := authz.NewGate(authz.NewResolver(store, authz.NewIndex(db)), nil)
	grants := authz.NewGrantService(store, gate)

	if _, err := db.Exec(`INSERT INTO companies (name, name_alias) VALUES ('Acme', 'acme')`); err != nil {
		t.Fatalf("Failed to insert company: %v", err)
	}
	result, err := db.Exec(`INSERT INTO projects (company_id, title) VALUES (1, 'rollout')`)
	if err != nil {
		t.Fatalf("Failed to insert project: %v", err)
	}
	projectID, _ := result.LastInsertId()

	return &fixture{
		db:      db,
		svc:     NewService(db, gate, grants),
		grants:  grants,
		store:   store,
		project: projectID,
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

func (f *fixture) grantProject(t *testing.T, userID int64, level int) {
	t.Helper()
	ctx := context.Background()
	role, err := f.store.GetRoleByLevel(ctx, level)
	if err != nil {
		t.Fatalf("Failed to look up role: %v", err)
	}
	grant := &authz.ResourceGrant{
		UserID:    userID,
		ProjectID: &f.project,
		RoleID:    role.ID,
		Tier:      authz.TierLimited,
	}
	if _, err := f.store.InsertGrant(ctx, f.db, grant); err != nil {
		t.Fatalf("Failed to insert grant: %v", err)
	}
}

func TestService_CreateRequiresManagerOnProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	manager := f.createUser(t, "manager")
	regular := f.createUser(t, "regular")
	f.grantProject(t, manager, authz.LevelManager)
	f.grantProject(t, regular, authz.LevelUser)

	if _, err := f.svc.Create(ctx, regular, f.project, &Task{Title: "sneaky"}); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for level-4 grant, got %v", err)
	}

	task, err := f.svc.Create(ctx, manager, f.project, &Task{Title: "ship"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.Status != StatusPending {
		t.Errorf("Expected default status pending, got %s", task.Status)
	}

	got, err := f.svc.Get(ctx, manager, task.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RoleLevel != authz.LevelOwner {
		t.Errorf("Expected owner level for creator, got %d", got.RoleLevel)
	}
}

func TestService_CreateRejectsUnknownStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	manager := f.createUser(t, "manager")
	f.grantProject(t, manager, authz.LevelManager)

	if _, err := f.svc.Create(ctx, manager, f.project, &Task{Title: "ship", Status: "paused"}); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestService_ProjectGrantReachesTasksWithinCeiling(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	manager := f.createUser(t, "manager")
	support := f.createUser(t, "support")
	guest := f.createUser(t, "guest")
	f.grantProject(t, manager, authz.LevelManager)
	f.grantProject(t, support, authz.LevelSupport)
	f.grantProject(t, guest, authz.LevelGuest)

	task, err := f.svc.Create(ctx, manager, f.project, &Task{Title: "ship"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Support sits exactly at the project-grant ceiling
	if _, err := f.svc.Get(ctx, support, task.ID); err != nil {
		t.Errorf("Expected support grant to reach task, got %v", err)
	}
	// Guest is past it
	if _, err := f.svc.Get(ctx, guest, task.ID); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for guest, got %v", err)
	}
}

func TestService_ListByProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	manager := f.createUser(t, "manager")
	outsider := f.createUser(t, "outsider")
	f.grantProject(t, manager, authz.LevelManager)

	for _, title := range []string{"first", "second"} {
		if _, err := f.svc.Create(ctx, manager, f.project, &Task{Title: title}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tasks, err := f.svc.ListByProject(ctx, manager, f.project)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("Expected 2 tasks, got %d", len(tasks))
	}

	if _, err := f.svc.ListByProject(ctx, outsider, f.project); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for outsider, got %v", err)
	}
}

func TestService_UpdateThreshold(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	manager := f.createUser(t, "manager")
	f.grantProject(t, manager, authz.LevelManager)

	task, err := f.svc.Create(ctx, manager, f.project, &Task{Title: "ship"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	task.Status = StatusInProgress
	if err := f.svc.Update(ctx, manager, task); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := f.svc.Get(ctx, manager, task.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Expected status in_progress, got %s", got.Status)
	}
}

func TestService_DeleteCascades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	manager := f.createUser(t, "manager")
	helper := f.createUser(t, "helper")
	f.grantProject(t, manager, authz.LevelManager)

	task, err := f.svc.Create(ctx, manager, f.project, &Task{Title: "ship"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	subtask, err := f.svc.CreateSubtask(ctx, manager, task.ID, &Subtask{Title: "pack"})
	if err != nil {
		t.Fatalf("CreateSubtask failed: %v", err)
	}
	if _, err := f.db.Exec(`INSERT INTO notes (user_id, subtask_id, content) VALUES (?, ?, 'note')`, manager, subtask.ID); err != nil {
		t.Fatalf("Failed to insert note: %v", err)
	}
	if _, err := f.svc.AddSubtaskUser(ctx, manager, helper, subtask.ID, authz.LevelUser, ""); err != nil {
		t.Fatalf("AddSubtaskUser failed: %v", err)
	}

	if err := f.svc.Delete(ctx, manager, task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for _, table := range []string{"tasks", "subtasks", "notes"} {
		var count int
		if err := f.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("Failed to count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("Expected %s emptied by cascade, found %d rows", table, count)
		}
	}

	// Project-level grants survive the task cascade
	var count int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM resource_grants WHERE project_id IS NOT NULL`).Scan(&count); err != nil {
		t.Fatalf("Failed to count project grants: %v", err)
	}
	if count == 0 {
		t.Error("Expected project grants to survive task deletion")
	}
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM resource_grants WHERE task_id IS NOT NULL OR subtask_id IS NOT NULL`).Scan(&count); err != nil {
		t.Fatalf("Failed to count task grants: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected task and subtask grants removed, found %d", count)
	}
}

func TestService_Subtasks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	manager := f.createUser(t, "manager")
	support := f.createUser(t, "support")
	f.grantProject(t, manager, authz.LevelManager)
	f.grantProject(t, support, authz.LevelSupport)

	task, err := f.svc.Create(ctx, manager, f.project, &Task{Title: "ship"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Support can see the task but not create under it
	if _, err := f.svc.CreateSubtask(ctx, support, task.ID, &Subtask{Title: "nope"}); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for support, got %v", err)
	}

	subtask, err := f.svc.CreateSubtask(ctx, manager, task.ID, &Subtask{Title: "pack"})
	if err != nil {
		t.Fatalf("CreateSubtask failed: %v", err)
	}

	subtasks, err := f.svc.ListSubtasks(ctx, support, task.ID)
	if err != nil {
		t.Fatalf("ListSubtasks failed: %v", err)
	}
	if len(subtasks) != 1 {
		t.Errorf("Expected 1 subtask, got %d", len(subtasks))
	}

	subtask.Status = StatusCompleted
	if err := f.svc.UpdateSubtask(ctx, manager, subtask); err != nil {
		t.Fatalf("UpdateSubtask failed: %v", err)
	}
	if err := f.svc.UpdateSubtask(ctx, support, subtask); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for support update, got %v", err)
	}

	if err := f.svc.DeleteSubtask(ctx, manager, subtask.ID); err != nil {
		t.Fatalf("DeleteSubtask failed: %v", err)
	}
	if _, err := f.svc.GetSubtask(ctx, manager, subtask.ID); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied after delete, got %v", err)
	}
}
