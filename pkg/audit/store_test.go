package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			event_type TEXT NOT NULL,
			actor_id INTEGER,
			target_user_id INTEGER,
			resource_kind TEXT,
			resource_id INTEGER,
			level INTEGER,
			request_id TEXT,
			message TEXT
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	return db
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func TestStore_RecordAndSearch(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	event := &Event{
		EventType:    EventTypeGrantAdded,
		ActorID:      int64p(1),
		TargetUserID: int64p(2),
		ResourceKind: "project",
		ResourceID:   int64p(10),
		Level:        intp(3),
		RequestID:    "req-1",
	}
	if err := store.Record(ctx, event); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if event.ID == 0 {
		t.Error("Expected assigned event ID")
	}
	if event.Timestamp.IsZero() {
		t.Error("Expected timestamp set on record")
	}

	got, err := store.Search(ctx, Filter{ResourceKind: "project", ResourceID: int64p(10)})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	if got[0].EventType != EventTypeGrantAdded {
		t.Errorf("Expected grant_added, got %s", got[0].EventType)
	}
	if got[0].Level == nil || *got[0].Level != 3 {
		t.Errorf("Expected level 3, got %v", got[0].Level)
	}
	if got[0].RequestID != "req-1" {
		t.Errorf("Expected request id preserved, got %q", got[0].RequestID)
	}
}

func TestStore_SearchFilters(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := store.Record(ctx, &Event{
			EventType: EventTypeMemberAdded,
			ActorID:   int64p(i),
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := store.Record(ctx, &Event{
		EventType: EventTypeMemberRemoved,
		ActorID:   int64p(1),
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Search(ctx, Filter{ActorID: int64p(1)})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 events for actor 1, got %d", len(got))
	}

	got, err = store.Search(ctx, Filter{EventTypes: []EventType{EventTypeMemberRemoved}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 removal event, got %d", len(got))
	}

	got, err = store.Search(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected limit applied, got %d events", len(got))
	}
}

func TestStore_CleanupBefore(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	old := &Event{EventType: EventTypeGrantAdded, Timestamp: time.Now().Add(-48 * time.Hour)}
	recent := &Event{EventType: EventTypeGrantAdded}
	if err := store.Record(ctx, old); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(ctx, recent); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	deleted, err := store.CleanupBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CleanupBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted event, got %d", deleted)
	}

	got, err := store.Search(ctx, Filter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 remaining event, got %d", len(got))
	}
}
