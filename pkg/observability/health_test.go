package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestHealthChecker_HealthyDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	checker := NewHealthChecker(db)
	status := checker.Check(context.Background())

	if status.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", status.Status)
	}
	dep, ok := status.Dependencies["database"]
	if !ok {
		t.Fatal("Expected database dependency reported")
	}
	if dep.Status != StatusHealthy {
		t.Errorf("Expected healthy database, got %s: %s", dep.Status, dep.Message)
	}
}

func TestHealthChecker_UnhealthyDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.Close()

	checker := NewHealthChecker(db)
	status := checker.Check(context.Background())

	if status.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status for closed database, got %s", status.Status)
	}
}

func TestHealthRoutes(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, NewHealthChecker(db))

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 from %s, got %d", path, rec.Code)
		}
	}
}

func TestReadiness_ReturnsServiceUnavailable(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.Close()

	checker := NewHealthChecker(db)
	rec := httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest("GET", "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy body, got %s", status.Status)
	}
}
