package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskhive/taskhive/pkg/observability"
)

// Service computes workspace-wide statistics
type Service struct {
	db *sql.DB
}

// NewService creates a new analytics service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Overview contains high-level workspace counts
type Overview struct {
	TotalCompanies int64            `json:"total_companies"`
	TotalProjects  int64            `json:"total_projects"`
	TotalTasks     int64            `json:"total_tasks"`
	TotalNotes     int64            `json:"total_notes"`
	ActiveUsers    int64            `json:"active_users"`
	ActiveTokens   int64            `json:"active_tokens"`
	TasksByStatus  map[string]int64 `json:"tasks_by_status"`
}

// GetOverview retrieves workspace-wide counts
func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	overview := &Overview{TasksByStatus: make(map[string]int64)}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM companies", &overview.TotalCompanies},
		{"SELECT COUNT(*) FROM projects", &overview.TotalProjects},
		{"SELECT COUNT(*) FROM tasks", &overview.TotalTasks},
		{"SELECT COUNT(*) FROM notes", &overview.TotalNotes},
		{"SELECT COUNT(*) FROM users WHERE is_active = true", &overview.ActiveUsers},
		{"SELECT COUNT(*) FROM api_tokens WHERE revoked_at IS NULL AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)", &overview.ActiveTokens},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		overview.TasksByStatus[status] = count
	}
	return overview, rows.Err()
}

// CollectGauges refreshes the business gauges from current counts
func (s *Service) CollectGauges(ctx context.Context, metrics *observability.Metrics) error {
	overview, err := s.GetOverview(ctx)
	if err != nil {
		return err
	}

	metrics.CompaniesTotal.Set(float64(overview.TotalCompanies))
	metrics.ProjectsTotal.Set(float64(overview.TotalProjects))
	metrics.TasksTotal.Set(float64(overview.TotalTasks))
	metrics.ActiveUsersTotal.Set(float64(overview.ActiveUsers))
	metrics.APITokensActive.Set(float64(overview.ActiveTokens))
	return nil
}
