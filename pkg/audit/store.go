package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/taskhive/taskhive/pkg/storage/migrate"
)

// Store persists audit events
type Store struct {
	db *sql.DB
}

// NewStore creates a new audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts an audit event. A zero Timestamp is set to the current time.
func (s *Store) Record(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (timestamp, event_type, actor_id, target_user_id, resource_kind, resource_id, level, request_id, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		event.Timestamp, string(event.EventType), event.ActorID, event.TargetUserID,
		nullString(event.ResourceKind), event.ResourceID, event.Level,
		nullString(event.RequestID), nullString(event.Message),
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Search returns events matching the filter, newest first
func (s *Store) Search(ctx context.Context, filter Filter) ([]*Event, error) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = arg(string(et))
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.ActorID != nil {
		conditions = append(conditions, "actor_id = "+arg(*filter.ActorID))
	}
	if filter.TargetUserID != nil {
		conditions = append(conditions, "target_user_id = "+arg(*filter.TargetUserID))
	}
	if filter.ResourceKind != "" {
		conditions = append(conditions, "resource_kind = "+arg(filter.ResourceKind))
	}
	if filter.ResourceID != nil {
		conditions = append(conditions, "resource_id = "+arg(*filter.ResourceID))
	}
	if filter.Start != nil {
		conditions = append(conditions, "timestamp >= "+arg(*filter.Start))
	}
	if filter.End != nil {
		conditions = append(conditions, "timestamp <= "+arg(*filter.End))
	}

	query := "SELECT id, timestamp, event_type, actor_id, target_user_id, resource_kind, resource_id, level, request_id, message FROM audit_logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CleanupBefore removes events older than the cutoff and returns the number
// deleted
func (s *Store) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}

func scanEvent(row interface{ Scan(dest ...interface{}) error }) (*Event, error) {
	var event Event
	var eventType string
	var resourceKind, requestID, message sql.NullString

	err := row.Scan(&event.ID, &event.Timestamp, &eventType, &event.ActorID, &event.TargetUserID,
		&resourceKind, &event.ResourceID, &event.Level, &requestID, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	event.EventType = EventType(eventType)
	event.ResourceKind = resourceKind.String
	event.RequestID = requestID.String
	event.Message = message.String
	return &event, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Migrations returns the audit log schema migrations
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					event_type VARCHAR(64) NOT NULL,
					actor_id BIGINT,
					target_user_id BIGINT,
					resource_kind VARCHAR(32),
					resource_id BIGINT,
					level INTEGER,
					request_id VARCHAR(64),
					message TEXT
				);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs(actor_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_kind, resource_id);
			`,
		},
	}
}
