package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/taskhive/taskhive/pkg/contextkeys"
)

func parseLogLine(t *testing.T, line string) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Failed to parse log line %q: %v", line, err)
	}
	return entry
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("company_id", 7).Info("company created")

	entry := parseLogLine(t, strings.TrimSpace(buf.String()))
	if entry["msg"] != "company created" {
		t.Errorf("Expected message, got %v", entry["msg"])
	}
	if entry["company_id"] != float64(7) {
		t.Errorf("Expected company_id 7, got %v", entry["company_id"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("Expected INFO level, got %v", entry["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("suppressed")
	logger.Debugf("also %s", "suppressed")
	if buf.Len() != 0 {
		t.Errorf("Expected no output below warn level, got %q", buf.String())
	}

	logger.Warnf("kept %d", 1)
	if buf.Len() == 0 {
		t.Error("Expected warn output")
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(nil).Info("no error attached")
	entry := parseLogLine(t, strings.TrimSpace(buf.String()))
	if _, ok := entry["error"]; ok {
		t.Error("Expected no error field for nil error")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-123")
	ctx = contextkeys.WithUserID(ctx, "42")

	FromContext(ctx).Info("handled")

	entry := parseLogLine(t, strings.TrimSpace(buf.String()))
	if entry["request_id"] != "req-123" {
		t.Errorf("Expected request_id req-123, got %v", entry["request_id"])
	}
	if entry["user_id"] != "42" {
		t.Errorf("Expected user_id 42, got %v", entry["user_id"])
	}
}

func TestGetLogger_FallsBackToDefault(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Error("Expected a default logger for a bare context")
	}
}
