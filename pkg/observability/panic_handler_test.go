package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "test operation")
		panic("boom")
	}()

	out := buf.String()
	if !strings.Contains(out, "PANIC recovered") {
		t.Error("Expected panic to be logged")
	}
	if !strings.Contains(out, "boom") {
		t.Error("Expected panic value in log output")
	}
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	called := false
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func() { called = true })
		panic("boom")
	}()

	if !called {
		t.Error("Expected callback after panic")
	}

	// No panic means no callback
	called = false
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func() { called = true })
	}()
	if called {
		t.Error("Expected no callback without a panic")
	}
}

func TestMustRecover(t *testing.T) {
	if err := MustRecover(nil); err != nil {
		t.Errorf("Expected nil for no panic, got %v", err)
	}
	if err := MustRecover("boom"); err == nil {
		t.Error("Expected error for recovered panic")
	}
}
