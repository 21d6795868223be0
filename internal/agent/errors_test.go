package agent

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigurationError_Error(t *testing.T) {
	err := &ConfigurationError{Message: "no tools registered"}
	if !strings.Contains(err.Error(), "no tools registered") {
		t.Errorf("Error() = %q, want it to mention the message", err.Error())
	}

	cause := errors.New("missing ANTHROPIC_API_KEY")
	wrapped := &ConfigurationError{Message: "model credentials", Cause: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("should unwrap to cause")
	}
}

func TestModelError_Error(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := &ModelError{Provider: "anthropic", Message: "request failed", Cause: cause}

	if !strings.Contains(err.Error(), "anthropic") {
		t.Errorf("Error() = %q, want it to mention the provider", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("should unwrap to cause")
	}
}

func TestToolError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("file not found")
	err := NewToolError("read_file", cause)

	if !strings.Contains(err.Error(), "read_file") {
		t.Errorf("Error() = %q, want it to mention the tool name", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("should unwrap to underlying cause")
	}
}

func TestIsToolError(t *testing.T) {
	toolErr := NewToolError("tool", errors.New("boom"))
	regularErr := errors.New("regular error")

	if !IsToolError(toolErr) {
		t.Error("should recognize *ToolError")
	}
	if IsToolError(regularErr) {
		t.Error("should not recognize a plain error as *ToolError")
	}
	if !IsToolError(errors.Join(errors.New("wrapper"), toolErr)) {
		t.Error("should recognize a *ToolError wrapped by errors.Join")
	}
}

func TestPersistenceKind_Fatal(t *testing.T) {
	tests := []struct {
		kind PersistenceKind
		want bool
	}{
		{PersistenceSessionAppend, true},
		{PersistenceScratchpadAppend, true},
		{PersistenceToolContextSave, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Fatal(); got != tt.want {
			t.Errorf("%s.Fatal() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestPersistenceError_Error(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Kind: PersistenceSessionAppend, Message: "append failed", Cause: cause}

	if !strings.Contains(err.Error(), string(PersistenceSessionAppend)) {
		t.Errorf("Error() = %q, want it to mention the kind", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("should unwrap to cause")
	}
}

func TestInvalidInputError_Error(t *testing.T) {
	err := &InvalidInputError{Field: "session_key", Message: "contains a null byte"}
	if !strings.Contains(err.Error(), "session_key") {
		t.Errorf("Error() = %q, want it to mention the field", err.Error())
	}
}

func TestLimitAdvisory_IsNotFatal(t *testing.T) {
	adv := &LimitAdvisory{ToolName: "web_search", Warning: "called web_search 4 times this query"}
	if adv.Error() != adv.Warning {
		t.Errorf("Error() = %q, want it to equal Warning", adv.Error())
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrMaxIterations,
		ErrContextCancelled,
		ErrNoProvider,
		ErrNoTools,
		ErrToolNotFound,
	}
	for _, err := range sentinels {
		if err == nil {
			t.Fatal("sentinel error should not be nil")
		}
		if err.Error() == "" {
			t.Errorf("sentinel %v should have a message", err)
		}
	}
}
