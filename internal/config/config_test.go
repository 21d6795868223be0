package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
workspace:
  path: .
  extra: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
workspace:
  path: .
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
}

func TestLoadValidatesWorkspaceMaxChars(t *testing.T) {
	path := writeConfig(t, `
workspace:
  enabled: true
  max_chars: -5
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "workspace.max_chars") {
		t.Fatalf("expected workspace.max_chars error, got %v", err)
	}
}

func TestLoadValidatesWebSearchProvider(t *testing.T) {
	path := writeConfig(t, `
tools:
  websearch:
    enabled: true
    provider: altavista
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "websearch.provider") {
		t.Fatalf("expected websearch.provider error, got %v", err)
	}
}

func TestLoadValidatesExecutionMaxIterations(t *testing.T) {
	path := writeConfig(t, `
tools:
  execution:
    max_iterations: -1
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "execution.max_iterations") {
		t.Fatalf("expected execution.max_iterations error, got %v", err)
	}
}

func TestLoadAppliesLogEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_ROTATION", "50")
	t.Setenv("LOG_RETENTION", "3")
	t.Setenv("LOG_COMPRESSION", "true")

	path := writeConfig(t, `
logging:
  level: info
  file: /tmp/dexter.log
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected level override, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.RotationMaxSizeMB != 50 {
		t.Fatalf("expected rotation override, got %d", cfg.Logging.RotationMaxSizeMB)
	}
	if cfg.Logging.RetentionDays != 3 {
		t.Fatalf("expected retention override, got %d", cfg.Logging.RetentionDays)
	}
	if !cfg.Logging.Compression {
		t.Fatalf("expected compression override to be true")
	}
}

func TestLoadAppliesLoggingDefaultsWhenFileSet(t *testing.T) {
	path := writeConfig(t, `
logging:
  file: /tmp/dexter.log
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.RotationMaxSizeMB != 100 {
		t.Fatalf("expected default rotation size, got %d", cfg.Logging.RotationMaxSizeMB)
	}
	if cfg.Logging.RetentionDays != 7 {
		t.Fatalf("expected default retention days, got %d", cfg.Logging.RetentionDays)
	}
	if cfg.Logging.RetentionMaxBackups != 5 {
		t.Fatalf("expected default max backups, got %d", cfg.Logging.RetentionMaxBackups)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dexter.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
