package config

import "time"

// ToolsConfig configures the built-in tools the runtime registers: web
// search, browser automation, and the limits applied to every tool call the
// driver dispatches.
type ToolsConfig struct {
	Browser   BrowserConfig       `yaml:"browser"`
	WebSearch WebSearchConfig     `yaml:"websearch"`
	Execution ToolExecutionConfig `yaml:"execution"`
}

// ToolExecutionConfig controls runtime tool execution behavior. Zero values
// fall through to the agent package's own defaults (internal/agent/tool_exec.go).
type ToolExecutionConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

type BrowserConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Headless bool   `yaml:"headless"`
	URL      string `yaml:"url"`
}

type WebSearchConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"`
	URL         string `yaml:"url"`
	BraveAPIKey string `yaml:"brave_api_key"`
}
