package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dexterhq/dexter/internal/agent"
)

type stubTool struct {
	name, description string
	schema             json.RawMessage
}

func (t stubTool) Name() string            { return t.name }
func (t stubTool) Description() string     { return t.description }
func (t stubTool) Schema() json.RawMessage { return t.schema }
func (t stubTool) Execute(_ context.Context, _ json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: "ok"}, nil
}

func TestNewAnthropicProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewAnthropicProvider_Defaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider error: %v", err)
	}
	if p.defaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("defaultModel = %q, want default sonnet", p.defaultModel)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name() = %q, want anthropic", p.Name())
	}
}

func TestConvertToolsAnthropic(t *testing.T) {
	tools := []agent.Tool{
		stubTool{
			name:        "search",
			description: "search the web",
			schema:      json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`),
		},
	}
	params, err := convertToolsAnthropic(tools)
	if err != nil {
		t.Fatalf("convertToolsAnthropic error: %v", err)
	}
	if len(params) != 1 {
		t.Fatalf("params = %d, want 1", len(params))
	}
	if params[0].OfTool == nil || params[0].OfTool.Name != "search" {
		t.Errorf("expected tool named search, got %+v", params[0])
	}
}

func TestConvertToolsAnthropic_InvalidSchema(t *testing.T) {
	tools := []agent.Tool{
		stubTool{name: "bad", schema: json.RawMessage(`not json`)},
	}
	if _, err := convertToolsAnthropic(tools); err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []string{
		`{"a":1}`,
		"```json\n{\"a\":1}\n```",
		"Sure, here you go: {\"a\":1} — hope that helps!",
	}
	for _, in := range cases {
		got := extractJSONObject(in)
		var decoded map[string]any
		if err := json.Unmarshal([]byte(got), &decoded); err != nil {
			t.Errorf("extractJSONObject(%q) = %q, not valid JSON: %v", in, got, err)
		}
	}
}

func TestMessageToResult(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "hello "},
			{Type: "text", Text: "world"},
		},
	}
	result := messageToResult(msg)
	if result.Text != "hello world" {
		t.Errorf("Text = %q, want %q", result.Text, "hello world")
	}
}

func TestAnthropicProvider_IsRetryableError(t *testing.T) {
	p := &AnthropicProvider{defaultModel: "m"}
	if !p.isRetryableError(errors.New("rate_limit exceeded")) {
		t.Error("expected rate_limit to be retryable")
	}
	if p.isRetryableError(errors.New("invalid api key")) {
		t.Error("expected auth error to be non-retryable")
	}
}
