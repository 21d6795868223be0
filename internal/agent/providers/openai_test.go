package providers

import (
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dexterhq/dexter/internal/agent"
)

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewOpenAIProvider_Defaults(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider error: %v", err)
	}
	if p.defaultModel != "gpt-4o" {
		t.Errorf("defaultModel = %q, want gpt-4o", p.defaultModel)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}
}

func TestConvertToolsOpenAI(t *testing.T) {
	tools := []agent.Tool{
		stubTool{
			name:        "search",
			description: "search the web",
			schema:      json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`),
		},
	}
	result := convertToolsOpenAI(tools)
	if len(result) != 1 || result[0].Function.Name != "search" {
		t.Fatalf("result = %+v, want one tool named search", result)
	}
}

func TestConvertToolsOpenAI_InvalidSchemaFallsBackToEmptyObject(t *testing.T) {
	tools := []agent.Tool{stubTool{name: "bad", schema: json.RawMessage(`not json`)}}
	result := convertToolsOpenAI(tools)
	if len(result) != 1 {
		t.Fatalf("result = %d tools, want 1", len(result))
	}
	params, ok := result[0].Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Errorf("Parameters = %+v, want empty object schema fallback", result[0].Function.Parameters)
	}
}

func TestResponseToResult(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Content: "the answer",
					ToolCalls: []openai.ToolCall{
						{ID: "1", Function: openai.FunctionCall{Name: "search", Arguments: `{"q":"x"}`}},
					},
				},
			},
		},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
	result := responseToResult(resp)
	if result.Text != "the answer" {
		t.Errorf("Text = %q", result.Text)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "search" {
		t.Errorf("ToolCalls = %+v", result.ToolCalls)
	}
	if result.InputTokens != 10 || result.OutputTokens != 5 {
		t.Errorf("tokens = %d/%d, want 10/5", result.InputTokens, result.OutputTokens)
	}
}

func TestResponseToResult_NoChoices(t *testing.T) {
	result := responseToResult(openai.ChatCompletionResponse{})
	if result.Text != "" || len(result.ToolCalls) != 0 {
		t.Errorf("result = %+v, want zero value", result)
	}
}

func TestOpenAIProvider_IsRetryableError(t *testing.T) {
	p := &OpenAIProvider{defaultModel: "m"}
	if !p.isRetryableError(errors.New("rate limit exceeded")) {
		t.Error("expected rate limit to be retryable")
	}
	if p.isRetryableError(errors.New("invalid api key")) {
		t.Error("expected auth error to be non-retryable")
	}
}
