// Package providers implements the Model Capability (C11) adapters: thin,
// non-streaming wrappers around each vendor SDK that expose exactly the two
// operations the iteration driver needs, Generate and GenerateStructured.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dexterhq/dexter/internal/agent"
)

// AnthropicProvider implements agent.ModelCapability against Anthropic's
// Claude API using a single non-streaming request per Generate call.
type AnthropicProvider struct {
	BaseProvider
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig holds configuration for NewAnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewAnthropicProvider creates an Anthropic-backed ModelCapability.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		BaseProvider: NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
	}, nil
}

// Name identifies this provider for routing and logging.
func (p *AnthropicProvider) Name() string { return "anthropic" }

const defaultMaxTokens = 4096

// Generate sends system/prompt (plus any tool schemas) as a single-turn
// request and returns the model's text and any requested tool calls,
// retrying transient failures with the BaseProvider's backoff.
func (p *AnthropicProvider) Generate(ctx context.Context, system, prompt string, tools []agent.Tool) (*agent.GenerateResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		toolParams, err := convertToolsAnthropic(tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = toolParams
	}

	var message *anthropic.Message
	err := p.Retry(ctx, p.isRetryableError, func() error {
		resp, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return p.wrapError(err)
		}
		message = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return messageToResult(message), nil
}

// GenerateStructured sends a structured-output request constrained to
// schema and decodes the single JSON object the model returns into out.
func (p *AnthropicProvider) GenerateStructured(ctx context.Context, system, prompt string, schema json.RawMessage, out any) error {
	structuredPrompt := prompt + "\n\nRespond with a single JSON object matching this schema, and nothing else:\n" + string(schema)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(structuredPrompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var message *anthropic.Message
	err := p.Retry(ctx, p.isRetryableError, func() error {
		resp, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return p.wrapError(err)
		}
		message = resp
		return nil
	})
	if err != nil {
		return err
	}

	text := messageToResult(message).Text
	return json.Unmarshal([]byte(extractJSONObject(text)), out)
}

// extractJSONObject trims any leading/trailing prose around the first
// top-level JSON object in text, tolerating models that wrap their answer
// in a sentence or a markdown code fence despite being asked not to.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func messageToResult(message *anthropic.Message) *agent.GenerateResult {
	result := &agent.GenerateResult{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			result.ToolCalls = append(result.ToolCalls, agent.ModelToolCall{
				ID:    toolUse.ID,
				Name:  toolUse.Name,
				Input: json.RawMessage(toolUse.Input),
			})
		}
	}
	result.Text = text.String()
	return result
}

func convertToolsAnthropic(tools []agent.Tool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name(), err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name())
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description())
		result = append(result, toolParam)
	}
	return result, nil
}

// isRetryableError delegates to the shared ProviderError classification so
// rate limits, 5xx, timeouts, and connection errors are retried identically
// across every provider.
func (p *AnthropicProvider) isRetryableError(err error) bool {
	return IsRetryable(err)
}

// wrapError converts a raw SDK error into a ProviderError carrying the HTTP
// status and provider error code, so callers can classify and, if desired,
// fail over without re-parsing the underlying error text.
func (p *AnthropicProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := NewProviderError("anthropic", p.defaultModel, err).WithStatus(apiErr.StatusCode)
		var payload struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
			RequestID string `json:"request_id"`
		}
		if raw := apiErr.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
			if payload.Error.Message != "" {
				providerErr = providerErr.WithMessage(payload.Error.Message)
			}
			if payload.Error.Type != "" {
				providerErr = providerErr.WithCode(payload.Error.Type)
			}
			if payload.RequestID != "" {
				providerErr = providerErr.WithRequestID(payload.RequestID)
			}
		}
		return providerErr
	}

	return NewProviderError("anthropic", p.defaultModel, err)
}
