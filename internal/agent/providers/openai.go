package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dexterhq/dexter/internal/agent"
)

// OpenAIProvider implements agent.ModelCapability against OpenAI's chat
// completions API using a single non-streaming request per Generate call.
type OpenAIProvider struct {
	BaseProvider
	client       *openai.Client
	defaultModel string
}

// OpenAIConfig holds configuration for NewOpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewOpenAIProvider creates an OpenAI-backed ModelCapability.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}
	return &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", config.MaxRetries, config.RetryDelay),
		client:       openai.NewClient(config.APIKey),
		defaultModel: config.DefaultModel,
	}, nil
}

// Name identifies this provider for routing and logging.
func (p *OpenAIProvider) Name() string { return "openai" }

// Generate sends system/prompt (plus any tool schemas) as a single-turn
// chat completion and returns the model's text and any requested tool calls.
func (p *OpenAIProvider) Generate(ctx context.Context, system, prompt string, tools []agent.Tool) (*agent.GenerateResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:     p.defaultModel,
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = convertToolsOpenAI(tools)
	}

	var resp openai.ChatCompletionResponse
	err := p.Retry(ctx, p.isRetryableError, func() error {
		r, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return p.wrapError(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return responseToResult(resp), nil
}

// GenerateStructured sends a structured-output request constrained to
// schema via OpenAI's JSON response format and decodes the result into out.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, system, prompt string, schema json.RawMessage, out any) error {
	structuredPrompt := prompt + "\n\nRespond with a single JSON object matching this schema, and nothing else:\n" + string(schema)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: structuredPrompt})

	req := openai.ChatCompletionRequest{
		Model:          p.defaultModel,
		Messages:       messages,
		MaxTokens:      defaultMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	var resp openai.ChatCompletionResponse
	err := p.Retry(ctx, p.isRetryableError, func() error {
		r, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return p.wrapError(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}

	text := responseToResult(resp).Text
	return json.Unmarshal([]byte(extractJSONObject(text)), out)
}

func responseToResult(resp openai.ChatCompletionResponse) *agent.GenerateResult {
	result := &agent.GenerateResult{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return result
	}
	msg := resp.Choices[0].Message
	result.Text = msg.Content
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, agent.ModelToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result
}

func convertToolsOpenAI(tools []agent.Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schemaMap,
			},
		}
	}
	return result
}

// isRetryableError delegates to the shared ProviderError classification.
func (p *OpenAIProvider) isRetryableError(err error) bool {
	return IsRetryable(err)
}

func (p *OpenAIProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := NewProviderError("openai", p.defaultModel, err).WithStatus(apiErr.HTTPStatusCode)
		if apiErr.Code != nil {
			if code, ok := apiErr.Code.(string); ok {
				providerErr = providerErr.WithCode(code)
			}
		}
		if apiErr.Message != "" {
			providerErr = providerErr.WithMessage(apiErr.Message)
		}
		return providerErr
	}
	return fmt.Errorf("openai: %w", err)
}
