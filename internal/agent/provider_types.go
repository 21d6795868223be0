package agent

import (
	"context"
	"encoding/json"
)

// ModelCapability is the single seam between the iteration driver and a
// language-model backend. It exposes exactly the two operations the driver
// needs: an open-ended reasoning call that may request tools, and a
// structured call that forces a schema-conforming object (used for
// compaction's keep/summarize decisions and similar internal judgments).
//
// Implementations must be safe for concurrent use: the driver may hold
// several sessions open against the same ModelCapability at once.
type ModelCapability interface {
	// Generate sends a system prompt and a rendered conversation prompt and
	// returns the model's final text together with any tool calls it
	// requested. Unlike the teacher's streaming Complete(), this call
	// aggregates internally and returns once per reasoning step: the
	// iteration driver needs a completed decision, not a token stream.
	Generate(ctx context.Context, system, prompt string, tools []Tool) (*GenerateResult, error)

	// GenerateStructured asks the model to produce an object conforming to
	// schema and decodes it into out. Used where the caller needs a typed
	// decision rather than free text, such as the compactor's full-vs-summary
	// selection.
	GenerateStructured(ctx context.Context, system, prompt string, schema json.RawMessage, out any) error

	// Name identifies the backend for logging and error wrapping.
	Name() string
}

// GenerateResult is the outcome of one Generate call.
type GenerateResult struct {
	// Text is the model's final answer text. It may be empty when the
	// model chose to call tools instead of answering.
	Text string

	// ToolCalls are the tool invocations the model requested, in the order
	// the model declared them. The iteration driver dispatches these
	// sequentially.
	ToolCalls []ModelToolCall

	// InputTokens and OutputTokens report usage when the backend exposes
	// it; both are 0 if unavailable.
	InputTokens  int
	OutputTokens int
}

// ModelToolCall is one tool invocation requested by the model.
type ModelToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Tool defines the black-box contract every built-in and skill-provided
// capability implements: a name and description the model reasons over, a
// JSON Schema describing its parameters, and an Execute method the registry
// dispatches to. Tools never see the scratchpad or the event stream
// directly; the iteration driver is solely responsible for journalling
// calls and limiting repetition.
type Tool interface {
	// Name returns the tool name used in model tool-call requests. Must be
	// stable and unique within a registry.
	Name() string

	// Description explains what the tool does and when to use it; this text
	// is sent to the model verbatim.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool against params (validated against Schema by the
	// caller) and returns its result or an error. Errors returned here are
	// wrapped as *ToolError by the registry; they never abort the run.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the output of a tool execution, handed back to the model on
// the next iteration.
type ToolResult struct {
	// Content is the tool's output, rendered as text for the model.
	Content string `json:"content"`

	// IsError marks this result as a failure outcome so the model can see
	// the tool did not succeed without the run itself failing.
	IsError bool `json:"is_error,omitempty"`
}
