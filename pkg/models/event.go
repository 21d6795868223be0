package models

import "encoding/json"

// EventType discriminates the tagged variants of the iteration driver's
// event stream. A consumer sees exactly one well-formed variant per event;
// fields irrelevant to the variant are left at their zero value.
type EventType string

const (
	EventThinking    EventType = "thinking"
	EventToolStart   EventType = "tool_start"
	EventToolEnd     EventType = "tool_end"
	EventToolError   EventType = "tool_error"
	EventToolLimit   EventType = "tool_limit"
	EventAnswerStart EventType = "answer_start"
	EventDone        EventType = "done"
)

// CompletedToolCall is one entry of a Done event's tool-call summary.
type CompletedToolCall struct {
	Tool   string          `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Result string          `json:"result"`
}

// AgentEvent is one element of the event stream a run emits, in order, over
// a channel. Exactly one of the payload fields below is meaningful for a
// given Type; the rest are zero.
type AgentEvent struct {
	Type EventType `json:"type"`

	// Thinking
	Message string `json:"message,omitempty"`

	// ToolStart, ToolEnd, ToolError, ToolLimit
	Tool string          `json:"tool,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// ToolEnd
	Result     string `json:"result,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`

	// ToolError
	Error string `json:"error,omitempty"`

	// ToolLimit
	Warning string `json:"warning,omitempty"`
	Blocked bool   `json:"blocked,omitempty"`

	// Done
	Answer     string              `json:"answer,omitempty"`
	ToolCalls  []CompletedToolCall `json:"tool_calls,omitempty"`
	Iterations int                 `json:"iterations,omitempty"`
}

// Thinking builds a Thinking event carrying a status message emitted before
// the model is asked for its next step.
func Thinking(message string) AgentEvent {
	return AgentEvent{Type: EventThinking, Message: message}
}

// ToolStartEvent builds a ToolStart event for a tool about to run.
func ToolStartEvent(tool string, args json.RawMessage) AgentEvent {
	return AgentEvent{Type: EventToolStart, Tool: tool, Args: args}
}

// ToolEndEvent builds a ToolEnd event for a tool that completed.
func ToolEndEvent(tool string, args json.RawMessage, result string, duration int64) AgentEvent {
	return AgentEvent{Type: EventToolEnd, Tool: tool, Args: args, Result: result, DurationMS: duration}
}

// ToolErrorEvent builds a ToolError event for a tool that returned an error.
func ToolErrorEvent(tool string, err string) AgentEvent {
	return AgentEvent{Type: EventToolError, Tool: tool, Error: err}
}

// ToolLimitEvent builds a ToolLimit event: a soft-limit advisory the
// scheduler attaches to a tool call rather than blocking it. Blocked is
// always false; the scheduler only warns, it never refuses.
func ToolLimitEvent(tool, warning string) AgentEvent {
	return AgentEvent{Type: EventToolLimit, Tool: tool, Warning: warning, Blocked: false}
}

// AnswerStartEvent builds the AnswerStart event emitted once the driver has
// decided the model's next message is its final answer.
func AnswerStartEvent() AgentEvent {
	return AgentEvent{Type: EventAnswerStart}
}

// DoneEvent builds the terminal Done event for a run.
func DoneEvent(answer string, toolCalls []CompletedToolCall, iterations int) AgentEvent {
	return AgentEvent{Type: EventDone, Answer: answer, ToolCalls: toolCalls, Iterations: iterations}
}
