// Package tape provides recording and replay capabilities for agent
// conversations, letting the iteration driver's behaviour be tested without
// making real model API calls.
package tape

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dexterhq/dexter/internal/agent"
)

// Tape records a complete run against a Model Capability.
type Tape struct {
	// Version of the tape format
	Version string `json:"version"`

	// CreatedAt is when the tape was recorded
	CreatedAt time.Time `json:"created_at"`

	// Model is the LLM model used
	Model string `json:"model,omitempty"`

	// SystemPrompt used for the conversation
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Turns contains each Generate call and its result
	Turns []Turn `json:"turns"`

	// ToolRuns contains each tool execution
	ToolRuns []ToolRun `json:"tool_runs"`

	// Metadata holds arbitrary metadata
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Turn represents a single reasoning step: one Generate call and its result.
type Turn struct {
	// Index is the 0-based iteration number
	Index int `json:"index"`

	// Prompt is the rendered prompt sent to Generate
	Prompt string `json:"prompt"`

	// Result is the model's response for this turn
	Result *agent.GenerateResult `json:"result"`

	// Duration is how long the call took
	Duration time.Duration `json:"duration"`
}

// ToolRun represents a single tool execution.
type ToolRun struct {
	// TurnIndex is the turn when this tool was called
	TurnIndex int `json:"turn_index"`

	// Call is the tool call the model requested
	Call agent.ModelToolCall `json:"call"`

	// Result is the tool execution result
	Result *agent.ToolResult `json:"result"`

	// Error is any error that occurred (as string for serialization)
	Error string `json:"error,omitempty"`

	// Duration is how long the tool took
	Duration time.Duration `json:"duration"`
}

// NewTape creates a new empty tape.
func NewTape() *Tape {
	return &Tape{
		Version:  "1.0",
		Turns:    []Turn{},
		ToolRuns: []ToolRun{},
		Metadata: make(map[string]any),
	}
}

// AddTurn adds a turn to the tape.
func (t *Tape) AddTurn(turn Turn) {
	turn.Index = len(t.Turns)
	t.Turns = append(t.Turns, turn)
}

// AddToolRun adds a tool run to the tape.
func (t *Tape) AddToolRun(run ToolRun) {
	t.ToolRuns = append(t.ToolRuns, run)
}

// GetTurn returns the turn at the given index.
func (t *Tape) GetTurn(index int) (*Turn, bool) {
	if index < 0 || index >= len(t.Turns) {
		return nil, false
	}
	return &t.Turns[index], true
}

// GetToolRuns returns all tool runs for a given turn.
func (t *Tape) GetToolRuns(turnIndex int) []ToolRun {
	var runs []ToolRun
	for _, run := range t.ToolRuns {
		if run.TurnIndex == turnIndex {
			runs = append(runs, run)
		}
	}
	return runs
}

// TotalTurns returns the number of turns in the tape.
func (t *Tape) TotalTurns() int {
	return len(t.Turns)
}

// TotalToolRuns returns the number of tool runs in the tape.
func (t *Tape) TotalToolRuns() int {
	return len(t.ToolRuns)
}

// Marshal serializes the tape to JSON.
func (t *Tape) Marshal() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Unmarshal deserializes a tape from JSON.
func Unmarshal(data []byte) (*Tape, error) {
	var tape Tape
	if err := json.Unmarshal(data, &tape); err != nil {
		return nil, err
	}
	return &tape, nil
}

// Clone creates a deep copy of the tape.
func (t *Tape) Clone() *Tape {
	data, err := t.Marshal()
	if err == nil {
		if clone, err := Unmarshal(data); err == nil {
			return clone
		}
	}
	clone := *t
	if t.Metadata != nil {
		clone.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	clone.Turns = append([]Turn(nil), t.Turns...)
	clone.ToolRuns = append([]ToolRun(nil), t.ToolRuns...)
	return &clone
}

// Summary returns a brief summary of the tape contents.
func (t *Tape) Summary() TapeSummary {
	var totalToolCalls int
	var totalText int
	for _, turn := range t.Turns {
		if turn.Result != nil {
			totalToolCalls += len(turn.Result.ToolCalls)
			totalText += len(turn.Result.Text)
		}
	}

	return TapeSummary{
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		Model:          t.Model,
		TurnCount:      len(t.Turns),
		ToolRunCount:   len(t.ToolRuns),
		TotalToolCalls: totalToolCalls,
		TotalTextLen:   totalText,
	}
}

// TapeSummary is a brief overview of a tape.
type TapeSummary struct {
	Version        string    `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	Model          string    `json:"model,omitempty"`
	TurnCount      int       `json:"turn_count"`
	ToolRunCount   int       `json:"tool_run_count"`
	TotalToolCalls int       `json:"total_tool_calls"`
	TotalTextLen   int       `json:"total_text_len"`
}

// Player replays a recorded Tape as a agent.ModelCapability, returning each
// turn's result in order instead of calling a real model. Used to drive the
// iteration loop deterministically in tests.
type Player struct {
	tape *Tape
	next int
}

// NewPlayer creates a Player over tape.
func NewPlayer(tape *Tape) *Player {
	return &Player{tape: tape}
}

// Generate returns the next recorded turn's result, ignoring its arguments.
func (p *Player) Generate(_ context.Context, _, _ string, _ []agent.Tool) (*agent.GenerateResult, error) {
	turn, ok := p.tape.GetTurn(p.next)
	if !ok {
		return &agent.GenerateResult{}, nil
	}
	p.next++
	return turn.Result, nil
}

// GenerateStructured decodes the next recorded turn's text as JSON into out.
// Tapes intended for structured replay must have that turn's Result.Text set
// to the exact JSON object the original call produced.
func (p *Player) GenerateStructured(_ context.Context, _, _ string, _ json.RawMessage, out any) error {
	turn, ok := p.tape.GetTurn(p.next)
	if !ok {
		return nil
	}
	p.next++
	if turn.Result == nil || turn.Result.Text == "" {
		return nil
	}
	return json.Unmarshal([]byte(turn.Result.Text), out)
}

// Name identifies this capability for logging.
func (p *Player) Name() string { return "tape" }
