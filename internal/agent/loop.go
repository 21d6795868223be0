package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dexterhq/dexter/internal/compaction"
	ctxstore "github.com/dexterhq/dexter/internal/context"
	"github.com/dexterhq/dexter/internal/memory"
	"github.com/dexterhq/dexter/internal/observability"
	"github.com/dexterhq/dexter/internal/sessions"
	"github.com/dexterhq/dexter/pkg/models"
)

// DriverConfig bounds the iteration driver's run loop.
type DriverConfig struct {
	// MaxIterations caps the number of reason/dispatch rounds. Default: 10.
	MaxIterations int

	// ScratchpadDir is the directory each run's journal file is written
	// under, named "<query_id>.jsonl". Empty keeps the scratchpad
	// in-memory only (no journal file).
	ScratchpadDir string

	// MemorySearchLimit bounds how many memory snippets are pulled into
	// the initial prompt. Default: 5.
	MemorySearchLimit int
}

// DefaultMaxIterations is the loop's iteration cap absent configuration.
const DefaultMaxIterations = 10

// defaultMemorySearchLimit is the memory snippet count pulled into the
// initial prompt absent configuration.
const defaultMemorySearchLimit = 5

// recentHistoryMessages bounds how many prior session messages are
// rendered into the initial prompt.
const recentHistoryMessages = 10

// historyTruncateChars bounds each rendered history message.
const historyTruncateChars = 200

// minAnswerLenForMemory is the §9-resolved open question: an answer must
// exceed this length to be worth writing back to memory.
const minAnswerLenForMemory = 50

// maxMemoryToolTags bounds how many "tool:<name>" tags a memory write
// carries.
const maxMemoryToolTags = 5

// answerSnippetLen bounds how much of the answer is stored in a memory
// entry's "A: " line.
const answerSnippetLen = 500

func sanitizeDriverConfig(cfg DriverConfig) DriverConfig {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MemorySearchLimit <= 0 {
		cfg.MemorySearchLimit = defaultMemorySearchLimit
	}
	return cfg
}

// Driver is the Iteration Driver (C8): the reason/act loop that turns one
// query into an ordered event stream, tying together the session, tool
// context, memory and scratchpad stores with a model capability and the
// tool registry.
//
// The run is a small state machine: Init → Loop{Reasoning ↔ Dispatch} →
// Finalising → Done, with a failure edge from any state straight to a
// terminal error. Only Reasoning is re-entered; the iteration counter is
// the count of Reasoning entries.
type Driver struct {
	model     ModelCapability
	fastModel ModelCapability
	tools     *ToolRegistry
	executor  *ToolExecutor
	sessions  sessions.Store
	toolCtx   *ctxstore.Store
	memory    memory.Store
	emitter   *EventEmitter
	logger    *observability.Logger
	config    DriverConfig
}

// NewDriver wires a Driver from its collaborators. fastModel may be nil, in
// which case model itself serves both roles. sessionStore, toolCtxStore,
// memoryStore and logger may all be nil; the driver degrades each
// concern (no persistence, no context caching, no memory, no logging)
// rather than failing.
func NewDriver(
	model ModelCapability,
	fastModel ModelCapability,
	tools *ToolRegistry,
	executor *ToolExecutor,
	sessionStore sessions.Store,
	toolCtxStore *ctxstore.Store,
	memoryStore memory.Store,
	sink EventSink,
	logger *observability.Logger,
	config DriverConfig,
) *Driver {
	if fastModel == nil {
		fastModel = model
	}
	if executor == nil {
		executor = NewToolExecutor(tools, DefaultToolExecConfig())
	}
	return &Driver{
		model:     model,
		fastModel: fastModel,
		tools:     tools,
		executor:  executor,
		sessions:  sessionStore,
		toolCtx:   toolCtxStore,
		memory:    memoryStore,
		emitter:   NewEventEmitter(sink),
		logger:    logger,
		config:    sanitizeDriverConfig(config),
	}
}

// Run drives one query to completion, returning an event stream and a
// terminal-error channel. The events channel carries every event up to but
// not including the run's outcome; the error channel receives exactly one
// value — nil on a clean Done, non-nil on a fatal failure that pre-empted
// Done — and then both channels close. Callers should drain events first,
// then read the error.
func (d *Driver) Run(ctx context.Context, query string, sessionKey string) (<-chan models.AgentEvent, <-chan error) {
	events := make(chan models.AgentEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)
		errs <- d.run(ctx, query, sessionKey, events)
	}()

	return events, errs
}

func (d *Driver) run(ctx context.Context, query string, sessionKeyArg string, events chan<- models.AgentEvent) error {
	emitter := NewEventEmitter(emitterSink(events))

	if d.tools == nil || d.tools.Len() == 0 {
		emitter.Done(ctx, "no tools available", nil, 0)
		return nil
	}

	persist := strings.TrimSpace(sessionKeyArg) != ""
	sessionKey := ""
	var history []models.Message
	if persist {
		sessionKey = sessions.NormalizeKey(sessionKeyArg)
		if d.sessions != nil {
			var err error
			history, err = d.sessions.Load(ctx, sessionKey)
			if err != nil {
				return &PersistenceError{Kind: PersistenceSessionAppend, Message: "load session history", Cause: err}
			}
		}
	}

	queryID, err := ctxstore.HashQuery(query)
	if err != nil {
		return &ConfigurationError{Message: "hash query", Cause: err}
	}

	var journal *ScratchpadJournal
	if d.config.ScratchpadDir != "" {
		journal, err = OpenScratchpadJournal(scratchpadJournalPath(d.config.ScratchpadDir, queryID))
		if err != nil {
			return &ConfigurationError{Message: "open scratchpad journal", Cause: err}
		}
		defer journal.Close()
	}
	sp, err := NewScratchpad(query, journal)
	if err != nil {
		return err
	}

	var memorySnippets []models.MemorySearchResult
	if d.memory != nil {
		memorySnippets, _ = d.memory.Search(query, d.config.MemorySearchLimit)
	}

	if persist && d.sessions != nil {
		userMsg := models.Message{Role: models.RoleUser, Content: models.NewTextContent(query), TimestampMS: nowMS()}
		if err := d.sessions.Append(ctx, sessionKey, userMsg); err != nil {
			return &PersistenceError{Kind: PersistenceSessionAppend, Message: "append user message", Cause: err}
		}
	}

	systemPrompt := "You are a helpful assistant with access to tools. Use them when they help answer the query."
	currentPrompt := composeInitialPrompt(query, history, memorySnippets)

	iteration := 0
	for iteration < d.config.MaxIterations {
		iteration++

		result, genErr := d.model.Generate(ctx, systemPrompt, currentPrompt, d.tools.AsTools())
		if genErr != nil {
			return &ModelError{Provider: d.model.Name(), Message: "reason step", Cause: genErr}
		}

		if strings.TrimSpace(result.Text) != "" && len(result.ToolCalls) > 0 {
			if err := sp.AddThinking(result.Text); err != nil {
				return err
			}
			emitter.Thinking(ctx, result.Text)
		}

		if len(result.ToolCalls) == 0 {
			var answer string
			if !sp.HasToolResults() {
				answer = result.Text
			} else {
				answer, genErr = d.finalAnswer(ctx, query, sp)
				if genErr != nil {
					return genErr
				}
			}
			emitter.AnswerStart(ctx)
			return d.finish(ctx, emitter, persist, sessionKey, query, answer, sp, iteration)
		}

		if err := d.dispatchToolCalls(ctx, emitter, sp, query, queryID, result.ToolCalls); err != nil {
			return err
		}

		currentPrompt = composeIterationPrompt(query, sp)
	}

	answer, genErr := d.finalAnswer(ctx, query, sp)
	if genErr != nil {
		return genErr
	}
	emitter.AnswerStart(ctx)
	return d.finish(ctx, emitter, persist, sessionKey, query, answer, sp, iteration)
}

// dispatchToolCalls runs calls sequentially in declaration order, per §5's
// scheduling model.
func (d *Driver) dispatchToolCalls(ctx context.Context, emitter *EventEmitter, sp *Scratchpad, query, queryID string, calls []ModelToolCall) error {
	for _, call := range calls {
		if call.Name == "skill" {
			if name, ok := skillArgName(call.Input); ok && sp.HasExecutedSkill(name) {
				continue
			}
		}

		queryKey := extractQueryKey(call.Input)
		if check := sp.CanCallTool(call.Name, queryKey); check.Warned() {
			emitter.ToolLimit(ctx, call.Name, check.Warning)
		}

		emitter.ToolStart(ctx, call.Name, call.Input)
		toolResult, duration, execErr := d.executor.Execute(ctx, call.Name, call.Input)
		if execErr != nil {
			toolResult = &ToolResult{Content: execErr.Error(), IsError: true}
		}

		var resultText string
		if toolResult.IsError {
			resultText = "Error: " + toolResult.Content
			emitter.ToolError(ctx, call.Name, toolResult.Content)
		} else {
			resultText = toolResult.Content
			emitter.ToolEnd(ctx, call.Name, call.Input, resultText, duration.Milliseconds())
			d.saveToolContext(ctx, call.Name, call.Input, resultText, queryID)
		}

		sp.RecordToolCall(call.Name, queryKey)
		summary := d.summarizeToolResult(ctx, query, call.Name, resultText, toolResult.IsError)
		if err := sp.AddToolResult(call.Name, string(call.Input), resultText, summary); err != nil {
			return err
		}
	}
	return nil
}

// saveToolContext persists a successful tool result via C2. A failure here
// is logged and swallowed per §4.8's failure semantics: losing one cached
// result only costs a future re-fetch.
func (d *Driver) saveToolContext(ctx context.Context, tool string, args json.RawMessage, result, queryID string) {
	if d.toolCtx == nil {
		return
	}
	if _, err := d.toolCtx.Save(tool, args, result, "", queryID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		if d.logger != nil {
			d.logger.Warn(ctx, "tool context save failed", "tool", tool, "error", err)
		}
	}
}

// summarizeToolResult asks the fast model for a one-to-two sentence summary
// of a tool result (or error description), focused on query. A summariser
// failure is non-fatal: the entry stores a minimal description instead.
func (d *Driver) summarizeToolResult(ctx context.Context, query, tool, resultText string, isError bool) string {
	if strings.TrimSpace(resultText) == "" {
		return ""
	}
	system := "Summarise a tool result in one or two sentences, focused on the user's query. Respond with prose only, no preamble."
	prompt := fmt.Sprintf("Query: %s\nTool: %s\nResult:\n%s", query, tool, truncateRunes(resultText, 4000))
	result, err := d.fastModel.Generate(ctx, system, prompt, nil)
	if err != nil || result == nil || strings.TrimSpace(result.Text) == "" {
		if isError {
			return resultText
		}
		return tool + " completed"
	}
	return strings.TrimSpace(result.Text)
}

// finalAnswer builds the final-answer context (§4.6) from the scratchpad's
// tool results and asks the model for the run's answer text with tools
// disabled.
func (d *Driver) finalAnswer(ctx context.Context, query string, sp *Scratchpad) (string, error) {
	entries := fullContextEntries(sp)
	selector := modelAdapter{ctx: ctx, gen: d.fastModel}
	contextBlock := compaction.BuildFinalContext(entries, query, selector)

	system := "You are a helpful assistant. Answer the user's query using only the context below; do not call any tools."
	prompt := fmt.Sprintf("Query: %s\n\nContext:\n%s", query, contextBlock)
	result, err := d.model.Generate(ctx, system, prompt, nil)
	if err != nil {
		return "", &ModelError{Provider: d.model.Name(), Message: "final answer", Cause: err}
	}
	return result.Text, nil
}

// finish completes a run: emits Done, appends the assistant turn to the
// session (when persisting), and writes a memory entry when the run used
// any tools and the answer clears the minimum length.
func (d *Driver) finish(ctx context.Context, emitter *EventEmitter, persist bool, sessionKey, query, answer string, sp *Scratchpad, iterations int) error {
	toolCalls := doneToolCalls(sp)
	emitter.Done(ctx, answer, toolCalls, iterations)

	if persist && d.sessions != nil {
		assistantMsg := models.Message{Role: models.RoleAssistant, Content: models.NewTextContent(answer), TimestampMS: nowMS()}
		if err := d.sessions.Append(ctx, sessionKey, assistantMsg); err != nil {
			return &PersistenceError{Kind: PersistenceSessionAppend, Message: "append assistant message", Cause: err}
		}
	}

	if d.memory != nil && sp.HasToolResults() && len(answer) > minAnswerLenForMemory {
		tags := []string{"qa", "conversation"}
		for i, tool := range sp.CalledTools() {
			if i >= maxMemoryToolTags {
				break
			}
			tags = append(tags, "tool:"+tool)
		}
		content := fmt.Sprintf("Q: %s\nA: %s", query, truncateRunes(answer, answerSnippetLen))
		if _, err := d.memory.Add(content, models.MemorySourceAgent, tags); err != nil && d.logger != nil {
			d.logger.Warn(ctx, "memory write failed", "error", err)
		}
	}

	return nil
}

// --- prompt composition -----------------------------------------------

func composeInitialPrompt(query string, history []models.Message, snippets []models.MemorySearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s", query)

	if len(history) > 0 {
		start := 0
		if len(history) > recentHistoryMessages {
			start = len(history) - recentHistoryMessages
		}
		b.WriteString("\n\nConversation so far:")
		for _, msg := range history[start:] {
			label := "User:"
			if msg.Role == models.RoleAssistant {
				label = "Assistant:"
			}
			fmt.Fprintf(&b, "\n%s %s", label, truncateRunes(msg.Content.Text(), historyTruncateChars))
		}
	}

	if len(snippets) > 0 {
		b.WriteString("\n\nRelevant Context from Memory:")
		for _, s := range snippets {
			fmt.Fprintf(&b, "\n- %s", s.Snippet)
		}
	}

	return b.String()
}

func composeIterationPrompt(query string, sp *Scratchpad) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s", query)

	summaries := sp.GetToolSummaries()
	if len(summaries) > 0 {
		b.WriteString("\n\nTool results so far:")
		for _, s := range summaries {
			fmt.Fprintf(&b, "\n- %s: %s", s.Tool, s.Summary)
		}
	}

	if status := toolUsageStatusBlock(sp); status != "" {
		b.WriteString("\n\n")
		b.WriteString(status)
	}

	return b.String()
}

func toolUsageStatusBlock(sp *Scratchpad) string {
	tools := sp.CalledTools()
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Tool usage so far:")
	for _, tool := range tools {
		count := sp.ToolCallCount(tool)
		line := fmt.Sprintf("\n- %s: %d calls", tool, count)
		if count >= DefaultMaxCallsPerTool {
			line += fmt.Sprintf(" [over suggested limit of %d]", DefaultMaxCallsPerTool)
		}
		b.WriteString(line)
	}
	b.WriteString("\n(Counts are advisory; you may call a tool again if the query genuinely requires it.)")
	return b.String()
}

// extractQueryKey pulls the similarity key out of a tool call's arguments,
// trying each candidate key in order and returning the first string value
// found.
func extractQueryKey(args json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return ""
	}
	for _, key := range []string{"query", "search", "question", "q", "text", "input"} {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// skillArgName extracts the "skill" field from a skill meta-tool call's
// arguments.
func skillArgName(args json.RawMessage) (string, bool) {
	var m struct {
		Skill string `json:"skill"`
	}
	if err := json.Unmarshal(args, &m); err != nil || m.Skill == "" {
		return "", false
	}
	return m.Skill, true
}

func fullContextEntries(sp *Scratchpad) []compaction.Entry {
	src := sp.GetFullContextsWithSummaries()
	out := make([]compaction.Entry, len(src))
	for i, e := range src {
		out[i] = compaction.Entry{Tool: e.Tool, Description: e.Description, Result: e.Result, Summary: e.Summary}
	}
	return out
}

func doneToolCalls(sp *Scratchpad) []models.CompletedToolCall {
	records := sp.GetToolCallRecords()
	if len(records) == 0 {
		return nil
	}
	out := make([]models.CompletedToolCall, len(records))
	for i, r := range records {
		args := json.RawMessage(r.Args)
		if !json.Valid(args) {
			encoded, _ := json.Marshal(r.Args)
			args = encoded
		}
		out[i] = models.CompletedToolCall{Tool: r.Tool, Args: args, Result: r.Result}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func scratchpadJournalPath(dir, queryID string) string {
	return dir + "/" + queryID + ".jsonl"
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

// modelAdapter narrows a ModelCapability bound to a fixed context into the
// no-ctx GenerateStructured seam that compaction.Selector and
// context.StructuredGenerator both expect, avoiding an import cycle back
// into this package from either leaf package.
type modelAdapter struct {
	ctx context.Context
	gen ModelCapability
}

func (a modelAdapter) GenerateStructured(system, prompt string, schema json.RawMessage, out any) error {
	return a.gen.GenerateStructured(a.ctx, system, prompt, schema, out)
}

// emitterSink adapts a plain events channel to the EventSink interface so
// Run's internal emitter can share EventEmitter's builder methods.
type emitterSink chan<- models.AgentEvent

func (s emitterSink) Emit(ctx context.Context, e models.AgentEvent) {
	select {
	case s <- e:
	case <-ctx.Done():
	}
}
