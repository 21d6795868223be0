package agent

import (
	"context"

	"github.com/dexterhq/dexter/pkg/models"
)

// EventEmitter builds well-formed AgentEvents and dispatches them to a sink,
// giving the iteration driver a single place to construct the event stream
// instead of scattering models.AgentEvent literals through loop.go.
type EventEmitter struct {
	sink EventSink
}

// NewEventEmitter creates an emitter over sink. A nil sink becomes a NopSink.
func NewEventEmitter(sink EventSink) *EventEmitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &EventEmitter{sink: sink}
}

// Thinking emits a status message before the model is asked for its next step.
func (e *EventEmitter) Thinking(ctx context.Context, message string) {
	e.sink.Emit(ctx, models.Thinking(message))
}

// ToolStart emits the event preceding a tool dispatch.
func (e *EventEmitter) ToolStart(ctx context.Context, tool string, args []byte) {
	e.sink.Emit(ctx, models.ToolStartEvent(tool, args))
}

// ToolEnd emits the event following a successful tool execution.
func (e *EventEmitter) ToolEnd(ctx context.Context, tool string, args []byte, result string, durationMS int64) {
	e.sink.Emit(ctx, models.ToolEndEvent(tool, args, result, durationMS))
}

// ToolError emits the event following a failed tool execution. The run
// continues; this does not terminate the loop.
func (e *EventEmitter) ToolError(ctx context.Context, tool string, err string) {
	e.sink.Emit(ctx, models.ToolErrorEvent(tool, err))
}

// ToolLimit emits a soft-limit advisory attached to a call that is about to
// exceed the per-tool call budget. It never blocks the call.
func (e *EventEmitter) ToolLimit(ctx context.Context, tool, warning string) {
	e.sink.Emit(ctx, models.ToolLimitEvent(tool, warning))
}

// AnswerStart emits the event marking the driver's transition from
// reasoning to final-answer composition.
func (e *EventEmitter) AnswerStart(ctx context.Context) {
	e.sink.Emit(ctx, models.AnswerStartEvent())
}

// Done emits the terminal event for a run.
func (e *EventEmitter) Done(ctx context.Context, answer string, toolCalls []models.CompletedToolCall, iterations int) {
	e.sink.Emit(ctx, models.DoneEvent(answer, toolCalls, iterations))
}
