package agent

import (
	"context"

	"github.com/dexterhq/dexter/pkg/models"
)

// EventSink receives agent events during processing.
// Implementations must be safe to call from multiple goroutines.
type EventSink interface {
	// Emit sends an event to the sink.
	Emit(ctx context.Context, e models.AgentEvent)
}

// ChanSink sends events to a channel, dropping the event rather than
// blocking when the channel is full or the context is done.
type ChanSink struct {
	ch chan<- models.AgentEvent
}

// NewChanSink creates a sink that sends to ch. ch should be buffered to
// avoid dropped events under normal load.
func NewChanSink(ch chan<- models.AgentEvent) *ChanSink {
	return &ChanSink{ch: ch}
}

// Emit sends e to the channel, dropping it if the channel is full or ctx
// is done.
func (s *ChanSink) Emit(ctx context.Context, e models.AgentEvent) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink creates a sink that dispatches to every non-nil sink given.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	filtered := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

// Emit dispatches e to every wrapped sink in order.
func (s *MultiSink) Emit(ctx context.Context, e models.AgentEvent) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}

// CallbackSink wraps a function as an EventSink.
type CallbackSink struct {
	fn func(ctx context.Context, e models.AgentEvent)
}

// NewCallbackSink creates a sink that calls fn for each event.
func NewCallbackSink(fn func(ctx context.Context, e models.AgentEvent)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

// Emit calls the wrapped function.
func (s *CallbackSink) Emit(ctx context.Context, e models.AgentEvent) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}

// NopSink discards all events. Used when a caller doesn't need the event
// stream (e.g. a one-shot CLI invocation that only wants the final answer).
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(ctx context.Context, e models.AgentEvent) {}
