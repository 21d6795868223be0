package agent

import (
	"context"
	"testing"

	"github.com/dexterhq/dexter/pkg/models"
)

func TestEventEmitter_NilSinkBecomesNop(t *testing.T) {
	e := NewEventEmitter(nil)
	e.Thinking(context.Background(), "hi") // must not panic
}

func TestEventEmitter_EmitsExpectedSequence(t *testing.T) {
	ch := make(chan models.AgentEvent, 16)
	e := NewEventEmitter(NewChanSink(ch))
	ctx := context.Background()

	e.ToolStart(ctx, "list_tool", []byte(`{"path":"."}`))
	e.ToolEnd(ctx, "list_tool", []byte(`{"path":"."}`), "a.txt\nb.txt", 5)
	e.AnswerStart(ctx)
	e.Done(ctx, "done", []models.CompletedToolCall{{Tool: "list_tool", Result: "a.txt\nb.txt"}}, 2)
	close(ch)

	var got []models.AgentEvent
	for ev := range ch {
		got = append(got, ev)
	}

	want := []models.EventType{
		models.EventToolStart,
		models.EventToolEnd,
		models.EventAnswerStart,
		models.EventDone,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("event %d type = %q, want %q", i, got[i].Type, w)
		}
	}
	if got[3].Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", got[3].Iterations)
	}
}

func TestEventEmitter_ToolErrorAndLimit(t *testing.T) {
	ch := make(chan models.AgentEvent, 4)
	e := NewEventEmitter(NewChanSink(ch))
	ctx := context.Background()

	e.ToolLimit(ctx, "search", "search called 3 times")
	e.ToolError(ctx, "search", "permission denied")
	close(ch)

	limit := <-ch
	if limit.Type != models.EventToolLimit || limit.Blocked {
		t.Errorf("limit event = %+v, want Blocked=false", limit)
	}
	errEvt := <-ch
	if errEvt.Type != models.EventToolError || errEvt.Error != "permission denied" {
		t.Errorf("error event = %+v", errEvt)
	}
}
