package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dexterhq/dexter/pkg/models"
)

// queueModel is a ModelCapability test double that returns one queued
// GenerateResult per Generate call, in order.
type queueModel struct {
	results []*GenerateResult
	calls   int
}

func (m *queueModel) Generate(_ context.Context, _, _ string, _ []Tool) (*GenerateResult, error) {
	if m.calls >= len(m.results) {
		return &GenerateResult{Text: "done"}, nil
	}
	r := m.results[m.calls]
	m.calls++
	return r, nil
}

func (m *queueModel) GenerateStructured(_ context.Context, _, _ string, _ json.RawMessage, out any) error {
	target, ok := out.(*struct {
		Indices []int `json:"indices"`
	})
	if ok {
		target.Indices = nil
	}
	return nil
}

func (m *queueModel) Name() string { return "queue-model" }

// erroringModel always fails Generate, for the fatal-model-error path.
type erroringModel struct{}

func (erroringModel) Generate(_ context.Context, _, _ string, _ []Tool) (*GenerateResult, error) {
	return nil, errors.New("transport down")
}
func (erroringModel) GenerateStructured(_ context.Context, _, _ string, _ json.RawMessage, out any) error {
	return errors.New("transport down")
}
func (erroringModel) Name() string { return "erroring-model" }

// listTool is a deterministic test double for the scenarios in §8.
type listTool struct {
	result  string
	isError bool
}

func (t *listTool) Name() string            { return "list_tool" }
func (t *listTool) Description() string     { return "lists files" }
func (t *listTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t *listTool) Execute(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
	if t.isError {
		return &ToolResult{Content: t.result, IsError: true}, nil
	}
	return &ToolResult{Content: t.result}, nil
}

func newTestDriver(model ModelCapability, tool Tool) *Driver {
	registry := NewToolRegistry()
	registry.Register(tool)
	return NewDriver(model, model, registry, NewToolExecutor(registry, DefaultToolExecConfig()), nil, nil, nil, nil, nil, DriverConfig{})
}

func drain(t *testing.T, events <-chan models.AgentEvent, errs <-chan error) ([]models.AgentEvent, error) {
	t.Helper()
	var got []models.AgentEvent
	for ev := range events {
		got = append(got, ev)
	}
	return got, <-errs
}

func TestDriver_S1_GreetingNoToolsNeeded(t *testing.T) {
	model := &queueModel{results: []*GenerateResult{{Text: "Hi!"}}}
	driver := newTestDriver(model, &listTool{result: "a.txt"})

	events, errs := driver.Run(context.Background(), "hello", "")
	got, err := drain(t, events, errs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	want := []models.EventType{models.EventAnswerStart, models.EventDone}
	assertEventTypes(t, got, want)
	done := got[len(got)-1]
	if done.Answer != "Hi!" || done.Iterations != 1 || len(done.ToolCalls) != 0 {
		t.Errorf("done = %+v, want answer=Hi! iterations=1 no tool calls", done)
	}
}

func TestDriver_S2_SingleToolCallSuccess(t *testing.T) {
	model := &queueModel{results: []*GenerateResult{
		{ToolCalls: []ModelToolCall{{ID: "1", Name: "list_tool", Input: json.RawMessage(`{"path":"."}`)}}},
		{Text: "Here are the files."},
	}}
	driver := newTestDriver(model, &listTool{result: "a.txt\nb.txt"})

	events, errs := driver.Run(context.Background(), "list files", "")
	got, err := drain(t, events, errs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	want := []models.EventType{models.EventToolStart, models.EventToolEnd, models.EventAnswerStart, models.EventDone}
	assertEventTypes(t, got, want)

	done := got[len(got)-1]
	if done.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", done.Iterations)
	}
	if len(done.ToolCalls) != 1 || done.ToolCalls[0].Tool != "list_tool" || done.ToolCalls[0].Result != "a.txt\nb.txt" {
		t.Errorf("tool calls = %+v", done.ToolCalls)
	}

	toolEnd := got[1]
	if toolEnd.Result != "a.txt\nb.txt" || toolEnd.DurationMS < 0 {
		t.Errorf("tool end = %+v", toolEnd)
	}
}

func TestDriver_S3_SoftLimitWarning(t *testing.T) {
	call := ModelToolCall{ID: "1", Name: "list_tool", Input: json.RawMessage(`{"path":"."}`)}
	model := &queueModel{results: []*GenerateResult{
		{ToolCalls: []ModelToolCall{call}},
		{ToolCalls: []ModelToolCall{call}},
		{ToolCalls: []ModelToolCall{call}},
		{Text: "done listing"},
	}}
	driver := newTestDriver(model, &listTool{result: "a.txt"})

	events, errs := driver.Run(context.Background(), "list files", "")
	got, err := drain(t, events, errs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	limits := 0
	for _, ev := range got {
		if ev.Type == models.EventToolLimit {
			limits++
			if ev.Blocked {
				t.Errorf("tool limit event blocked=true, want false")
			}
		}
	}
	if limits == 0 {
		t.Error("expected at least one ToolLimit event by the third call")
	}
	if got[len(got)-1].Type != models.EventDone {
		t.Errorf("run did not terminate normally: last event = %+v", got[len(got)-1])
	}
}

func TestDriver_S4_ToolFailure(t *testing.T) {
	model := &queueModel{results: []*GenerateResult{
		{ToolCalls: []ModelToolCall{{ID: "1", Name: "list_tool", Input: json.RawMessage(`{"path":"."}`)}}},
		{Text: "could not list files"},
	}}
	driver := newTestDriver(model, &listTool{result: "permission denied", isError: true})

	events, errs := driver.Run(context.Background(), "list files", "")
	got, err := drain(t, events, errs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	var sawError bool
	for _, ev := range got {
		if ev.Type == models.EventToolError {
			sawError = true
			if ev.Error != "permission denied" {
				t.Errorf("tool error = %q, want %q", ev.Error, "permission denied")
			}
		}
	}
	if !sawError {
		t.Fatal("expected a ToolError event")
	}
	if got[len(got)-1].Type != models.EventDone {
		t.Errorf("run did not terminate normally")
	}
}

func TestDriver_S5_SkillDeduplication(t *testing.T) {
	call := ModelToolCall{ID: "1", Name: "skill", Input: json.RawMessage(`{"skill":"dcf"}`)}
	model := &queueModel{results: []*GenerateResult{
		{ToolCalls: []ModelToolCall{call}},
		{ToolCalls: []ModelToolCall{call}},
		{Text: "done"},
	}}
	skillTool := &fakeSkillTool{}
	driver := newTestDriver(model, skillTool)

	events, errs := driver.Run(context.Background(), "run dcf", "")
	got, err := drain(t, events, errs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	starts := 0
	for _, ev := range got {
		if ev.Type == models.EventToolStart && ev.Tool == "skill" {
			starts++
		}
	}
	if starts != 1 {
		t.Errorf("ToolStart(skill) count = %d, want 1", starts)
	}
}

type fakeSkillTool struct{}

func (fakeSkillTool) Name() string            { return "skill" }
func (fakeSkillTool) Description() string     { return "runs a skill" }
func (fakeSkillTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (fakeSkillTool) Execute(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "dcf instructions"}, nil
}

func TestDriver_S6_IterationCapReached(t *testing.T) {
	call := ModelToolCall{ID: "1", Name: "list_tool", Input: json.RawMessage(`{"path":"."}`)}
	model := &queueModel{results: []*GenerateResult{
		{ToolCalls: []ModelToolCall{call}},
		{ToolCalls: []ModelToolCall{call}},
	}}
	driver := newTestDriver(model, &listTool{result: "a.txt"})
	driver.config.MaxIterations = 2

	events, errs := driver.Run(context.Background(), "list files", "")
	got, err := drain(t, events, errs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	done := got[len(got)-1]
	if done.Type != models.EventDone || done.Iterations != 2 {
		t.Errorf("done = %+v, want iterations=2", done)
	}
	if got[len(got)-2].Type != models.EventAnswerStart {
		t.Errorf("expected AnswerStart immediately before Done")
	}
}

func TestDriver_ModelErrorIsFatal(t *testing.T) {
	driver := newTestDriver(erroringModel{}, &listTool{result: "a.txt"})

	events, errs := driver.Run(context.Background(), "hello", "")
	got, err := drain(t, events, errs)
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	for _, ev := range got {
		if ev.Type == models.EventDone {
			t.Error("no Done event should be emitted on a fatal model error")
		}
	}
}

func TestDriver_NoToolsRegistered(t *testing.T) {
	driver := NewDriver(&queueModel{}, nil, NewToolRegistry(), nil, nil, nil, nil, nil, nil, DriverConfig{})
	events, errs := driver.Run(context.Background(), "hello", "")
	got, err := drain(t, events, errs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(got) != 1 || got[0].Type != models.EventDone || got[0].Answer != "no tools available" {
		t.Errorf("got %+v, want single Done(no tools available)", got)
	}
}

func assertEventTypes(t *testing.T, got []models.AgentEvent, want []models.EventType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d events %+v, want %d of type %v", len(got), got, len(want), want)
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("event %d type = %q, want %q", i, got[i].Type, w)
		}
	}
}
