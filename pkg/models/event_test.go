package models

import (
	"encoding/json"
	"testing"
)

func TestToolLimitEvent_NeverBlocks(t *testing.T) {
	e := ToolLimitEvent("web_search", "called web_search 4 times this query")
	if e.Type != EventToolLimit {
		t.Errorf("Type = %q, want %q", e.Type, EventToolLimit)
	}
	if e.Blocked {
		t.Error("ToolLimit events must never set Blocked; the scheduler only warns")
	}
}

func TestDoneEvent_CarriesToolCallSummary(t *testing.T) {
	calls := []CompletedToolCall{
		{Tool: "read_file", Args: json.RawMessage(`{"path":"a.go"}`), Result: "package main"},
	}
	e := DoneEvent("here is the answer", calls, 3)

	if e.Type != EventDone {
		t.Errorf("Type = %q, want %q", e.Type, EventDone)
	}
	if e.Answer != "here is the answer" {
		t.Errorf("Answer = %q, want %q", e.Answer, "here is the answer")
	}
	if len(e.ToolCalls) != 1 || e.ToolCalls[0].Tool != "read_file" {
		t.Errorf("ToolCalls = %+v, want one read_file call", e.ToolCalls)
	}
	if e.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", e.Iterations)
	}
}

func TestAgentEvent_JSONOmitsUnsetFields(t *testing.T) {
	e := Thinking("deciding what to do next")

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	for _, field := range []string{"tool", "result", "error", "answer", "tool_calls"} {
		if _, ok := m[field]; ok {
			t.Errorf("expected field %q to be omitted on a Thinking event", field)
		}
	}
	if m["message"] != "deciding what to do next" {
		t.Errorf("message = %v, want %q", m["message"], "deciding what to do next")
	}
}

func TestToolEndEvent_Fields(t *testing.T) {
	args := json.RawMessage(`{"query":"weather today"}`)
	e := ToolEndEvent("web_search", args, "sunny, 72F", 420)

	if e.Type != EventToolEnd {
		t.Errorf("Type = %q, want %q", e.Type, EventToolEnd)
	}
	if e.DurationMS != 420 {
		t.Errorf("DurationMS = %d, want 420", e.DurationMS)
	}
	if e.Result != "sunny, 72F" {
		t.Errorf("Result = %q, want %q", e.Result, "sunny, 72F")
	}
}
