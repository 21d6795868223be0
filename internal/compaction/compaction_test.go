package compaction

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short", "Hello", 2},          // 5 chars / 4 -> ceil 2
		{"exact multiple", "12345678", 2}, // 8 / 4 = 2
		{"nine chars", "123456789", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestFilterErrors(t *testing.T) {
	entries := []Entry{
		{Tool: "a", Result: "Error: boom"},
		{Tool: "b", Result: "fine"},
		{Tool: "c", Result: "Error: also boom"},
	}
	got := FilterErrors(entries)
	if len(got) != 1 || got[0].Tool != "b" {
		t.Fatalf("FilterErrors = %+v, want only entry b", got)
	}
}

func TestBuildFinalContext_AllErrorsReturnsNoData(t *testing.T) {
	entries := []Entry{{Tool: "a", Result: "Error: boom"}}
	got := BuildFinalContext(entries, "query", nil)
	if got != NoDataMessage {
		t.Errorf("got %q, want %q", got, NoDataMessage)
	}
}

func TestBuildFinalContext_FitsBudgetRendersFull(t *testing.T) {
	entries := []Entry{
		{Tool: "search", Description: "search(query=cats)", Result: "cats are great"},
		{Tool: "read_file", Description: "read_file(path=a.txt)", Result: `{"a":1}`},
	}
	got := BuildFinalContext(entries, "tell me about cats", nil)
	if !strings.Contains(got, "### search(query=cats)") {
		t.Errorf("missing search header: %q", got)
	}
	if !strings.Contains(got, "cats are great") {
		t.Errorf("missing full result text: %q", got)
	}
	if !strings.Contains(got, "\"a\": 1") {
		t.Errorf("expected pretty-printed JSON, got %q", got)
	}
}

type stubSelector struct {
	indices []int
	err     error
}

func (s stubSelector) GenerateStructured(_ string, _ string, _ json.RawMessage, out any) error {
	if s.err != nil {
		return s.err
	}
	target, ok := out.(*struct {
		Indices []int `json:"indices"`
	})
	if !ok {
		return errors.New("unexpected out type")
	}
	target.Indices = s.indices
	return nil
}

func bigEntry(tool string, n int) Entry {
	return Entry{Tool: tool, Description: tool + "()", Result: strings.Repeat("x", n), Summary: tool + " summary"}
}

func TestBuildFinalContext_OverBudgetSplitsFullAndSummary(t *testing.T) {
	entries := []Entry{
		bigEntry("a", TokenBudget*CharsPerToken), // alone already at budget
		bigEntry("b", TokenBudget*CharsPerToken),
		bigEntry("c", TokenBudget*CharsPerToken),
	}
	selector := stubSelector{indices: []int{0}}

	got := BuildFinalContext(entries, "query", selector)
	if !strings.Contains(got, "## Full Data") {
		t.Errorf("expected a Full Data section, got %q", got)
	}
	if !strings.Contains(got, "## Summary Data") {
		t.Errorf("expected a Summary Data section, got %q", got)
	}
	if !strings.Contains(got, "b summary") || !strings.Contains(got, "c summary") {
		t.Errorf("expected non-selected entries rendered as summaries, got %q", got)
	}
	fullIdx := strings.Index(got, "## Full Data")
	summaryIdx := strings.Index(got, "## Summary Data")
	if fullIdx == -1 || summaryIdx == -1 || fullIdx > summaryIdx {
		t.Errorf("expected Full Data section before Summary Data section")
	}
}

func TestBuildFinalContext_SelectorErrorFallsBackToSummaries(t *testing.T) {
	entries := []Entry{
		bigEntry("a", TokenBudget*CharsPerToken),
		bigEntry("b", TokenBudget*CharsPerToken),
	}
	selector := stubSelector{err: errors.New("network down")}

	got := BuildFinalContext(entries, "query", selector)
	if strings.Contains(got, "## Full Data") {
		t.Errorf("did not expect a Full Data section on selector failure, got %q", got)
	}
	if !strings.Contains(got, "a summary") || !strings.Contains(got, "b summary") {
		t.Errorf("expected both entries summarized, got %q", got)
	}
}

func TestBuildFinalContext_NilSelectorFallsBackToSummaries(t *testing.T) {
	entries := []Entry{bigEntry("a", TokenBudget*CharsPerToken), bigEntry("b", TokenBudget*CharsPerToken)}
	got := BuildFinalContext(entries, "query", nil)
	if strings.Contains(got, "## Full Data") {
		t.Errorf("expected summaries-only fallback with nil selector, got %q", got)
	}
}
