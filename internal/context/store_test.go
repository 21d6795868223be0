package context

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHashArgs_OrderIndependent(t *testing.T) {
	a, err := HashArgs(json.RawMessage(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("HashArgs error: %v", err)
	}
	b, err := HashArgs(json.RawMessage(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("HashArgs error: %v", err)
	}
	if a != b {
		t.Errorf("HashArgs differed by key order: %q vs %q", a, b)
	}
	if len(a) != 12 {
		t.Errorf("HashArgs length = %d, want 12", len(a))
	}
}

func TestToolDescription(t *testing.T) {
	args := json.RawMessage(`{"query":"weather","units":"metric"}`)
	got := ToolDescription("web_search", args)
	if got != "weather [units=metric]" {
		t.Errorf("ToolDescription = %q, want %q", got, "weather [units=metric]")
	}
}

func TestToolDescription_DateRange(t *testing.T) {
	args := json.RawMessage(`{"query":"sales","start_date":"2026-01-01","end_date":"2026-01-31"}`)
	got := ToolDescription("report", args)
	if got != "sales from 2026-01-01 to 2026-01-31" {
		t.Errorf("ToolDescription = %q, want date range appended", got)
	}
}

func TestStore_SaveAndSourceURLExtraction(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	result := `{"data":"sunny","source_urls":["https://example.com/a","https://example.com/b"]}`
	ptr, err := store.Save("web_search", json.RawMessage(`{"query":"weather"}`), result, "", "q1", "2026-07-30T00:00:00Z")
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(ptr.SourceURLs) != 2 {
		t.Errorf("SourceURLs = %v, want 2 entries", ptr.SourceURLs)
	}
	if _, err := os.Stat(filepath.Join(dir, ptr.Filename)); err != nil {
		t.Errorf("expected record file on disk: %v", err)
	}

	var rec record
	data, err := os.ReadFile(ptr.FilePath)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Result != "sunny" {
		t.Errorf("Result = %v, want %q (extracted from data)", rec.Result, "sunny")
	}
}

func TestStore_SaveIsIdempotentPerArgs(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	args := json.RawMessage(`{"query":"x"}`)

	p1, err := store.Save("tool", args, "first", "", "", "")
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	p2, err := store.Save("tool", args, "second", "", "", "")
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if p1.FilePath != p2.FilePath {
		t.Errorf("expected same file path for same (tool, args), got %q and %q", p1.FilePath, p2.FilePath)
	}

	data, err := os.ReadFile(p2.FilePath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Result != "second" {
		t.Errorf("Result = %v, want the latest save to have replaced the file", rec.Result)
	}
}

type stubGenerator struct {
	indices []int
	err     error
}

func (s stubGenerator) GenerateStructured(system, prompt string, schema json.RawMessage, out any) error {
	if s.err != nil {
		return s.err
	}
	dst := out.(*struct {
		Indices []int `json:"indices"`
	})
	dst.Indices = s.indices
	return nil
}

func TestSelectRelevantContexts_FallsBackOnError(t *testing.T) {
	pointers := []Pointer{{FilePath: "a.json"}, {FilePath: "b.json"}}
	paths := SelectRelevantContexts(stubGenerator{err: errors.New("boom")}, "q", pointers)
	if len(paths) != 2 {
		t.Errorf("expected fallback to all paths, got %v", paths)
	}
}

func TestSelectRelevantContexts_FiltersByIndex(t *testing.T) {
	pointers := []Pointer{{FilePath: "a.json"}, {FilePath: "b.json"}}
	paths := SelectRelevantContexts(stubGenerator{indices: []int{1}}, "q", pointers)
	if len(paths) != 1 || paths[0] != "b.json" {
		t.Errorf("paths = %v, want [b.json]", paths)
	}
}
