package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dexterhq/dexter/pkg/models"
)

func TestFileStore_AddAndSearch(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	if _, err := s.Add("the deploy pipeline uses blue-green rollouts", models.MemorySourceAgent, []string{"qa"}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if _, err := s.Add("unrelated note about lunch", models.MemorySourceUser, nil); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	results, err := s.Search("deploy pipeline", 5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Entry.Content == "" {
		t.Error("expected non-empty content")
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	s1 := NewFileStore(dir)
	entry, err := s1.Add("persisted fact", models.MemorySourceSystem, nil)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}

	s2 := NewFileStore(dir)
	all := s2.All()
	if len(all) != 1 || all[0].ID != entry.ID {
		t.Fatalf("All() = %+v, want one entry with id %q", all, entry.ID)
	}
}

func TestFileStore_SyncFromFiles(t *testing.T) {
	dir := t.TempDir()
	filesDir := filepath.Join(dir, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(filesDir, "runbook.md"), []byte("restart the worker pool first"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(dir)
	if err := s.SyncFromFiles(); err != nil {
		t.Fatalf("SyncFromFiles error: %v", err)
	}

	all := s.All()
	if len(all) != 1 {
		t.Fatalf("All() = %d entries, want 1", len(all))
	}
	if all[0].Tags[0] != "file:runbook" {
		t.Errorf("Tags = %v, want [file:runbook]", all[0].Tags)
	}

	// Re-sync with changed content should update, not duplicate.
	if err := os.WriteFile(filepath.Join(filesDir, "runbook.md"), []byte("restart the worker pool, then flush caches"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.SyncFromFiles(); err != nil {
		t.Fatalf("SyncFromFiles error: %v", err)
	}
	all = s.All()
	if len(all) != 1 {
		t.Fatalf("All() after re-sync = %d entries, want 1", len(all))
	}
	if all[0].Content != "restart the worker pool, then flush caches" {
		t.Errorf("Content = %q, want updated content", all[0].Content)
	}
}

func TestFileStore_SyncFromFiles_MissingDirIsNotError(t *testing.T) {
	s := NewFileStore(t.TempDir())
	if err := s.SyncFromFiles(); err != nil {
		t.Errorf("SyncFromFiles with no files dir should be a no-op, got %v", err)
	}
}

func TestFileStore_SearchRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	for i := 0; i < 10; i++ {
		if _, err := s.Add("keyword match entry", models.MemorySourceAgent, nil); err != nil {
			t.Fatal(err)
		}
	}
	results, err := s.Search("keyword", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("results = %d, want 3", len(results))
	}
}

func TestFileStore_RecencyAffectsOrdering(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if _, err := s.Add("old incident report", models.MemorySourceAgent, nil); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(29 * 24 * time.Hour) }
	if _, err := s.Add("fresh incident report", models.MemorySourceAgent, nil); err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return base.Add(29 * 24 * time.Hour) }
	results, err := s.Search("incident report", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Entry.Content != "fresh incident report" {
		t.Errorf("expected fresher entry ranked first, got %q", results[0].Entry.Content)
	}
}
