package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dexterhq/dexter/pkg/models"
)

// FileStore is the default Memory Store (C3) backend: a lazily-loaded
// index.json in baseDir, with optional files/*.md sidecars synced in by
// SyncFromFiles.
type FileStore struct {
	baseDir string

	mu      sync.Mutex
	loaded  bool
	entries []models.MemoryEntry

	now func() time.Time
}

// NewFileStore creates a FileStore rooted at baseDir. The index is read on
// first use, not here.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir, now: time.Now}
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.baseDir, "index.json")
}

func (s *FileStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = nil
			s.loaded = true
			return nil
		}
		return fmt.Errorf("memory: read index: %w", err)
	}
	var entries []models.MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("memory: decode index: %w", err)
	}
	s.entries = entries
	s.loaded = true
	return nil
}

func (s *FileStore) persist() error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("memory: create base dir: %w", err)
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode index: %w", err)
	}
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memory: write index: %w", err)
	}
	return os.Rename(tmp, s.indexPath())
}

// Add generates an id and appends a new entry, persisting the index.
func (s *FileStore) Add(content string, source models.MemorySource, tags []string) (models.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return models.MemoryEntry{}, err
	}

	now := s.now()
	id, err := newEntryID(now)
	if err != nil {
		return models.MemoryEntry{}, err
	}
	entry := models.MemoryEntry{
		ID:          id,
		Content:     content,
		Source:      source,
		Tags:        tags,
		CreatedAtMS: now.UnixMilli(),
	}
	s.entries = append(s.entries, entry)
	if err := s.persist(); err != nil {
		return models.MemoryEntry{}, err
	}
	return entry, nil
}

// Search scores every entry against query and returns the top limit
// results per the shared keyword + tag-bonus + recency-decay algorithm.
func (s *FileStore) Search(query string, limit int) ([]models.MemorySearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	terms := queryTerms(query)
	return rankResults(s.entries, terms, s.now(), limit), nil
}

// SyncFromFiles scans baseDir/files/*.md and upserts one entry per file,
// tagged "file:<basename>", keyed by that tag so re-syncing a changed file
// updates rather than duplicates its entry.
func (s *FileStore) SyncFromFiles() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	dir := filepath.Join(s.baseDir, "files")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("memory: read files dir: %w", err)
	}

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return fmt.Errorf("memory: read %s: %w", de.Name(), err)
		}
		fileTag := "file:" + strings.TrimSuffix(de.Name(), ".md")
		s.upsertByTag(fileTag, string(data))
	}
	return s.persist()
}

func (s *FileStore) upsertByTag(fileTag, content string) {
	for i, e := range s.entries {
		for _, t := range e.Tags {
			if t == fileTag {
				s.entries[i].Content = content
				return
			}
		}
	}
	now := s.now()
	id, err := newEntryID(now)
	if err != nil {
		return
	}
	s.entries = append(s.entries, models.MemoryEntry{
		ID:          id,
		Content:     content,
		Source:      models.MemorySourceSystem,
		Tags:        []string{fileTag},
		CreatedAtMS: now.UnixMilli(),
	})
}

// All returns a snapshot of every stored entry.
func (s *FileStore) All() []models.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil
	}
	out := make([]models.MemoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
