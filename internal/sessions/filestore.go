package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dexterhq/dexter/pkg/models"
)

// FileStore is the default Session Store (C1) backend: one JSONL file per
// session key under BaseDir, with an in-memory cache that serves Load/Get
// without re-reading the file once it has been loaded once this process.
type FileStore struct {
	baseDir string

	mu    sync.RWMutex
	cache map[string][]models.Message

	locks *SessionLockManager
}

// NewFileStore creates a FileStore rooted at baseDir. The directory is
// created lazily on first Append, not here.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{
		baseDir: baseDir,
		cache:   make(map[string][]models.Message),
		locks:   NewSessionLockManager(0),
	}
}

var legacyCharPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (s *FileStore) currentPath(key string) string {
	return filepath.Join(s.baseDir, url.PathEscape(key)+".jsonl")
}

func (s *FileStore) legacyPath(key string) string {
	return filepath.Join(s.baseDir, legacyCharPattern.ReplaceAllString(key, "_")+".jsonl")
}

// Load returns key's full history: the cache when present, otherwise reads
// the current-path JSONL file, falling back to a legacy path (session keys
// written before URL-encoding was introduced) on file-not-found, and
// finally an empty history for a brand-new key.
func (s *FileStore) Load(ctx context.Context, key string) ([]models.Message, error) {
	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		defer s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	msgs, err := readJSONL(s.currentPath(key))
	if os.IsNotExist(err) {
		msgs, err = readJSONL(s.legacyPath(key))
		if os.IsNotExist(err) {
			msgs, err = nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: load %q: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = msgs
	s.mu.Unlock()
	return msgs, nil
}

func readJSONL(path string) ([]models.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []models.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("decode line: %w", err)
		}
		out = append(out, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Append adds msg to key's history: the cache is updated first, then one
// JSON line is appended to disk under a per-key write lock. A disk failure
// here is reported to the caller as fatal (PersistenceSessionAppend is the
// caller's concern; FileStore just returns the underlying error).
func (s *FileStore) Append(ctx context.Context, key string, msg models.Message) error {
	release, err := s.locks.Acquire(ctx, key, "filestore", 0)
	if err != nil {
		return fmt.Errorf("sessions: acquire write lock for %q: %w", key, err)
	}
	defer release()

	if _, ok := s.cache[key]; !ok {
		if _, err := s.Load(ctx, key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cache[key] = append(s.cache[key], msg)
	s.mu.Unlock()

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("sessions: create base dir: %w", err)
	}

	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sessions: encode message: %w", err)
	}

	f, err := os.OpenFile(s.currentPath(key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sessions: open session file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("sessions: append message: %w", err)
	}
	return nil
}

// Get is the synchronous cache-only read required by the iteration driver's
// preflight step; it never touches disk and returns an empty slice for an
// unseen key.
func (s *FileStore) Get(key string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[key]
}

// Clear drops key from the cache and deletes both its current and legacy
// files, ignoring not-exist errors.
func (s *FileStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	for _, p := range []string{s.currentPath(key), s.legacyPath(key)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("sessions: clear %q: %w", key, err)
		}
	}
	return nil
}

// ListSessions returns the URL-decoded stems of every *.jsonl file under
// BaseDir.
func (s *FileStore) ListSessions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessions: list: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".jsonl")
		if decoded, err := url.PathUnescape(stem); err == nil {
			keys = append(keys, decoded)
		} else {
			keys = append(keys, stem)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
