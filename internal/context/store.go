// Package context implements the Tool-Context Store (C2): one JSON file
// per (tool_name, args) pair, used to cache tool results across a run and
// to let a later selector step pull only the pointers relevant to a new
// query.
package context

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Pointer is an in-memory reference to a saved tool-context record,
// returned by Save and accumulated for select_relevant_contexts.
type Pointer struct {
	FilePath        string   `json:"filepath"`
	Filename        string   `json:"filename"`
	ToolName        string   `json:"tool_name"`
	Args            string   `json:"args"`
	ToolDescription string   `json:"tool_description"`
	TaskID          string   `json:"task_id,omitempty"`
	QueryID         string   `json:"query_id,omitempty"`
	SourceURLs      []string `json:"source_urls,omitempty"`
}

// record is the on-disk shape of one tool-context file.
type record struct {
	ToolName        string   `json:"tool_name"`
	ToolDescription string   `json:"tool_description"`
	Args            string   `json:"args"`
	TimestampUTC    string   `json:"timestamp_utc"`
	TaskID          string   `json:"task_id,omitempty"`
	QueryID         string   `json:"query_id,omitempty"`
	SourceURLs      []string `json:"source_urls,omitempty"`
	Result          any      `json:"result"`
}

// Store persists tool-context records to baseDir and keeps an in-memory
// list of pointers for the lifetime of the process.
type Store struct {
	baseDir string
	index   *SQLiteIndex

	mu       sync.Mutex
	pointers []Pointer
}

// NewStore creates a Store rooted at baseDir with no SQLite index; Pointers
// only sees what this process has saved.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// NewStoreWithIndex creates a Store rooted at baseDir backed by a
// SQLiteIndex at baseDir/index.db, so Pointers survives process restarts.
func NewStoreWithIndex(baseDir string) (*Store, error) {
	idx, err := NewSQLiteIndex(baseDir)
	if err != nil {
		return nil, err
	}
	return &Store{baseDir: baseDir, index: idx}, nil
}

// Close releases the SQLite index, if one was opened. Safe to call on a
// Store created with NewStore.
func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

// HashArgs returns the 12-char MD5 digest of the canonical (sorted-keys,
// compact) JSON encoding of args, used as both the filename suffix and as
// QueryId when called on a bare query string.
func HashArgs(args json.RawMessage) (string, error) {
	canonical, err := canonicalizeJSON(args)
	if err != nil {
		return "", err
	}
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])[:12], nil
}

// HashQuery returns the 12-char digest for a bare query string, using the
// same algorithm as HashArgs so a query_id and an args hash are computed
// identically.
func HashQuery(query string) (string, error) {
	sum := md5.Sum([]byte(query))
	return hex.EncodeToString(sum[:])[:12], nil
}

func canonicalizeJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("context: decode args: %w", err)
	}
	canonical, err := marshalSorted(v)
	if err != nil {
		return "", err
	}
	return canonical, nil
}

// marshalSorted marshals v with object keys sorted, recursively, so that
// two semantically equal argument sets always hash to the same filename.
func marshalSorted(v any) (string, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			vs, err := marshalSorted(val[k])
			if err != nil {
				return "", err
			}
			b.WriteString(vs)
		}
		b.WriteByte('}')
		return b.String(), nil
	case []any:
		var b strings.Builder
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			vs, err := marshalSorted(item)
			if err != nil {
				return "", err
			}
			b.WriteString(vs)
		}
		b.WriteByte(']')
		return b.String(), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// ToolDescription formats a human-readable label for (tool_name, args): if
// args has a "query" key, start with its value; if it has "start_date" and
// "end_date", append "from X to Y"; append any remaining keys as
// "[k=v, ...]".
func ToolDescription(toolName string, args json.RawMessage) string {
	var m map[string]any
	_ = json.Unmarshal(args, &m)

	var parts []string
	if q, ok := m["query"].(string); ok && q != "" {
		parts = append(parts, q)
		delete(m, "query")
	} else {
		parts = append(parts, toolName)
	}

	if start, ok := m["start_date"].(string); ok {
		if end, ok := m["end_date"].(string); ok {
			parts = append(parts, fmt.Sprintf("from %s to %s", start, end))
			delete(m, "start_date")
			delete(m, "end_date")
		}
	}

	if len(m) > 0 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, m[k]))
		}
		parts = append(parts, "["+strings.Join(kv, ", ")+"]")
	}

	return strings.Join(parts, " ")
}

// Save persists one tool-context record for (toolName, args). If result is
// a JSON string containing a top-level "source_urls" array, the array is
// extracted into the pointer and record, and the record's result becomes
// the decoded "data" field (or the full decoded object when there is no
// "data" key). The record is written exactly once per (tool_name, args);
// re-saving replaces the file atomically via a temp-file rename.
func (s *Store) Save(toolName string, args json.RawMessage, result string, taskID, queryID, timestampUTC string) (Pointer, error) {
	hash, err := HashArgs(args)
	if err != nil {
		return Pointer{}, err
	}
	filename := fmt.Sprintf("%s_%s.json", toolName, hash)
	path := filepath.Join(s.baseDir, filename)

	var sourceURLs []string
	var payload any = result
	if decoded, urls, ok := extractSourceURLs(result); ok {
		sourceURLs = urls
		payload = decoded
	}

	rec := record{
		ToolName:        toolName,
		ToolDescription: ToolDescription(toolName, args),
		Args:            string(args),
		TimestampUTC:    timestampUTC,
		TaskID:          taskID,
		QueryID:         queryID,
		SourceURLs:      sourceURLs,
		Result:          payload,
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return Pointer{}, fmt.Errorf("context: create base dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Pointer{}, fmt.Errorf("context: encode record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Pointer{}, fmt.Errorf("context: write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return Pointer{}, fmt.Errorf("context: replace record: %w", err)
	}

	ptr := Pointer{
		FilePath:        path,
		Filename:        filename,
		ToolName:        toolName,
		Args:            string(args),
		ToolDescription: rec.ToolDescription,
		TaskID:          taskID,
		QueryID:         queryID,
		SourceURLs:      sourceURLs,
	}
	s.mu.Lock()
	s.pointers = append(s.pointers, ptr)
	s.mu.Unlock()

	if s.index != nil {
		if err := s.index.Record(ptr); err != nil {
			return ptr, err
		}
	}
	return ptr, nil
}

// extractSourceURLs reports whether result is a JSON object/string
// containing a top-level "source_urls" array, returning the decoded
// "data" field (or the whole object, sans source_urls, if there is no
// "data" key) and the extracted URLs.
func extractSourceURLs(result string) (any, []string, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(result), &m); err != nil {
		return nil, nil, false
	}
	raw, ok := m["source_urls"]
	if !ok {
		return nil, nil, false
	}
	rawList, ok := raw.([]any)
	if !ok {
		return nil, nil, false
	}
	urls := make([]string, 0, len(rawList))
	for _, u := range rawList {
		if s, ok := u.(string); ok {
			urls = append(urls, s)
		}
	}
	if data, ok := m["data"]; ok {
		return data, urls, true
	}
	delete(m, "source_urls")
	return m, urls, true
}

// Pointers returns every known pointer: from the SQLite index if one is
// wired (surviving process restarts), or from this process's in-memory
// list otherwise.
func (s *Store) Pointers() []Pointer {
	if s.index != nil {
		if fromIndex, err := s.index.Pointers(); err == nil {
			return fromIndex
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pointer, len(s.pointers))
	copy(out, s.pointers)
	return out
}

// StructuredGenerator is the minimal seam select_relevant_contexts needs
// from a model capability, kept local to this package to avoid an import
// cycle with the agent package that wires the concrete adapter in.
type StructuredGenerator interface {
	GenerateStructured(system, prompt string, schema json.RawMessage, out any) error
}

var selectorSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"indices": {"type": "array", "items": {"type": "integer"}}},
	"required": ["indices"]
}`)

// SelectRelevantContexts asks gen to choose, from pointers, the ones
// relevant to query, identified by their index in the slice, and returns
// the corresponding file paths. On any failure (transport, invalid JSON),
// it falls back to returning every pointer's file path.
func SelectRelevantContexts(gen StructuredGenerator, query string, pointers []Pointer) []string {
	all := make([]string, len(pointers))
	for i, p := range pointers {
		all[i] = p.FilePath
	}
	if gen == nil || len(pointers) == 0 {
		return all
	}

	var listing strings.Builder
	for i, p := range pointers {
		fmt.Fprintf(&listing, "%d: %s\n", i, p.ToolDescription)
	}
	prompt := fmt.Sprintf("Query: %s\n\nCandidate contexts:\n%s\nReturn the indices relevant to the query.", query, listing.String())

	var out struct {
		Indices []int `json:"indices"`
	}
	if err := gen.GenerateStructured("You select which prior tool results are relevant to a query.", prompt, selectorSchema, &out); err != nil {
		return all
	}

	paths := make([]string, 0, len(out.Indices))
	for _, idx := range out.Indices {
		if idx >= 0 && idx < len(pointers) {
			paths = append(paths, pointers[idx].FilePath)
		}
	}
	if len(paths) == 0 {
		return all
	}
	return paths
}
