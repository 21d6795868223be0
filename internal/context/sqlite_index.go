package context

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteIndex persists every saved Pointer into a local SQLite database
// alongside the per-record JSON files Store.Save already writes. A Store
// works fine without one — Pointers() falls back to the in-memory list for
// the current process — but wiring an index lets select_relevant_contexts
// run over pointers saved in a prior process, not just the current run.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (creating if necessary) a SQLite database at
// filepath.Join(baseDir, "index.db") and ensures its schema exists.
func NewSQLiteIndex(baseDir string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("context: create base dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(baseDir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("context: open sqlite index: %w", err)
	}
	idx := &SQLiteIndex{db: db}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteIndex) init() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS pointers (
			filepath          TEXT PRIMARY KEY,
			filename          TEXT NOT NULL,
			tool_name         TEXT NOT NULL,
			args              TEXT NOT NULL,
			tool_description  TEXT NOT NULL,
			task_id           TEXT,
			query_id          TEXT,
			source_urls       TEXT,
			created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("context: create pointers table: %w", err)
	}
	if _, err := idx.db.Exec(`CREATE INDEX IF NOT EXISTS idx_pointers_tool ON pointers(tool_name)`); err != nil {
		return fmt.Errorf("context: create tool_name index: %w", err)
	}
	return nil
}

// Record upserts ptr into the index, keyed by its file path.
func (idx *SQLiteIndex) Record(ptr Pointer) error {
	urls, err := json.Marshal(ptr.SourceURLs)
	if err != nil {
		return fmt.Errorf("context: encode source urls: %w", err)
	}
	_, err = idx.db.Exec(`
		INSERT INTO pointers (filepath, filename, tool_name, args, tool_description, task_id, query_id, source_urls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filepath) DO UPDATE SET
			tool_description = excluded.tool_description,
			args             = excluded.args,
			task_id          = excluded.task_id,
			query_id         = excluded.query_id,
			source_urls      = excluded.source_urls
	`, ptr.FilePath, ptr.Filename, ptr.ToolName, ptr.Args, ptr.ToolDescription, ptr.TaskID, ptr.QueryID, string(urls))
	if err != nil {
		return fmt.Errorf("context: upsert pointer: %w", err)
	}
	return nil
}

// Pointers returns every pointer ever recorded in the index, across process
// restarts, ordered by insertion time.
func (idx *SQLiteIndex) Pointers() ([]Pointer, error) {
	rows, err := idx.db.Query(`
		SELECT filepath, filename, tool_name, args, tool_description, task_id, query_id, source_urls
		FROM pointers ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("context: query pointers: %w", err)
	}
	defer rows.Close()

	var out []Pointer
	for rows.Next() {
		var p Pointer
		var urls string
		if err := rows.Scan(&p.FilePath, &p.Filename, &p.ToolName, &p.Args, &p.ToolDescription, &p.TaskID, &p.QueryID, &urls); err != nil {
			return nil, fmt.Errorf("context: scan pointer: %w", err)
		}
		_ = json.Unmarshal([]byte(urls), &p.SourceURLs)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}
