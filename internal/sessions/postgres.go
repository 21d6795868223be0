package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/dexterhq/dexter/pkg/models"
)

// PostgresStore is the alternate Session Store (C1) backend for
// deployments that already run Postgres for other state. It satisfies the
// same Store interface and the same cache-then-disk-write order as
// FileStore: Append updates the in-memory cache before committing the
// transaction, so a concurrent Load observes the new message either way.
type PostgresStore struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string][]models.Message

	appendStmt *sql.Stmt
	loadStmt   *sql.Stmt
}

// NewPostgresStore opens dsn and prepares the statements Append/Load reuse
// across calls. Callers are responsible for having applied the
// sessions/messages schema migration beforehand.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessions: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: ping postgres: %w", err)
	}

	appendStmt, err := db.PrepareContext(ctx, `
		INSERT INTO session_messages (session_key, role, content, timestamp_ms)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: prepare append: %w", err)
	}

	loadStmt, err := db.PrepareContext(ctx, `
		SELECT role, content, timestamp_ms FROM session_messages
		WHERE session_key = $1 ORDER BY id ASC`)
	if err != nil {
		appendStmt.Close()
		db.Close()
		return nil, fmt.Errorf("sessions: prepare load: %w", err)
	}

	return &PostgresStore{
		db:         db,
		cache:      make(map[string][]models.Message),
		appendStmt: appendStmt,
		loadStmt:   loadStmt,
	}, nil
}

// Close releases the underlying connection pool and prepared statements.
func (s *PostgresStore) Close() error {
	s.appendStmt.Close()
	s.loadStmt.Close()
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]models.Message, error) {
	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		defer s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	rows, err := s.loadStmt.QueryContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sessions: load %q: %w", key, err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var role string
		var contentJSON []byte
		var ts int64
		if err := rows.Scan(&role, &contentJSON, &ts); err != nil {
			return nil, fmt.Errorf("sessions: scan row for %q: %w", key, err)
		}
		var content models.MessageContent
		if err := json.Unmarshal(contentJSON, &content); err != nil {
			return nil, fmt.Errorf("sessions: decode content for %q: %w", key, err)
		}
		msgs = append(msgs, models.Message{Role: models.Role(role), Content: content, TimestampMS: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions: iterate rows for %q: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = msgs
	s.mu.Unlock()
	return msgs, nil
}

// Append updates the in-memory cache, then commits a single-statement
// transaction inserting the message row, mirroring the file backend's
// cache-then-disk order.
func (s *PostgresStore) Append(ctx context.Context, key string, msg models.Message) error {
	if _, ok := s.cache[key]; !ok {
		if _, err := s.Load(ctx, key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cache[key] = append(s.cache[key], msg)
	s.mu.Unlock()

	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("sessions: encode content: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sessions: begin append tx: %w", err)
	}
	if _, err := tx.StmtContext(ctx, s.appendStmt).ExecContext(ctx, key, string(msg.Role), contentJSON, msg.TimestampMS); err != nil {
		tx.Rollback()
		return fmt.Errorf("sessions: append message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sessions: commit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(key string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[key]
}

func (s *PostgresStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_messages WHERE session_key = $1`, key); err != nil {
		return fmt.Errorf("sessions: clear %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_key FROM session_messages ORDER BY session_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("sessions: list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sessions: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
