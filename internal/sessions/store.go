package sessions

import (
	"context"
	"fmt"

	"github.com/dexterhq/dexter/pkg/models"
)

// Store is the Session Store (C1) interface: an append-only message log
// keyed by normalised session key. Implementations must satisfy the
// observable-immediately/durable-on-restart invariant: a message appended
// during a run is visible to Load from the in-memory cache immediately, and
// from disk (or the backing database) on the next process start.
type Store interface {
	// Load returns a session's full message history: the in-memory cache
	// when present, otherwise the durable backend.
	Load(ctx context.Context, key string) ([]models.Message, error)

	// Append adds one message to key's history, updating the cache first
	// and then the durable backend. A backend failure here is fatal to the
	// run (PersistenceSessionAppend).
	Append(ctx context.Context, key string, msg models.Message) error

	// Get is the synchronous, cache-only read: returns an empty slice when
	// key has no cached history (no backend access, no error).
	Get(key string) []models.Message

	// Clear drops key's cache entry and removes its durable history.
	Clear(ctx context.Context, key string) error

	// ListSessions returns every known session key.
	ListSessions(ctx context.Context) ([]string, error)
}

// Backend selects which Store implementation SessionStoreConfig wires up.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendPostgres Backend = "postgres"
)

// Config configures Store construction.
type Config struct {
	Backend Backend

	// BaseDir is the file backend's session directory.
	BaseDir string

	// DSN is the postgres backend's connection string.
	DSN string
}

// Open constructs the Store selected by cfg.Backend. BackendFile is the
// default when Backend is empty.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	case BackendFile, "":
		return NewFileStore(cfg.BaseDir), nil
	default:
		return nil, fmt.Errorf("sessions: unknown backend %q", cfg.Backend)
	}
}
