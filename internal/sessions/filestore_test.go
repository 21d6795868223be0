package sessions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dexterhq/dexter/pkg/models"
)

func TestFileStore_AppendAndLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()
	key := "agent:main:default"

	msg := models.Message{Role: models.RoleUser, Content: models.NewTextContent("hello"), TimestampMS: 1}
	if err := store.Append(ctx, key, msg); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	if got := store.Get(key); len(got) != 1 || got[0].Content.Text() != "hello" {
		t.Errorf("Get = %+v, want one message with text 'hello'", got)
	}

	fresh := NewFileStore(dir)
	loaded, err := fresh.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Content.Text() != "hello" {
		t.Errorf("Load after restart = %+v, want one message with text 'hello'", loaded)
	}
}

func TestFileStore_LoadMissingKeyIsEmpty(t *testing.T) {
	store := NewFileStore(t.TempDir())
	msgs, err := store.Load(context.Background(), "agent:main:nope")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Load = %+v, want empty", msgs)
	}
}

func TestFileStore_LegacyPathFallback(t *testing.T) {
	dir := t.TempDir()
	key := "agent:main:weird key/slash"
	store := NewFileStore(dir)

	legacyPath := store.legacyPath(key)
	if err := writeRawJSONL(legacyPath, models.Message{Role: models.RoleUser, Content: models.NewTextContent("legacy"), TimestampMS: 1}); err != nil {
		t.Fatalf("seed legacy file: %v", err)
	}

	msgs, err := store.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content.Text() != "legacy" {
		t.Errorf("Load via legacy path = %+v, want one legacy message", msgs)
	}
}

func TestFileStore_Clear(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()
	key := "agent:main:to-clear"

	if err := store.Append(ctx, key, models.Message{Role: models.RoleUser, Content: models.NewTextContent("x")}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if got := store.Get(key); len(got) != 0 {
		t.Errorf("Get after Clear = %+v, want empty", got)
	}
}

func TestFileStore_ListSessions(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	for _, key := range []string{"agent:main:a", "agent:main:b"} {
		if err := store.Append(ctx, key, models.Message{Role: models.RoleUser, Content: models.NewTextContent("x")}); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	keys, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("ListSessions = %v, want 2 keys", keys)
	}
}

func writeRawJSONL(path string, msg models.Message) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
