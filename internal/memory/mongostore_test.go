package memory

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dexterhq/dexter/pkg/models"
)

func TestMongoDoc_ToEntry(t *testing.T) {
	doc := mongoDoc{
		ID:          "mem_1_abcdef",
		Content:     "hello world",
		Source:      string(models.MemorySourceUser),
		Tags:        []string{"qa"},
		CreatedAtMS: 1700000000000,
	}
	entry := doc.toEntry()
	if entry.ID != doc.ID || entry.Content != doc.Content || entry.Source != models.MemorySourceUser {
		t.Errorf("toEntry() = %+v, want fields copied from %+v", entry, doc)
	}
	if len(entry.Tags) != 1 || entry.Tags[0] != "qa" {
		t.Errorf("Tags = %v, want [qa]", entry.Tags)
	}
}

// TestMongoStore_AddAndSearch exercises MongoStore against a live server.
// Set TEST_MONGO_URI (and ensure a text index on "content" in
// dexter_test.memories) to run it; otherwise it is skipped.
func TestMongoStore_AddAndSearch(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("Skipping integration test: TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	coll := client.Database("dexter_test").Collection("memories")
	defer coll.Drop(ctx)

	store := NewMongoStore(coll)
	if _, err := store.Add("the deploy pipeline uses blue-green rollouts", models.MemorySourceAgent, []string{"qa"}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	results, err := store.Search("deploy pipeline", 5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
}
