package memory

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dexterhq/dexter/pkg/models"
)

// mongoDoc is the on-disk shape of one memory entry in MongoDB.
type mongoDoc struct {
	ID          string   `bson:"_id"`
	Content     string   `bson:"content"`
	Source      string   `bson:"source"`
	Tags        []string `bson:"tags"`
	CreatedAtMS int64    `bson:"created_at_ms"`
}

func (d mongoDoc) toEntry() models.MemoryEntry {
	return models.MemoryEntry{
		ID:          d.ID,
		Content:     d.Content,
		Source:      models.MemorySource(d.Source),
		Tags:        d.Tags,
		CreatedAtMS: d.CreatedAtMS,
	}
}

// MongoStore is the alternate Memory Store (C3) backend: entries live in a
// MongoDB collection, coarse-prefiltered server-side with a $text query,
// then re-ranked in Go with the exact same scoreEntry/rankResults used by
// FileStore so the two backends return identical orderings.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore wraps an existing collection handle. Callers are
// responsible for connecting the client and ensuring a text index exists
// on the "content" field (db.collection.createIndex({content: "text"})).
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

// Add inserts a new entry and returns it.
func (s *MongoStore) Add(content string, source models.MemorySource, tags []string) (models.MemoryEntry, error) {
	now := s.now()
	id, err := newEntryID(now)
	if err != nil {
		return models.MemoryEntry{}, err
	}
	doc := mongoDoc{
		ID:          id,
		Content:     content,
		Source:      string(source),
		Tags:        tags,
		CreatedAtMS: now.UnixMilli(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return models.MemoryEntry{}, fmt.Errorf("memory: mongo insert: %w", err)
	}
	return doc.toEntry(), nil
}

// Search runs a coarse $text prefilter server-side (so a large collection
// never needs a full scan in Go), then scores and ranks the candidate set
// with the same algorithm FileStore uses.
func (s *MongoStore) Search(query string, limit int) ([]models.MemorySearchResult, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{"$text": bson.M{"$search": query}}
	// Cap the prefilter well above the final limit: the $text match is a
	// coarse recall step, Go-side scoring does the real ranking.
	prefilterCap := int64(limit * 20)
	if prefilterCap < 200 {
		prefilterCap = 200
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetLimit(prefilterCap))
	if err != nil {
		return nil, fmt.Errorf("memory: mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("memory: mongo decode: %w", err)
	}

	entries := make([]models.MemoryEntry, len(docs))
	for i, d := range docs {
		entries[i] = d.toEntry()
	}
	return rankResults(entries, terms, s.now(), limit), nil
}

// SyncFromFiles is a no-op for MongoStore: file-sidecar syncing is a
// FileStore-only convenience, not part of the Mongo-backed deployment path.
func (s *MongoStore) SyncFromFiles() error {
	return nil
}

// All returns every entry in the collection.
func (s *MongoStore) All() []models.MemoryEntry {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil
	}
	defer cur.Close(ctx)

	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil
	}
	entries := make([]models.MemoryEntry, len(docs))
	for i, d := range docs {
		entries[i] = d.toEntry()
	}
	return entries
}
