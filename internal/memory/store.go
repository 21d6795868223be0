// Package memory implements the Memory Store (C3): a keyword-scored,
// recency-weighted index of short text entries the iteration driver reads
// from and writes to across runs.
package memory

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dexterhq/dexter/pkg/models"
)

// Store is the Memory Store (C3) interface both backends satisfy.
type Store interface {
	Add(content string, source models.MemorySource, tags []string) (models.MemoryEntry, error)
	Search(query string, limit int) ([]models.MemorySearchResult, error)
	SyncFromFiles() error
	All() []models.MemoryEntry
}

// recencyWindowHours is the 30-day linear decay window used by the
// recency boost in Search.
const recencyWindowHours = 24 * 30

// snippetLength is the prefix length used for search-result snippets.
const snippetLength = 200

// scoreEntry applies the shared keyword + tag-bonus + recency-decay
// algorithm both backends use, so their rankings match bit-for-bit.
func scoreEntry(entry models.MemoryEntry, terms []string, now time.Time) float64 {
	content := strings.ToLower(entry.Content)
	var score float64
	for _, term := range terms {
		if strings.Contains(content, term) {
			score += 1.0
			for _, tag := range entry.Tags {
				if strings.Contains(strings.ToLower(tag), term) {
					score += 0.5
					break
				}
			}
		}
	}
	if score > 0 {
		ageHours := now.Sub(time.UnixMilli(entry.CreatedAtMS)).Hours()
		recency := 1 - ageHours/recencyWindowHours
		if recency < 0 {
			recency = 0
		}
		score += 0.3 * recency
	}
	return score
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	return fields
}

func snippet(content string) string {
	r := []rune(content)
	if len(r) <= snippetLength {
		return content
	}
	return string(r[:snippetLength])
}

func newEntryID(now time.Time) (string, error) {
	var buf [3]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("memory: generate id: %w", err)
	}
	return fmt.Sprintf("mem_%d_%s", now.UnixMilli(), hex.EncodeToString(buf[:])), nil
}

// rankResults sorts entries descending by score and returns the top limit
// as MemorySearchResults.
func rankResults(entries []models.MemoryEntry, terms []string, now time.Time, limit int) []models.MemorySearchResult {
	type scored struct {
		entry models.MemoryEntry
		score float64
	}
	var candidates []scored
	for _, e := range entries {
		if s := scoreEntry(e, terms, now); s > 0 {
			candidates = append(candidates, scored{entry: e, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if limit <= 0 {
		limit = 5
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.MemorySearchResult, len(candidates))
	for i, c := range candidates {
		out[i] = models.MemorySearchResult{Entry: c.entry, Score: c.score, Snippet: snippet(c.entry.Content)}
	}
	return out
}
