package domain

import (
	"context"
	"encoding/json"
	"time"
)

// CacheEntry is one stored (key text, embedding, response) tuple. Entries are
// values: the cache never mutates a returned entry in place.
type CacheEntry struct {
	Seq        int64           `json:"seq"`
	Key        string          `json:"key"`
	Embedding  []float32       `json:"-"`
	Payload    json.RawMessage `json:"payload"`
	InsertedAt time.Time       `json:"inserted_at"`
}

// CacheMatch is a lookup hit together with its similarity score.
type CacheMatch struct {
	Entry      CacheEntry
	Similarity float64
}

// SemanticCache stores responses keyed by embedding similarity.
type SemanticCache interface {
	// Lookup returns the best match at or above the threshold. ok is false on
	// a miss. Embedding failures are reported as ErrEmbeddingUnavailable.
	Lookup(ctx context.Context, queryText string) (match CacheMatch, ok bool, err error)
	// Store saves payload under queryText, replacing any entry with the same key.
	Store(ctx context.Context, queryText string, payload json.RawMessage) error
}
