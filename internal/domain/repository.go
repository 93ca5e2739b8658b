package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ExpiringSet records keys for a bounded time. Add reports whether the key
// was newly added, so callers can use it to suppress duplicate work.
type ExpiringSet interface {
	Add(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, key string) (bool, error)
}

// Embedder turns text into vectors. Empty text yields a zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Filter restricts index operations. Empty fields match everything.
type Filter struct {
	StoreID string
	FileID  string
}

// SearchRequest is one nearest-neighbour query.
type SearchRequest struct {
	Vector         []float32
	Filter         Filter
	Limit          int
	ScoreThreshold float64
}

// SearchResponse carries the outcome of one query in a batch.
// Err is set when that query alone failed.
type SearchResponse struct {
	Matches []CatalogMatch
	Err     error
}

// VectorIndex is the catalog similarity search backend.
type VectorIndex interface {
	// SearchBatch returns one response per request, in request order.
	SearchBatch(ctx context.Context, reqs []SearchRequest) []SearchResponse
	Upsert(ctx context.Context, points []CatalogPoint) error
	Delete(ctx context.Context, filter Filter) error
	Count(ctx context.Context, filter Filter) (int, error)
}
