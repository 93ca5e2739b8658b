package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/shelfcheck/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string]interface{}
	getError  error
	setError  error
	getCalled bool
	setCalled bool
	lastTTL   time.Duration
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setCalled = true
	m.lastTTL = ttl
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockEmbedder returns a one-hot vector per distinct text
type MockEmbedder struct {
	dimension int
	err       error
	short     bool
	calls     [][]string
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls = append(m.calls, append([]string(nil), texts...))
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, m.dimension)
		if t != "" {
			v[len(t)%m.dimension] = 1
		}
		out[i] = v
	}
	if m.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *MockEmbedder) Dimension() int { return m.dimension }

// MockVectorIndex is a mock implementation of domain.VectorIndex
type MockVectorIndex struct {
	responses []domain.SearchResponse
	requests  []domain.SearchRequest
	upserted  []domain.CatalogPoint
	deleted   []domain.Filter
	count     int
	upsertErr error
	deleteErr error
	countErr  error
}

func (m *MockVectorIndex) SearchBatch(ctx context.Context, reqs []domain.SearchRequest) []domain.SearchResponse {
	m.requests = append(m.requests, reqs...)
	if m.responses != nil {
		return m.responses
	}
	return make([]domain.SearchResponse, len(reqs))
}

func (m *MockVectorIndex) Upsert(ctx context.Context, points []domain.CatalogPoint) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, points...)
	return nil
}

func (m *MockVectorIndex) Delete(ctx context.Context, filter domain.Filter) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, filter)
	return nil
}

func (m *MockVectorIndex) Count(ctx context.Context, filter domain.Filter) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.count, nil
}

// MockExpiringSet is a mock implementation of domain.ExpiringSet
type MockExpiringSet struct {
	mu     sync.Mutex
	keys   map[string]bool
	addErr error
}

func NewMockExpiringSet() *MockExpiringSet {
	return &MockExpiringSet{keys: make(map[string]bool)}
}

func (m *MockExpiringSet) Add(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return false, m.addErr
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *MockExpiringSet) Contains(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}
