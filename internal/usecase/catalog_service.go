package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
)

// Catalog defaults
const (
	defaultLookupLimit     = 20
	defaultLookupThreshold = 0.5
	defaultIndexBatchSize  = 100
	defaultLookupCacheTTL  = 5 * time.Minute
)

// pointNamespace scopes deterministic catalog point ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shelfcheck/catalog"))

// CatalogConfig holds configuration for the catalog service
type CatalogConfig struct {
	LookupLimit     int
	LookupThreshold float64
	IndexBatchSize  int
	LookupCacheTTL  time.Duration
}

// CatalogService searches and maintains the per-store product catalog
type CatalogService struct {
	embedder        domain.Embedder
	index           domain.VectorIndex
	cache           domain.CacheRepository
	lookupLimit     int
	lookupThreshold float64
	batchSize       int
	cacheTTL        time.Duration
	logger          *zap.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(
	embedder domain.Embedder,
	index domain.VectorIndex,
	cache domain.CacheRepository,
	config CatalogConfig,
	logger *zap.Logger,
) *CatalogService {
	limit := config.LookupLimit
	if limit <= 0 {
		limit = defaultLookupLimit
	}

	threshold := config.LookupThreshold
	if threshold <= 0 {
		threshold = defaultLookupThreshold
	}

	batchSize := config.IndexBatchSize
	if batchSize <= 0 {
		batchSize = defaultIndexBatchSize
	}

	cacheTTL := config.LookupCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultLookupCacheTTL
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &CatalogService{
		embedder:        embedder,
		index:           index,
		cache:           cache,
		lookupLimit:     limit,
		lookupThreshold: threshold,
		batchSize:       batchSize,
		cacheTTL:        cacheTTL,
		logger:          logger,
	}
}

// BatchSize returns how many points each index upsert carries.
func (s *CatalogService) BatchSize() int {
	return s.batchSize
}

// SearchBatch embeds all phrases in one call and searches each one within
// the store. Embedding failure fails the batch; search failures are reported
// per response.
func (s *CatalogService) SearchBatch(
	ctx context.Context,
	phrases []string,
	storeID int,
	limit int,
	threshold float64,
) ([]domain.SearchResponse, error) {
	if len(phrases) == 0 {
		return []domain.SearchResponse{}, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, phrases)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %d phrases: %v", domain.ErrCapabilityFailure, len(phrases), err)
	}
	if len(vectors) != len(phrases) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d phrases",
			domain.ErrCapabilityFailure, len(vectors), len(phrases))
	}

	filter := domain.Filter{StoreID: strconv.Itoa(storeID)}
	reqs := make([]domain.SearchRequest, len(vectors))
	for i, v := range vectors {
		reqs[i] = domain.SearchRequest{
			Vector:         v,
			Filter:         filter,
			Limit:          limit,
			ScoreThreshold: threshold,
		}
	}

	responses := s.index.SearchBatch(ctx, reqs)
	if len(responses) != len(reqs) {
		return nil, fmt.Errorf("%w: index returned %d responses for %d queries",
			domain.ErrCapabilityFailure, len(responses), len(reqs))
	}
	for i := range responses {
		if responses[i].Err != nil {
			responses[i].Err = fmt.Errorf("%w: %v", domain.ErrCapabilityFailure, responses[i].Err)
		}
	}
	return responses, nil
}

// Lookup returns the catalog products most similar to the query phrase in the
// query's store.
func (s *CatalogService) Lookup(ctx context.Context, query domain.StoreQuery) ([]domain.CatalogMatch, error) {
	if !query.HasStore() {
		return nil, domain.ErrStoreIDRequired
	}
	if query.SearchPhrase == "" {
		return nil, fmt.Errorf("%w: search phrase is required", domain.ErrInvalidRequest)
	}

	phrase := CanonicalName(query.SearchPhrase)
	cacheKey := fmt.Sprintf("lookup:%d:%s", query.StoreID, phrase)

	if cached, ok := s.getFromCache(ctx, cacheKey); ok {
		return cached, nil
	}

	responses, err := s.SearchBatch(ctx, []string{phrase}, query.StoreID, s.lookupLimit, s.lookupThreshold)
	if err != nil {
		return nil, err
	}
	if responses[0].Err != nil {
		return nil, responses[0].Err
	}

	matches := RankCandidates(responses[0].Matches, s.lookupThreshold)
	s.logger.Debug("catalog lookup",
		zap.Int("store_id", query.StoreID),
		zap.String("phrase", phrase),
		zap.Int("matches", len(matches)))

	if len(matches) > 0 {
		s.setInCache(ctx, cacheKey, matches)
	}
	return matches, nil
}

// getFromCache decodes cached matches. Backends may hand back the stored
// slice, a decoded JSON tree or raw JSON text.
func (s *CatalogService) getFromCache(ctx context.Context, key string) ([]domain.CatalogMatch, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var raw []byte
	switch v := value.(type) {
	case []domain.CatalogMatch:
		return v, true
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		raw, err = json.Marshal(v)
		if err != nil {
			return nil, false
		}
	}

	var matches []domain.CatalogMatch
	if err := json.Unmarshal(raw, &matches); err != nil {
		s.logger.Debug("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return matches, true
}

func (s *CatalogService) setInCache(ctx context.Context, key string, matches []domain.CatalogMatch) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, matches, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache lookup", zap.String("key", key), zap.Error(err))
	}
}

// Index embeds and upserts entries in batches. Entries without a usable name
// or store are skipped. It returns the number of entries indexed.
func (s *CatalogService) Index(ctx context.Context, entries []domain.CatalogEntry) (int, error) {
	valid := make([]domain.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		e.Name = CanonicalName(e.Name)
		e.StoreID = strings.TrimSpace(e.StoreID)
		if IsSentinelName(e.Name) || e.StoreID == "" {
			s.logger.Debug("skipping catalog entry",
				zap.String("name", e.Name),
				zap.String("store_id", e.StoreID))
			continue
		}
		valid = append(valid, e)
	}

	indexed := 0
	for start := 0; start < len(valid); start += s.batchSize {
		end := min(start+s.batchSize, len(valid))
		batch := valid[start:end]

		names := make([]string, len(batch))
		for i, e := range batch {
			names[i] = e.Name
		}
		vectors, err := s.embedder.EmbedBatch(ctx, names)
		if err != nil {
			return indexed, fmt.Errorf("%w: embed catalog batch: %v", domain.ErrCapabilityFailure, err)
		}
		if len(vectors) != len(batch) {
			return indexed, fmt.Errorf("%w: embedder returned %d vectors for %d entries",
				domain.ErrCapabilityFailure, len(vectors), len(batch))
		}

		points := make([]domain.CatalogPoint, len(batch))
		for i, e := range batch {
			points[i] = domain.CatalogPoint{ID: PointID(e), Vector: vectors[i], Entry: e}
		}
		if err := s.index.Upsert(ctx, points); err != nil {
			return indexed, fmt.Errorf("%w: upsert catalog batch: %v", domain.ErrCapabilityFailure, err)
		}
		indexed += len(batch)
	}

	s.logger.Info("indexed catalog entries",
		zap.Int("received", len(entries)),
		zap.Int("indexed", indexed))
	return indexed, nil
}

// DeleteByFile removes every entry loaded from fileID and returns how many
// there were.
func (s *CatalogService) DeleteByFile(ctx context.Context, fileID string) (int, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return 0, fmt.Errorf("%w: file id is required", domain.ErrInvalidRequest)
	}

	filter := domain.Filter{FileID: fileID}
	count, err := s.index.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: count file entries: %v", domain.ErrCapabilityFailure, err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.index.Delete(ctx, filter); err != nil {
		return 0, fmt.Errorf("%w: delete file entries: %v", domain.ErrCapabilityFailure, err)
	}

	s.logger.Info("deleted catalog entries", zap.String("file_id", fileID), zap.Int("count", count))
	return count, nil
}

// Count returns the number of entries matching filter.
func (s *CatalogService) Count(ctx context.Context, filter domain.Filter) (int, error) {
	count, err := s.index.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: count entries: %v", domain.ErrCapabilityFailure, err)
	}
	return count, nil
}

// PointID derives a stable point id so re-indexing the same row overwrites it.
func PointID(e domain.CatalogEntry) string {
	key := e.StoreID + "|" + e.Code + "|" + CanonicalName(e.Name)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}
