// Package app wires configuration into the embedding, index and cache
// backends and the usecases built on them.
package app

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/config"
	httpDelivery "github.com/shelfcheck/backend/internal/delivery/http"
	"github.com/shelfcheck/backend/internal/domain"
	"github.com/shelfcheck/backend/internal/infrastructure/cache"
	"github.com/shelfcheck/backend/internal/infrastructure/embedding"
	"github.com/shelfcheck/backend/internal/infrastructure/memory"
	"github.com/shelfcheck/backend/internal/infrastructure/qdrant"
	"github.com/shelfcheck/backend/internal/usecase"
)

// store is a cache that can also suppress duplicate messages.
type store interface {
	domain.CacheRepository
	domain.ExpiringSet
	Close() error
}

// App holds the initialized usecases. Callers should defer Close.
type App struct {
	Parser     *usecase.IntentParser
	Extractor  *usecase.ProductExtractor
	Normalizer *usecase.Normalizer
	Matcher    *usecase.MatchingService
	Catalog    *usecase.CatalogService
	Messages   *usecase.MessageService

	cache store
}

// New builds every backend named by cfg and the usecases on top of them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := newEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}

	index, err := newIndex(ctx, cfg, embedder.Dimension(), logger)
	if err != nil {
		return nil, err
	}

	st, err := newStore(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	parser := usecase.NewIntentParser(logger)
	extractor := usecase.NewProductExtractor(logger)
	normalizer := usecase.NewNormalizer(logger)

	catalog := usecase.NewCatalogService(embedder, index, st, usecase.CatalogConfig{
		LookupLimit:     cfg.Search.Limit,
		LookupThreshold: cfg.Search.SimilarityThreshold,
		IndexBatchSize:  cfg.Index.BatchSize,
		LookupCacheTTL:  cfg.Cache.LookupTTL,
	}, logger)

	matcher := usecase.NewMatchingService(catalog, usecase.MatchConfig{
		PriceTolerancePercent: cfg.Validation.PriceTolerancePercent,
		SearchLimit:           cfg.Validation.SearchLimit,
		SimilarityThreshold:   cfg.Validation.SimilarityThreshold,
	}, logger)

	messages := usecase.NewMessageService(parser, extractor, normalizer, matcher, catalog, st,
		usecase.MessageServiceConfig{
			MessageTTL:    cfg.Cache.MessageTTL,
			AllowedUsers:  cfg.Messages.AllowedUsers,
			MaxReplyChars: cfg.Messages.MaxReplyChars,
		}, logger)

	return &App{
		Parser:     parser,
		Extractor:  extractor,
		Normalizer: normalizer,
		Matcher:    matcher,
		Catalog:    catalog,
		Messages:   messages,
		cache:      st,
	}, nil
}

// Services exposes the usecases to the HTTP layer.
func (a *App) Services() httpDelivery.Services {
	return httpDelivery.Services{
		Parser:     a.Parser,
		Extractor:  a.Extractor,
		Normalizer: a.Normalizer,
		Matcher:    a.Matcher,
		Catalog:    a.Catalog,
		Messages:   a.Messages,
	}
}

// Close releases the cache backend.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case "local":
		logger.Info("using local hashing embedder", zap.Int("dimension", cfg.Dimension))
		return embedding.NewHashingEmbedder(cfg.Dimension), nil
	case "openai":
		client, err := embedding.NewOpenAIClient(embedding.OpenAIConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimension:         cfg.Dimension,
			BatchSize:         cfg.BatchSize,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: float64(cfg.RequestsPerSecond),
		}, logger)
		if err != nil {
			return nil, eris.Wrap(err, "app: embedding client")
		}
		logger.Info("using openai embeddings",
			zap.String("base_url", cfg.BaseURL),
			zap.String("model", cfg.Model))
		return client, nil
	default:
		return nil, eris.Errorf("app: unknown embedding provider %q", cfg.Provider)
	}
}

func newIndex(ctx context.Context, cfg *config.Config, dimension int, logger *zap.Logger) (domain.VectorIndex, error) {
	switch cfg.Index.Type {
	case "memory":
		index, err := memory.NewIndex(dimension)
		if err != nil {
			return nil, eris.Wrap(err, "app: memory index")
		}
		logger.Warn("using in-memory vector index; catalog is lost on restart")
		return index, nil
	case "qdrant":
		client := qdrant.NewClient(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    cfg.Qdrant.Timeout,
			FanOut:     cfg.Validation.MaxConcurrency,
		}, logger)
		if err := client.EnsureCollection(ctx, dimension); err != nil {
			return nil, eris.Wrap(err, "app: qdrant collection")
		}
		logger.Info("using qdrant index",
			zap.String("url", cfg.Qdrant.URL),
			zap.String("collection", cfg.Qdrant.Collection))
		return client, nil
	default:
		return nil, eris.Errorf("app: unknown index type %q", cfg.Index.Type)
	}
}

func newStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (store, error) {
	switch cfg.Type {
	case "memory", "":
		return cache.NewMemoryCache(logger), nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, eris.Wrap(err, "app: redis cache")
		}
		return c, nil
	default:
		return nil, eris.Errorf("app: unknown cache type %q", cfg.Type)
	}
}
