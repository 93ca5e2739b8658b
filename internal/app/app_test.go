package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcheck/backend/config"
	"github.com/shelfcheck/backend/internal/domain"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Embedding.Provider = "local"
	cfg.Embedding.Dimension = 256
	cfg.Index.Type = "memory"
	cfg.Cache.Type = "memory"
	return cfg
}

func TestNew_Local(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, localConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	indexed, err := a.Catalog.Index(ctx, []domain.CatalogEntry{
		{Name: "Harina Pan", Price: floatPtr(20), StoreID: "810"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, indexed)

	matches, err := a.Catalog.Lookup(ctx, domain.StoreQuery{StoreID: 810, SearchPhrase: "harina pan"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "HARINA PAN", matches[0].Name)

	results, err := a.Matcher.Validate(ctx, []domain.ExtractedProduct{{Name: "HARINA PAN", Price: floatPtr(20)}}, 810)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusMatch, results[0].Status)

	assert.Equal(t, 100, a.Catalog.BatchSize())

	services := a.Services()
	assert.Same(t, a.Messages, services.Messages)
	assert.Same(t, a.Catalog, services.Catalog)
}

func TestNew_IndexBatchSizeIndependentOfEmbedding(t *testing.T) {
	cfg := localConfig(t)
	cfg.Embedding.BatchSize = 16
	cfg.Index.BatchSize = 250

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 250, a.Catalog.BatchSize())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"unknown provider", func(c *config.Config) { c.Embedding.Provider = "word2vec" }},
		{"openai without key", func(c *config.Config) { c.Embedding.Provider = "openai"; c.Embedding.APIKey = "" }},
		{"unknown index", func(c *config.Config) { c.Index.Type = "faiss" }},
		{"unknown cache", func(c *config.Config) { c.Cache.Type = "memcached" }},
		{"bad redis url", func(c *config.Config) { c.Cache.Type = "redis"; c.Cache.RedisURL = "://nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig(t)
			tt.modify(cfg)

			a, err := New(context.Background(), cfg, nil)

			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), localConfig(t), nil)
	require.NoError(t, err)

	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
	assert.NoError(t, (&App{}).Close())
}

func floatPtr(v float64) *float64 { return &v }
