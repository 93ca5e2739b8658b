package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcheck/backend/internal/domain"
)

func point(id, name, store, file string, vec ...float32) domain.CatalogPoint {
	return domain.CatalogPoint{
		ID:     id,
		Vector: vec,
		Entry:  domain.CatalogEntry{Name: name, StoreID: store, FileID: file},
	}
}

func seeded(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), []domain.CatalogPoint{
		point("a", "HARINA PAN", "810", "f1", 1, 0),
		point("b", "HARINA JUANA", "810", "f1", 0.8, 0.6),
		point("c", "ACEITE DIANA", "810", "f2", 0, 1),
		point("d", "HARINA PAN", "100", "f3", 1, 0),
	}))
	return idx
}

func TestNewIndex_InvalidDimension(t *testing.T) {
	_, err := NewIndex(0)
	assert.Error(t, err)
}

func TestIndex_Upsert(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("rejects wrong dimension", func(t *testing.T) {
		err := idx.Upsert(ctx, []domain.CatalogPoint{point("x", "X", "1", "", 1, 2, 3)})
		assert.Error(t, err)
	})

	t.Run("rejects missing id", func(t *testing.T) {
		err := idx.Upsert(ctx, []domain.CatalogPoint{point("", "X", "1", "", 1, 2)})
		assert.Error(t, err)
	})

	t.Run("same id replaces", func(t *testing.T) {
		require.NoError(t, idx.Upsert(ctx, []domain.CatalogPoint{point("p", "OLD", "1", "", 1, 0)}))
		require.NoError(t, idx.Upsert(ctx, []domain.CatalogPoint{point("p", "NEW", "1", "", 1, 0)}))

		n, err := idx.Count(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		resp := idx.SearchBatch(ctx, []domain.SearchRequest{{Vector: []float32{1, 0}}})
		require.Len(t, resp[0].Matches, 1)
		assert.Equal(t, "NEW", resp[0].Matches[0].Name)
	})
}

func TestIndex_SearchBatch(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()

	resp := idx.SearchBatch(ctx, []domain.SearchRequest{
		{Vector: []float32{1, 0}, Filter: domain.Filter{StoreID: "810"}, Limit: 5},
		{Vector: []float32{1, 0}, Filter: domain.Filter{StoreID: "810"}, Limit: 5, ScoreThreshold: 0.7},
		{Vector: []float32{1, 0}, Filter: domain.Filter{StoreID: "810"}, Limit: 1},
		{Vector: []float32{1, 0, 0}},
		{Vector: []float32{1, 0}, Filter: domain.Filter{StoreID: "999"}},
	})
	require.Len(t, resp, 5)

	t.Run("filtered and ranked", func(t *testing.T) {
		require.NoError(t, resp[0].Err)
		require.Len(t, resp[0].Matches, 3)
		assert.Equal(t, "a", resp[0].Matches[0].ID)
		assert.InDelta(t, 1.0, resp[0].Matches[0].Score, 1e-6)
		assert.Equal(t, "b", resp[0].Matches[1].ID)
		assert.InDelta(t, 0.8, resp[0].Matches[1].Score, 1e-6)
		assert.Equal(t, "c", resp[0].Matches[2].ID)
	})

	t.Run("threshold", func(t *testing.T) {
		require.NoError(t, resp[1].Err)
		assert.Len(t, resp[1].Matches, 2)
	})

	t.Run("limit", func(t *testing.T) {
		require.Len(t, resp[2].Matches, 1)
		assert.Equal(t, "HARINA PAN", resp[2].Matches[0].Name)
		assert.Equal(t, "810", resp[2].Matches[0].StoreID)
	})

	t.Run("bad query fails alone", func(t *testing.T) {
		assert.Error(t, resp[3].Err)
		assert.Nil(t, resp[3].Matches)
	})

	t.Run("no matches is empty not nil", func(t *testing.T) {
		require.NoError(t, resp[4].Err)
		assert.NotNil(t, resp[4].Matches)
		assert.Empty(t, resp[4].Matches)
	})
}

func TestIndex_SearchBatch_CancelledContext(t *testing.T) {
	idx := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := idx.SearchBatch(ctx, []domain.SearchRequest{{Vector: []float32{1, 0}}})
	assert.ErrorIs(t, resp[0].Err, context.Canceled)
}

func TestIndex_DeleteAndCount(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()

	n, err := idx.Count(ctx, domain.Filter{StoreID: "810"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Error(t, idx.Delete(ctx, domain.Filter{}), "unfiltered delete is refused")

	require.NoError(t, idx.Delete(ctx, domain.Filter{FileID: "f1"}))

	n, err = idx.Count(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = idx.Count(ctx, domain.Filter{StoreID: "810", FileID: "f2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp := idx.SearchBatch(ctx, []domain.SearchRequest{{Vector: []float32{1, 0}, Filter: domain.Filter{StoreID: "810"}}})
	require.Len(t, resp[0].Matches, 1)
	assert.Equal(t, "c", resp[0].Matches[0].ID)
}

func TestCosine_ZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 0}))
}
