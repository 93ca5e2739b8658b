package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcheck/backend/internal/domain"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeQdrant records requests and delegates responses to handle.
func fakeQdrant(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body map[string]any)) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.ContentLength > 0 {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}
		mu.Lock()
		reqs = append(reqs, recorded{Method: r.Method, Path: r.URL.RequestURI(), Body: body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		handle(w, r, body)
	}))
	t.Cleanup(server.Close)

	return server, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func newTestClient(url string) *Client {
	return NewClient(Config{URL: url, APIKey: "secret", Collection: "productos"}, nil)
}

func TestEnsureCollection_Creates(t *testing.T) {
	server, requests := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	})

	err := newTestClient(server.URL).EnsureCollection(context.Background(), 384)
	require.NoError(t, err)

	reqs := requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/collections/productos", reqs[0].Path)

	assert.Equal(t, http.MethodPut, reqs[1].Method)
	vectors := reqs[1].Body["vectors"].(map[string]any)
	assert.Equal(t, float64(384), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])

	assert.Equal(t, "/collections/productos/index?wait=true", reqs[2].Path)
	assert.Equal(t, fieldStoreID, reqs[2].Body["field_name"])
	assert.Equal(t, fieldFileID, reqs[3].Body["field_name"])
}

func TestEnsureCollection_Exists(t *testing.T) {
	server, requests := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		_, _ = w.Write([]byte(`{"result":{},"status":"ok"}`))
	})

	require.NoError(t, newTestClient(server.URL).EnsureCollection(context.Background(), 8))

	reqs := requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	for _, r := range reqs[1:] {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/productos/index?wait=true", r.Path)
	}
}

func TestEnsureCollection_InvalidDimension(t *testing.T) {
	assert.Error(t, newTestClient("http://127.0.0.1:1").EnsureCollection(context.Background(), 0))
}

func TestSearchBatch_BatchEndpoint(t *testing.T) {
	server, requests := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		_, _ = w.Write([]byte(`{"result":[
			[{"id":"p1","score":0.91,"payload":{"nombre":"HARINA PAN","precio":2.5,"tienda_id":"810","codigo":"H1"}}],
			[]
		]}`))
	})

	resp := newTestClient(server.URL).SearchBatch(context.Background(), []domain.SearchRequest{
		{Vector: []float32{1, 0}, Filter: domain.Filter{StoreID: "810"}, Limit: 5, ScoreThreshold: 0.7},
		{Vector: []float32{0, 1}, Filter: domain.Filter{StoreID: "810"}, Limit: 5},
	})

	require.Len(t, resp, 2)
	require.NoError(t, resp[0].Err)
	require.Len(t, resp[0].Matches, 1)
	m := resp[0].Matches[0]
	assert.Equal(t, "p1", m.ID)
	assert.Equal(t, "HARINA PAN", m.Name)
	require.NotNil(t, m.Price)
	assert.Equal(t, 2.5, *m.Price)
	assert.Equal(t, "H1", m.Code)
	assert.Equal(t, 0.91, m.Score)
	assert.Empty(t, resp[1].Matches)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/collections/productos/points/search/batch", reqs[0].Path)
	searches := reqs[0].Body["searches"].([]any)
	require.Len(t, searches, 2)
	first := searches[0].(map[string]any)
	assert.Equal(t, 0.7, first["score_threshold"])
	assert.Equal(t, true, first["with_payload"])
	_, hasThreshold := searches[1].(map[string]any)["score_threshold"]
	assert.False(t, hasThreshold)
}

func TestSearchBatch_FallbackIsolatesFailures(t *testing.T) {
	server, requests := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		if r.URL.Path == "/collections/productos/points/search/batch" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		vector := body["vector"].([]any)
		if len(vector) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":{"error":"wrong vector size"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":[{"id":7,"score":0.8,"payload":{"nombre":"ACEITE","precio":"4.10"}}]}`))
	})

	resp := newTestClient(server.URL).SearchBatch(context.Background(), []domain.SearchRequest{
		{Vector: []float32{1, 0}, Limit: 5},
		{Vector: []float32{1, 0, 0}, Limit: 5},
	})

	require.Len(t, resp, 2)
	require.NoError(t, resp[0].Err)
	require.Len(t, resp[0].Matches, 1)
	assert.Equal(t, "7", resp[0].Matches[0].ID)
	require.NotNil(t, resp[0].Matches[0].Price)
	assert.Equal(t, 4.10, *resp[0].Matches[0].Price)

	assert.Error(t, resp[1].Err)

	assert.Len(t, requests(), 3)
}

func TestSearchBatch_Empty(t *testing.T) {
	resp := newTestClient("http://127.0.0.1:1").SearchBatch(context.Background(), nil)
	assert.Empty(t, resp)
}

func TestUpsert(t *testing.T) {
	server, requests := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	price := 2.5

	err := newTestClient(server.URL).Upsert(context.Background(), []domain.CatalogPoint{{
		ID:     "id-1",
		Vector: []float32{1, 0},
		Entry:  domain.CatalogEntry{Name: "HARINA PAN", Price: &price, StoreID: "810", FileID: "f1"},
	}})
	require.NoError(t, err)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/collections/productos/points?wait=true", reqs[0].Path)
	pt := reqs[0].Body["points"].([]any)[0].(map[string]any)
	assert.Equal(t, "id-1", pt["id"])
	payload := pt["payload"].(map[string]any)
	assert.Equal(t, "HARINA PAN", payload[fieldName])
	assert.Equal(t, 2.5, payload[fieldPrice])
	assert.Equal(t, "810", payload[fieldStoreID])
	assert.Equal(t, "f1", payload[fieldFileID])
	_, hasCode := payload[fieldCode]
	assert.False(t, hasCode)
}

func TestUpsert_Empty(t *testing.T) {
	assert.NoError(t, newTestClient("http://127.0.0.1:1").Upsert(context.Background(), nil))
}

func TestDeleteAndCount(t *testing.T) {
	server, requests := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		if r.URL.Path == "/collections/productos/points/count" {
			_, _ = w.Write([]byte(`{"result":{"count":42}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	client := newTestClient(server.URL)
	ctx := context.Background()

	assert.Error(t, client.Delete(ctx, domain.Filter{}))

	require.NoError(t, client.Delete(ctx, domain.Filter{FileID: "f1"}))

	n, err := client.Count(ctx, domain.Filter{StoreID: "810"})
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = client.Count(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	reqs := requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/collections/productos/points/delete?wait=true", reqs[0].Path)
	must := reqs[0].Body["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 1)
	assert.Equal(t, fieldFileID, must[0].(map[string]any)["key"])

	assert.Equal(t, true, reqs[1].Body["exact"])
	assert.NotNil(t, reqs[1].Body["filter"])
	_, hasFilter := reqs[2].Body["filter"]
	assert.False(t, hasFilter)
}
