package qdrant

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shelfcheck/backend/internal/domain"
	"github.com/shelfcheck/backend/internal/infrastructure/transport"
)

const defaultFanOut = 8

// Config configures the Qdrant REST client
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	// FanOut bounds concurrent single searches when the batch endpoint fails.
	FanOut int
}

// Client is a vector index backed by a Qdrant collection over REST
type Client struct {
	http       *transport.Client
	collection string
	fanOut     int
	logger     *zap.Logger
}

// NewClient creates a new Qdrant client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["api-key"] = cfg.APIKey
	}

	fanOut := cfg.FanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http: transport.NewClient(transport.Config{
			BaseURL: cfg.URL,
			Headers: headers,
			Timeout: cfg.Timeout,
		}, logger),
		collection: cfg.Collection,
		fanOut:     fanOut,
		logger:     logger,
	}
}

func (c *Client) path(suffix string) string {
	return "/collections/" + url.PathEscape(c.collection) + suffix
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist, and indexes the keyword fields used for filtering.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return eris.Errorf("qdrant: invalid dimension %d", dimension)
	}

	err := c.http.Do(ctx, http.MethodGet, c.path(""), nil, nil)
	switch {
	case err == nil:
		c.logger.Debug("collection exists", zap.String("collection", c.collection))
	case transport.IsStatus(err, http.StatusNotFound):
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if err := c.http.Do(ctx, http.MethodPut, c.path(""), body, nil); err != nil {
			return eris.Wrapf(err, "qdrant: create collection %s", c.collection)
		}
		c.logger.Info("created collection",
			zap.String("collection", c.collection),
			zap.Int("dimension", dimension))
	default:
		return eris.Wrapf(err, "qdrant: get collection %s", c.collection)
	}

	for _, field := range keywordFields {
		body := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := c.http.Do(ctx, http.MethodPut, c.path("/index?wait=true"), body, nil); err != nil {
			return eris.Wrapf(err, "qdrant: index payload field %s", field)
		}
	}
	return nil
}

// SearchBatch sends all queries to the batch endpoint. If that call fails,
// queries are retried one by one so a single bad query only fails itself.
func (c *Client) SearchBatch(ctx context.Context, reqs []domain.SearchRequest) []domain.SearchResponse {
	responses := make([]domain.SearchResponse, len(reqs))
	if len(reqs) == 0 {
		return responses
	}

	searches := make([]searchBody, len(reqs))
	for i, r := range reqs {
		searches[i] = toSearchBody(r)
	}

	var batch struct {
		Result [][]scoredPoint `json:"result"`
	}
	err := c.http.Do(ctx, http.MethodPost, c.path("/points/search/batch"), map[string]any{"searches": searches}, &batch)
	if err == nil && len(batch.Result) == len(reqs) {
		for i, points := range batch.Result {
			responses[i].Matches = toMatches(points)
		}
		return responses
	}
	if err == nil {
		err = eris.Errorf("qdrant: batch returned %d results for %d searches", len(batch.Result), len(reqs))
	}

	c.logger.Warn("batch search failed, searching individually",
		zap.Int("searches", len(reqs)),
		zap.Error(err))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanOut)
	for i := range searches {
		g.Go(func() error {
			matches, err := c.search(gctx, searches[i])
			responses[i] = domain.SearchResponse{Matches: matches, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return responses
}

func (c *Client) search(ctx context.Context, body searchBody) ([]domain.CatalogMatch, error) {
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := c.http.Do(ctx, http.MethodPost, c.path("/points/search"), body, &resp); err != nil {
		return nil, eris.Wrap(err, "qdrant: search")
	}
	return toMatches(resp.Result), nil
}

// Upsert writes points and waits for them to be indexed.
func (c *Client) Upsert(ctx context.Context, points []domain.CatalogPoint) error {
	if len(points) == 0 {
		return nil
	}
	body := struct {
		Points []point `json:"points"`
	}{Points: make([]point, len(points))}
	for i, p := range points {
		body.Points[i] = toPoint(p)
	}

	if err := c.http.Do(ctx, http.MethodPut, c.path("/points?wait=true"), body, nil); err != nil {
		return eris.Wrapf(err, "qdrant: upsert %d points", len(points))
	}
	return nil
}

// Delete removes every point matching filter. An empty filter is rejected.
func (c *Client) Delete(ctx context.Context, f domain.Filter) error {
	qf := toFilter(f)
	if qf == nil {
		return eris.New("qdrant: refusing to delete without a filter")
	}
	if err := c.http.Do(ctx, http.MethodPost, c.path("/points/delete?wait=true"), map[string]any{"filter": qf}, nil); err != nil {
		return eris.Wrap(err, "qdrant: delete points")
	}
	return nil
}

// Count returns the exact number of points matching filter.
func (c *Client) Count(ctx context.Context, f domain.Filter) (int, error) {
	body := map[string]any{"exact": true}
	if qf := toFilter(f); qf != nil {
		body["filter"] = qf
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.http.Do(ctx, http.MethodPost, c.path("/points/count"), body, &resp); err != nil {
		return 0, eris.Wrap(err, "qdrant: count points")
	}
	return resp.Result.Count, nil
}

func toMatches(points []scoredPoint) []domain.CatalogMatch {
	matches := make([]domain.CatalogMatch, 0, len(points))
	for _, sp := range points {
		matches = append(matches, toMatch(sp))
	}
	return matches
}
