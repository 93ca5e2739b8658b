package embedding

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shelfcheck/backend/internal/infrastructure/transport"
)

const (
	defaultBatchSize   = 32
	defaultConcurrency = 4
)

// OpenAIConfig configures an OpenAI-compatible embeddings client
type OpenAIConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimension         int
	BatchSize         int
	Concurrency       int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// OpenAIClient embeds text through an OpenAI-compatible /embeddings endpoint
type OpenAIClient struct {
	http        *transport.Client
	model       string
	dimension   int
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIClient creates a new embeddings client
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("embedding: API key is required")
	}
	if cfg.Dimension <= 0 {
		return nil, eris.Errorf("embedding: invalid dimension %d", cfg.Dimension)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIClient{
		http: transport.NewClient(transport.Config{
			BaseURL:           cfg.BaseURL,
			Headers:           map[string]string{"Authorization": "Bearer " + cfg.APIKey},
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger),
		model:       cfg.Model,
		dimension:   cfg.Dimension,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Dimension returns the length of produced vectors.
func (c *OpenAIClient) Dimension() int { return c.dimension }

// Embed returns the vector for one text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in order. Empty texts get a zero
// vector without a remote call; the rest are sent in concurrent chunks.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var pending []int
	var inputs []string
	for i, t := range texts {
		n := Normalize(t)
		if n == "" {
			out[i] = make([]float32, c.dimension)
			continue
		}
		pending = append(pending, i)
		inputs = append(inputs, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(inputs); start += c.batchSize {
		end := min(start+c.batchSize, len(inputs))
		g.Go(func() error {
			vectors, err := c.embedChunk(gctx, inputs[start:end])
			if err != nil {
				return err
			}
			for j, v := range vectors {
				out[pending[start+j]] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OpenAIClient) embedChunk(ctx context.Context, inputs []string) ([][]float32, error) {
	var resp embeddingsResponse
	req := embeddingsRequest{Model: c.model, Input: inputs}
	if err := c.http.Do(ctx, http.MethodPost, "/embeddings", req, &resp); err != nil {
		return nil, eris.Wrapf(err, "embedding: embed %d texts", len(inputs))
	}
	if len(resp.Data) != len(inputs) {
		return nil, eris.Errorf("embedding: got %d embeddings for %d texts", len(resp.Data), len(inputs))
	}

	vectors := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, eris.Errorf("embedding: index %d out of range", d.Index)
		}
		if len(d.Embedding) != c.dimension {
			return nil, eris.Errorf("embedding: got dimension %d, want %d", len(d.Embedding), c.dimension)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, eris.Errorf("embedding: missing embedding for input %d", i)
		}
	}

	c.logger.Debug("embedded chunk", zap.Int("texts", len(inputs)))
	return vectors, nil
}
