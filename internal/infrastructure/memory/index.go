package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/shelfcheck/backend/internal/domain"
)

// Index is an in-process vector index using brute-force cosine similarity.
// Points are keyed by ID, so upserting the same ID replaces the old point.
type Index struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]domain.CatalogPoint
	order     []string
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, eris.Errorf("memory: invalid dimension %d", dimension)
	}
	return &Index{
		dimension: dimension,
		points:    make(map[string]domain.CatalogPoint),
	}, nil
}

// Upsert inserts or replaces points.
func (x *Index) Upsert(_ context.Context, points []domain.CatalogPoint) error {
	for _, p := range points {
		if p.ID == "" {
			return eris.New("memory: point without ID")
		}
		if len(p.Vector) != x.dimension {
			return eris.Errorf("memory: point %s has dimension %d, want %d", p.ID, len(p.Vector), x.dimension)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, p := range points {
		if _, ok := x.points[p.ID]; !ok {
			x.order = append(x.order, p.ID)
		}
		x.points[p.ID] = p
	}
	return nil
}

// SearchBatch answers each request independently; a malformed request only
// fails its own response.
func (x *Index) SearchBatch(ctx context.Context, reqs []domain.SearchRequest) []domain.SearchResponse {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]domain.SearchResponse, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		out[i].Matches, out[i].Err = x.search(req)
	}
	return out
}

func (x *Index) search(req domain.SearchRequest) ([]domain.CatalogMatch, error) {
	if len(req.Vector) != x.dimension {
		return nil, eris.Errorf("memory: query has dimension %d, want %d", len(req.Vector), x.dimension)
	}

	matches := make([]domain.CatalogMatch, 0)
	for _, id := range x.order {
		p := x.points[id]
		if !accepts(p.Entry, req.Filter) {
			continue
		}
		score := cosine(p.Vector, req.Vector)
		if score < req.ScoreThreshold {
			continue
		}
		matches = append(matches, domain.CatalogMatch{
			ID:           p.ID,
			Name:         p.Entry.Name,
			Price:        p.Entry.Price,
			StoreID:      p.Entry.StoreID,
			Code:         p.Entry.Code,
			Category:     p.Entry.Category,
			Presentation: p.Entry.Presentation,
			Score:        score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if req.Limit > 0 && len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}
	return matches, nil
}

// Delete removes every point matching f. An empty filter is rejected.
func (x *Index) Delete(_ context.Context, f domain.Filter) error {
	if f == (domain.Filter{}) {
		return eris.New("memory: refusing to delete without a filter")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	kept := x.order[:0]
	for _, id := range x.order {
		if accepts(x.points[id].Entry, f) {
			delete(x.points, id)
			continue
		}
		kept = append(kept, id)
	}
	x.order = kept
	return nil
}

// Count returns the number of points matching f.
func (x *Index) Count(_ context.Context, f domain.Filter) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, p := range x.points {
		if accepts(p.Entry, f) {
			n++
		}
	}
	return n, nil
}

func accepts(e domain.CatalogEntry, f domain.Filter) bool {
	if f.StoreID != "" && e.StoreID != f.StoreID {
		return false
	}
	if f.FileID != "" && e.FileID != f.FileID {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
