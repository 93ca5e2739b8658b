package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const (
	defaultHashingDimension = 384
	wordFeatureWeight       = 2.0
)

// HashingEmbedder maps character trigrams and whole words into a fixed
// number of buckets. It needs no model and is deterministic, which makes it
// useful offline and in tests; similarity tracks spelling, not meaning.
type HashingEmbedder struct {
	dimension int
}

// NewHashingEmbedder creates an embedder producing vectors of the given size.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = defaultHashingDimension
	}
	return &HashingEmbedder{dimension: dimension}
}

// Dimension returns the length of produced vectors.
func (e *HashingEmbedder) Dimension() int { return e.dimension }

// Embed returns the L2-normalized feature vector for text.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// EmbedBatch embeds each text independently.
func (e *HashingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashingEmbedder) vector(text string) []float32 {
	acc := make([]float64, e.dimension)
	normalized := Normalize(text)
	if normalized == "" {
		return make([]float32, e.dimension)
	}

	for _, word := range strings.Fields(normalized) {
		e.add(acc, "w:"+word, wordFeatureWeight)

		runes := []rune(" " + word + " ")
		for i := 0; i+3 <= len(runes); i++ {
			e.add(acc, string(runes[i:i+3]), 1)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// add hashes feature into a bucket with a hash-derived sign.
func (e *HashingEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[bucket] += weight
}
