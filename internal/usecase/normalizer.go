package usecase

import (
	"strings"

	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
)

// sentinelNames are placeholder names the vision model emits when it cannot read a label.
var sentinelNames = map[string]bool{
	"NULL":        true,
	"NONE":        true,
	"NIL":         true,
	"N/A":         true,
	"NA":          true,
	"NO VISIBLE":  true,
	"NO LEGIBLE":  true,
	"NOT VISIBLE": true,
	"ILLEGIBLE":   true,
	"ILEGIBLE":    true,
	"UNREADABLE":  true,
	"DESCONOCIDO": true,
	"UNKNOWN":     true,
	"SIN NOMBRE":  true,
}

// CanonicalName upper-cases s, trims it and collapses whitespace runs.
func CanonicalName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// IsSentinelName reports whether s is empty or a placeholder once canonicalized.
func IsSentinelName(s string) bool {
	c := CanonicalName(s)
	return c == "" || sentinelNames[c]
}

// NormalizeStats counts what NormalizeAndDedupe dropped.
type NormalizeStats struct {
	Input      int `json:"input"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Output     int `json:"output"`
}

// Normalizer canonicalizes extracted records and removes duplicates
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// NormalizeAndDedupe canonicalizes names, drops invalid records and keeps the
// first occurrence of each canonical name. Applying it twice is a no-op.
func (n *Normalizer) NormalizeAndDedupe(records []domain.ExtractedProduct) []domain.ExtractedProduct {
	out, _ := n.Normalize(records)
	return out
}

// Normalize is NormalizeAndDedupe that also reports counts.
func (n *Normalizer) Normalize(records []domain.ExtractedProduct) ([]domain.ExtractedProduct, NormalizeStats) {
	stats := NormalizeStats{Input: len(records)}
	out := make([]domain.ExtractedProduct, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, r := range records {
		name := CanonicalName(r.Name)
		if name == "" || sentinelNames[name] {
			stats.Invalid++
			n.logger.Debug("dropping record",
				zap.String("name", r.Name),
				zap.Error(domain.ErrInvalidRecord))
			continue
		}
		if seen[name] {
			stats.Duplicates++
			continue
		}
		seen[name] = true

		r.Name = name
		r.Category = strings.TrimSpace(r.Category)
		if r.Category == "" {
			r.Category = domain.DefaultCategory
		}
		r.Presentation = strings.TrimSpace(r.Presentation)
		out = append(out, r)
	}

	stats.Output = len(out)
	if stats.Invalid > 0 || stats.Duplicates > 0 {
		n.logger.Info("normalized products",
			zap.Int("input", stats.Input),
			zap.Int("invalid", stats.Invalid),
			zap.Int("duplicates", stats.Duplicates),
			zap.Int("output", stats.Output))
	}
	return out, stats
}
