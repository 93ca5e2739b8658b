package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
)

// Validation defaults
const (
	defaultPriceTolerancePercent = 5.0
	defaultValidationLimit       = 5
	defaultValidationThreshold   = 0.7
)

// CatalogSearcher runs a batch of phrase searches scoped to one store.
// A non-nil error means the whole batch failed; per-phrase failures are
// reported on each response.
type CatalogSearcher interface {
	SearchBatch(ctx context.Context, phrases []string, storeID int, limit int, threshold float64) ([]domain.SearchResponse, error)
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	PriceTolerancePercent float64
	SearchLimit           int
	SimilarityThreshold   float64
}

// MatchingService validates extracted shelf prices against a store's catalog
type MatchingService struct {
	searcher    CatalogSearcher
	tolerance   float64
	searchLimit int
	threshold   float64
	logger      *zap.Logger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(searcher CatalogSearcher, config MatchConfig, logger *zap.Logger) *MatchingService {
	percent := config.PriceTolerancePercent
	if percent <= 0 {
		percent = defaultPriceTolerancePercent
	}

	limit := config.SearchLimit
	if limit <= 0 {
		limit = defaultValidationLimit
	}

	threshold := config.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultValidationThreshold
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &MatchingService{
		searcher:    searcher,
		tolerance:   percent / 100,
		searchLimit: limit,
		threshold:   threshold,
		logger:      logger,
	}
}

// Tolerance returns the accepted relative price deviation as a fraction.
func (s *MatchingService) Tolerance() float64 {
	return s.tolerance
}

// Validate returns one result per product, in input order. Products sharing a
// canonical name share one catalog query. A failed query marks only its own
// products as failed; if the whole batch fails every result is marked failed
// and the error wraps domain.ErrCapabilityFailure.
func (s *MatchingService) Validate(
	ctx context.Context,
	products []domain.ExtractedProduct,
	storeID int,
) ([]domain.ValidationResult, error) {
	if !domain.ValidStoreID(storeID) {
		return nil, domain.ErrStoreIDRequired
	}

	results := make([]domain.ValidationResult, len(products))
	if len(products) == 0 {
		return results, nil
	}

	phrases := make([]string, 0, len(products))
	queryIndex := make(map[string]int, len(products))
	queryOf := make([]int, len(products))
	for i, p := range products {
		name := CanonicalName(p.Name)
		if name == "" {
			queryOf[i] = -1
			continue
		}
		idx, ok := queryIndex[name]
		if !ok {
			idx = len(phrases)
			queryIndex[name] = idx
			phrases = append(phrases, name)
		}
		queryOf[i] = idx
	}

	var responses []domain.SearchResponse
	if len(phrases) > 0 {
		var err error
		responses, err = s.searcher.SearchBatch(ctx, phrases, storeID, s.searchLimit, s.threshold)
		if err == nil && len(responses) != len(phrases) {
			err = fmt.Errorf("got %d responses for %d queries", len(responses), len(phrases))
		}
		if err != nil {
			if !errors.Is(err, domain.ErrCapabilityFailure) {
				err = fmt.Errorf("%w: %v", domain.ErrCapabilityFailure, err)
			}
			s.logger.Error("catalog batch search failed",
				zap.Int("store_id", storeID),
				zap.Int("queries", len(phrases)),
				zap.Error(err))
			for i, p := range products {
				results[i] = failedResult(p, err)
			}
			return results, err
		}
	}

	failed := 0
	for i, p := range products {
		if queryOf[i] < 0 {
			results[i] = s.Classify(p, nil)
			continue
		}
		resp := responses[queryOf[i]]
		if resp.Err != nil {
			failed++
			s.logger.Warn("catalog search failed for product",
				zap.String("product", phrases[queryOf[i]]),
				zap.Error(resp.Err))
			results[i] = failedResult(p, resp.Err)
			continue
		}
		candidates := RankCandidates(resp.Matches, s.threshold)
		if len(candidates) == 0 {
			results[i] = s.Classify(p, nil)
			continue
		}
		results[i] = s.Classify(p, &candidates[0])
	}

	s.logger.Info("validated products",
		zap.Int("store_id", storeID),
		zap.Int("products", len(products)),
		zap.Int("queries", len(phrases)),
		zap.Int("failed_queries", failed))

	return results, nil
}

// Classify adjudicates one product against its best candidate, or against
// no candidate when match is nil.
func (s *MatchingService) Classify(product domain.ExtractedProduct, match *domain.CatalogMatch) domain.ValidationResult {
	result := domain.ValidationResult{
		SourceName:  CanonicalName(product.Name),
		SourcePrice: product.Price,
	}

	if match == nil {
		result.Status = domain.StatusNotFound
		result.Verdict = domain.VerdictUnknown
		return result
	}

	name := match.Name
	score := match.Score
	result.MatchedName = &name
	result.MatchedPrice = match.Price
	result.MatchedCode = match.Code
	result.MatchScore = &score

	if product.Price == nil || match.Price == nil {
		result.Status = domain.StatusNoPrice
		result.Verdict = domain.VerdictUnknown
		return result
	}

	delta := *match.Price - *product.Price
	result.PriceDelta = &delta

	if PricesMatch(*product.Price, *match.Price, s.tolerance) {
		result.Status = domain.StatusMatch
		result.Verdict = domain.VerdictOK
	} else {
		result.Status = domain.StatusPriceDiff
		result.Verdict = domain.VerdictMismatch
	}
	return result
}

// PricesMatch reports whether source is within tolerance (a fraction) of
// matched. Both sides are compared in whole cents so a deviation of exactly
// the tolerance matches. A zero catalog price only matches a zero shelf price.
func PricesMatch(source, matched, tolerance float64) bool {
	if matched == 0 {
		return source == 0
	}
	diff := math.Round(math.Abs(source-matched) * 100)
	allowed := math.Round(tolerance * math.Abs(matched) * 100)
	return diff <= allowed
}

// RankCandidates drops candidates under threshold and orders the rest by
// score, highest first. Equal scores keep their original order.
func RankCandidates(matches []domain.CatalogMatch, threshold float64) []domain.CatalogMatch {
	ranked := make([]domain.CatalogMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score >= threshold {
			ranked = append(ranked, m)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func failedResult(product domain.ExtractedProduct, err error) domain.ValidationResult {
	return domain.ValidationResult{
		SourceName:  CanonicalName(product.Name),
		SourcePrice: product.Price,
		Status:      domain.StatusNotFound,
		Verdict:     domain.VerdictUnknown,
		Error:       err.Error(),
	}
}
