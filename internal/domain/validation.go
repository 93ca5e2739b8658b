package domain

// Status classifies how an extracted product compares to the catalog.
type Status string

const (
	StatusMatch     Status = "MATCH"
	StatusPriceDiff Status = "PRICE_DIFF"
	StatusNotFound  Status = "NOT_FOUND"
	StatusNoPrice   Status = "NO_PRICE"
)

// Verdict is the user-facing outcome of a validation.
type Verdict string

const (
	VerdictOK       Verdict = "OK"
	VerdictMismatch Verdict = "MISMATCH"
	VerdictUnknown  Verdict = "UNKNOWN"
)

// Symbol returns the display glyph for the verdict.
func (v Verdict) Symbol() string {
	switch v {
	case VerdictOK:
		return "✅"
	case VerdictMismatch:
		return "❌"
	default:
		return "⚠️"
	}
}

// ValidationResult is the adjudication of one extracted product.
type ValidationResult struct {
	SourceName   string   `json:"sourceName"`
	SourcePrice  *float64 `json:"sourcePrice"`
	MatchedName  *string  `json:"matchedName"`
	MatchedPrice *float64 `json:"matchedPrice"`
	MatchedCode  string   `json:"matchedCode,omitempty"`
	Status       Status   `json:"status"`
	PriceDelta   *float64 `json:"priceDelta"`
	MatchScore   *float64 `json:"matchScore"`
	Verdict      Verdict  `json:"verdict"`
	// Error is set when the catalog lookup for this product failed,
	// which distinguishes it from a genuine NOT_FOUND.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the result stems from a capability failure.
func (r ValidationResult) Failed() bool {
	return r.Error != ""
}

// Summary holds deduplicated results and their counts.
type Summary struct {
	Results []ValidationResult `json:"results"`
	Counts  map[Status]int     `json:"counts"`
	Failed  int                `json:"failed"`
	Total   int                `json:"total"`
}

// Correct returns the number of MATCH results.
func (s Summary) Correct() int { return s.Counts[StatusMatch] }

// WithDifference returns the number of PRICE_DIFF results.
func (s Summary) WithDifference() int { return s.Counts[StatusPriceDiff] }

// Unresolved returns NOT_FOUND plus NO_PRICE results.
func (s Summary) Unresolved() int {
	return s.Counts[StatusNotFound] + s.Counts[StatusNoPrice]
}
