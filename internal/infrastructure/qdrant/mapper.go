package qdrant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shelfcheck/backend/internal/domain"
)

// Payload field names. They match the collection layout the catalog loader writes.
const (
	fieldName         = "nombre"
	fieldPrice        = "precio"
	fieldStoreID      = "tienda_id"
	fieldCode         = "codigo"
	fieldCategory     = "categoria"
	fieldPresentation = "presentacion"
	fieldFileID       = "file_id"
)

// keywordFields get payload indexes so filtered search stays fast.
var keywordFields = []string{fieldStoreID, fieldFileID}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type fieldMatch struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

type filter struct {
	Must []fieldMatch `json:"must"`
}

type searchBody struct {
	Vector         []float32 `json:"vector"`
	Filter         *filter   `json:"filter,omitempty"`
	Limit          int       `json:"limit"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
	WithPayload    bool      `json:"with_payload"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// toFilter converts a domain filter; nil means no restriction.
func toFilter(f domain.Filter) *filter {
	var out filter
	add := func(key, value string) {
		if value == "" {
			return
		}
		m := fieldMatch{Key: key}
		m.Match.Value = value
		out.Must = append(out.Must, m)
	}
	add(fieldStoreID, f.StoreID)
	add(fieldFileID, f.FileID)
	if len(out.Must) == 0 {
		return nil
	}
	return &out
}

func toSearchBody(req domain.SearchRequest) searchBody {
	body := searchBody{
		Vector:      req.Vector,
		Filter:      toFilter(req.Filter),
		Limit:       req.Limit,
		WithPayload: true,
	}
	if req.ScoreThreshold > 0 {
		threshold := req.ScoreThreshold
		body.ScoreThreshold = &threshold
	}
	return body
}

func toPoint(p domain.CatalogPoint) point {
	payload := map[string]any{
		fieldName:    p.Entry.Name,
		fieldStoreID: p.Entry.StoreID,
	}
	if p.Entry.Price != nil {
		payload[fieldPrice] = *p.Entry.Price
	}
	setIfPresent(payload, fieldCode, p.Entry.Code)
	setIfPresent(payload, fieldCategory, p.Entry.Category)
	setIfPresent(payload, fieldPresentation, p.Entry.Presentation)
	setIfPresent(payload, fieldFileID, p.Entry.FileID)

	return point{ID: p.ID, Vector: p.Vector, Payload: payload}
}

// toMatch maps a scored point back to a catalog match.
func toMatch(sp scoredPoint) domain.CatalogMatch {
	return domain.CatalogMatch{
		ID:           idString(sp.ID),
		Name:         payloadString(sp.Payload, fieldName),
		Price:        payloadFloat(sp.Payload, fieldPrice),
		StoreID:      payloadString(sp.Payload, fieldStoreID),
		Code:         payloadString(sp.Payload, fieldCode),
		Category:     payloadString(sp.Payload, fieldCategory),
		Presentation: payloadString(sp.Payload, fieldPresentation),
		Score:        sp.Score,
	}
}

func setIfPresent(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func payloadString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// payloadFloat reads numeric or numeric-string prices; anything else is nil.
func payloadFloat(payload map[string]any, key string) *float64 {
	switch v := payload[key].(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
