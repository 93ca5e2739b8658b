package usecase

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
)

// Compiled patterns used while recovering model output
var (
	fenceOpenPattern  = regexp.MustCompile("^```(?:json|JSON)?\\s*")
	fenceClosePattern = regexp.MustCompile("\\s*```$")

	// Last-resort scan for name/price pairs that survived intact
	namePricePattern = regexp.MustCompile(`(?i)"(?:nombre|name)"\s*:\s*"([^"]+)"[^}]*?"(?:precio|price)"\s*:\s*(\d+(?:\.\d+)?)`)

	nonPriceCharsPattern = regexp.MustCompile(`[^\d.]`)
)

// Accepted keys, Spanish first. The vision prompt asks for Spanish keys but
// some models answer in English.
var (
	groupListKeys    = []string{"categorias", "categorías", "categories"}
	productListKeys  = []string{"productos", "products", "items"}
	categoryKeys     = []string{"categoria", "categoría", "category"}
	nameKeys         = []string{"nombre", "name", "producto", "product"}
	priceKeys        = []string{"precio", "price"}
	presentationKeys = []string{"presentacion", "presentación", "presentation", "size"}
	notesKeys        = []string{"notas", "notes", "observaciones"}
)

// recoveryStage is one structural attempt at decoding model output.
type recoveryStage struct {
	name    string
	recover func(text string) (any, bool)
}

// recoveryStages run in order; the first one that decodes wins.
var recoveryStages = []recoveryStage{
	{name: "direct", recover: decodeJSON},
	{name: "balance", recover: func(text string) (any, bool) {
		return decodeJSON(balanceBrackets(text))
	}},
	{name: "truncate", recover: func(text string) (any, bool) {
		cut, ok := truncateAtLastObject(text)
		if !ok {
			return nil, false
		}
		return decodeJSON(cut)
	}},
}

// ProductExtractor recovers product records from generative model text
type ProductExtractor struct {
	logger *zap.Logger
}

// NewProductExtractor creates a new extractor
func NewProductExtractor(logger *zap.Logger) *ProductExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductExtractor{logger: logger}
}

// Extract returns the product records found in raw. It never fails: text
// that cannot be recovered by any stage yields an empty slice.
func (e *ProductExtractor) Extract(raw string) []domain.ExtractedProduct {
	text := stripFences(raw)
	if text == "" {
		e.logger.Warn("empty model output", zap.Error(domain.ErrMalformedInput))
		return []domain.ExtractedProduct{}
	}

	for _, stage := range recoveryStages {
		value, ok := stage.recover(text)
		if !ok {
			continue
		}
		products := make([]domain.ExtractedProduct, 0)
		flattenProducts(value, domain.DefaultCategory, &products)
		e.logger.Debug("decoded model output",
			zap.String("stage", stage.name),
			zap.Int("products", len(products)))
		return products
	}

	products := scanNamePricePairs(text)
	if len(products) == 0 {
		e.logger.Warn("could not recover products from model output",
			zap.Int("length", len(text)),
			zap.Error(domain.ErrMalformedInput))
		return products
	}

	e.logger.Info("recovered products with regex scan", zap.Int("products", len(products)))
	return products
}

// ParsePrice coerces a decoded JSON value into a price. Nil means no price
// or a negative one; a zero price is returned as a pointer to 0.
func ParsePrice(v any) *float64 {
	var f float64
	switch p := v.(type) {
	case float64:
		f = p
	case float32:
		f = float64(p)
	case int:
		f = float64(p)
	case int64:
		f = float64(p)
	case json.Number:
		parsed, err := p.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		cleaned := nonPriceCharsPattern.ReplaceAllString(p, "")
		if cleaned == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f < 0 {
		return nil
	}
	return &f
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	text = fenceOpenPattern.ReplaceAllString(text, "")
	text = fenceClosePattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func decodeJSON(text string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case []any, map[string]any:
		return v, true
	default:
		return nil, false
	}
}

// balanceBrackets drops a trailing comma and appends the closers needed for
// every brace or bracket still open, innermost first. Brackets inside string
// literals are ignored.
func balanceBrackets(text string) string {
	text = strings.TrimRight(text, " \t\r\n,")

	var open []byte
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, '}')
		case '[':
			open = append(open, ']')
		case '}', ']':
			if n := len(open); n > 0 && open[n-1] == c {
				open = open[:n-1]
			}
		}
	}

	var b strings.Builder
	b.Grow(len(text) + len(open))
	b.WriteString(text)
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteByte(open[i])
	}
	return b.String()
}

// truncateAtLastObject cuts text after the last complete object in a list
// and rebalances what remains.
func truncateAtLastObject(text string) (string, bool) {
	idx := strings.LastIndex(text, "},")
	if idx < 0 {
		return "", false
	}
	return balanceBrackets(text[:idx+1]), true
}

func scanNamePricePairs(text string) []domain.ExtractedProduct {
	products := make([]domain.ExtractedProduct, 0)
	for _, m := range namePricePattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if IsSentinelName(name) {
			continue
		}
		products = append(products, domain.ExtractedProduct{
			Name:     name,
			Price:    ParsePrice(m[2]),
			Category: domain.DefaultCategory,
		})
	}
	return products
}

// flattenProducts walks categories and products. An object holding a product
// list is a category; an object with a name and no list, or an empty one, is
// a product.
func flattenProducts(v any, category string, out *[]domain.ExtractedProduct) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			flattenProducts(item, category, out)
		}
	case map[string]any:
		if groups, ok := firstList(node, groupListKeys); ok {
			flattenProducts(groups, category, out)
			return
		}
		if items, ok := firstList(node, productListKeys); ok && (len(items) > 0 || firstString(node, nameKeys) == "") {
			groupCategory := firstString(node, categoryKeys)
			if groupCategory == "" {
				groupCategory = category
			}
			flattenProducts(items, groupCategory, out)
			return
		}
		name := firstString(node, nameKeys)
		if IsSentinelName(name) {
			return
		}
		productCategory := firstString(node, categoryKeys)
		if productCategory == "" {
			productCategory = category
		}
		*out = append(*out, domain.ExtractedProduct{
			Name:         name,
			Price:        ParsePrice(firstValue(node, priceKeys)),
			Presentation: firstString(node, presentationKeys),
			Category:     productCategory,
			Notes:        firstString(node, notesKeys),
		})
	}
}

func firstValue(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstList(m map[string]any, keys []string) ([]any, bool) {
	for _, k := range keys {
		if list, ok := m[k].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func firstString(m map[string]any, keys []string) string {
	switch v := firstValue(m, keys).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
