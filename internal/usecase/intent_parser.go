package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/shelfcheck/backend/internal/domain"
)

// minPhraseLength is the shortest search phrase worth sending to the catalog.
const minPhraseLength = 3

// storePattern recognizes one way of writing a store number.
type storePattern struct {
	name string
	re   *regexp.Regexp
}

// storePatterns are tried most specific first. Within a pattern, the first
// match whose number is a valid store id wins. The keyword pattern is
// case-insensitive and the others only match digits.
var storePatterns = []storePattern{
	{name: "keyword", re: regexp.MustCompile(`(?i)\b(?:tienda|store|sucursal)\s*[#:]?\s*(\d+)`)},
	{name: "hash", re: regexp.MustCompile(`#(\d{3,4})\b`)},
	{name: "bare", re: regexp.MustCompile(`\b(\d{3,4})\b`)},
}

// Compiled patterns for search phrase extraction
var (
	mentionPattern = regexp.MustCompile(`<@[A-Za-z0-9]+>`)

	// A preposition left dangling after a store reference is cut out.
	trailingStorePrepPattern = regexp.MustCompile(`(?i)\s*\b(?:en|de|del|para|in|at|for|from)(?:\s+(?:la|el|the))?\s*$`)

	leadingArticlePattern      = regexp.MustCompile(`(?i)^(?:el|la|los|las|de|del|un|una|the|of|a|an)\s+`)
	trailingPrepositionPattern = regexp.MustCompile(`(?i)\s+(?:en|de|del|la|el|in|at|for|of|the)$`)
)

// phraseStripRules remove everything around the product name, in order.
// Filler phrases are listed longest first so a short phrase never eats part
// of a longer one.
var phraseStripRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:\b(?:en|de|del|para|in|at|for|from)\s+(?:la\s+|el\s+|the\s+)?)?\b(?:tienda|store|sucursal)\s*[#:]?\s*\d+`),
	regexp.MustCompile(`#\d+`),
	regexp.MustCompile(`[¿?¡!,;:"'()*_]|\.(?:\s|$)`),
	regexp.MustCompile(`(?i)^\s*(?:hola|hello|hi|hey|buen[oa]s\s+(?:d[ií]as|tardes|noches))\b`),
	regexp.MustCompile(`(?i)\b(?:por\s+favor|please)\b`),
	regexp.MustCompile(`(?i)\b(?:tr[aá]eme|dame|d[ií]me|mu[eé]strame|b[uú]scame|busca|consulta|quiero\s+saber|necesito\s+saber|me\s+das|me\s+dices)\s+(?:el\s+)?precio\s+del?(?:\s+(?:la|el|los|las))?\b`),
	regexp.MustCompile(`(?i)\bcu[aá]l\s+es\s+el\s+precio\s+del?(?:\s+(?:la|el|los|las))?\b`),
	regexp.MustCompile(`(?i)\bcu[aá]nto\s+(?:cuesta|cuestan|vale|valen)(?:\s+(?:la|el|los|las))?\b`),
	regexp.MustCompile(`(?i)\b(?:what\s+is|what's|give\s+me|show\s+me|tell\s+me|get\s+me)\s+the\s+price\s+(?:of|for)(?:\s+the)?\b`),
	regexp.MustCompile(`(?i)\bhow\s+much\s+(?:is|are|does|do)(?:\s+(?:the|a|an))?\b`),
	regexp.MustCompile(`(?i)\b(?:search|look)\s+(?:for|up)\b`),
	regexp.MustCompile(`(?i)\bprecio\s+del?(?:\s+(?:la|el|los|las))?\b`),
	regexp.MustCompile(`(?i)\bprice\s+(?:of|for)(?:\s+the)?\b`),
	regexp.MustCompile(`(?i)\b(?:precio|price|cost|costs)\b`),
	regexp.MustCompile(`(?i)\b(?:busca|buscar|consulta|dame|tr[aá]eme)\b`),
}

// greetingPattern matches greeting or help vocabulary on accent-folded,
// lower-cased text.
var greetingPattern = regexp.MustCompile(`\b(?:hola|hello|hi|hey|buenos dias|buenas tardes|buenas noches|ayuda|help|que puedes|para que sirves|que haces|como funciona)\b`)

// IntentParser extracts a store number and a product phrase from chat text
type IntentParser struct {
	logger *zap.Logger
}

// NewIntentParser creates a new intent parser
func NewIntentParser(logger *zap.Logger) *IntentParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentParser{logger: logger}
}

// Parse returns the store query found in text and whether the message is a
// greeting or help request. A recognized store number always makes the
// message a product query.
func (p *IntentParser) Parse(text string) (domain.StoreQuery, bool) {
	clean := mentionPattern.ReplaceAllString(text, " ")

	storeID, span := FindStoreID(clean)
	query := domain.StoreQuery{
		StoreID:      storeID,
		SearchPhrase: extractSearchPhrase(clean, span),
	}
	greeting := isGreeting(clean, query.HasStore())

	p.logger.Debug("parsed intent",
		zap.Int("store_id", query.StoreID),
		zap.String("phrase", query.SearchPhrase),
		zap.Bool("greeting", greeting))

	return query, greeting
}

// FindStoreID returns the first valid store number in text and the byte span
// it was read from, or zero and nil.
func FindStoreID(text string) (int, []int) {
	for _, pattern := range storePatterns {
		for _, loc := range pattern.re.FindAllStringSubmatchIndex(text, -1) {
			id, err := strconv.Atoi(text[loc[2]:loc[3]])
			if err != nil || !domain.ValidStoreID(id) {
				continue
			}
			return id, []int{loc[0], loc[1]}
		}
	}
	return 0, nil
}

// extractSearchPhrase strips the store reference, filler phrases and
// articles from text and returns the canonical product phrase, or "".
func extractSearchPhrase(text string, storeSpan []int) string {
	phrase := text
	if storeSpan != nil {
		before := trailingStorePrepPattern.ReplaceAllString(text[:storeSpan[0]], "")
		phrase = before + " " + text[storeSpan[1]:]
	}

	for _, rule := range phraseStripRules {
		phrase = rule.ReplaceAllString(phrase, " ")
	}

	phrase = strings.Join(strings.Fields(phrase), " ")
	for {
		trimmed := leadingArticlePattern.ReplaceAllString(phrase, "")
		trimmed = trailingPrepositionPattern.ReplaceAllString(trimmed, "")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == phrase {
			break
		}
		phrase = trimmed
	}

	if utf8.RuneCountInString(phrase) < minPhraseLength {
		return ""
	}
	return CanonicalName(phrase)
}

func isGreeting(text string, hasStore bool) bool {
	if hasStore {
		return false
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "?" {
		return true
	}
	return greetingPattern.MatchString(foldAccents(strings.ToLower(trimmed)))
}

// foldAccents removes combining marks so "días" matches "dias".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
