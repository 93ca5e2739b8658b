package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
)

const defaultMessageTTL = 60 * time.Second

// ReplyKind tells the caller what a message was routed to.
type ReplyKind string

const (
	ReplyDuplicate     ReplyKind = "duplicate"
	ReplyIgnored       ReplyKind = "ignored"
	ReplyHelp          ReplyKind = "help"
	ReplyStoreRequired ReplyKind = "store_required"
	ReplyLookup        ReplyKind = "lookup"
	ReplyValidation    ReplyKind = "validation"
	ReplyNoProducts    ReplyKind = "no_products"
)

// Message is one incoming chat message. ModelOutput carries the vision
// model's answer when the message came with a shelf photo.
type Message struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Text        string `json:"text"`
	ModelOutput string `json:"modelOutput,omitempty"`
}

// Reply is the routed outcome of a message. Parts are ready to post in order.
type Reply struct {
	Kind    ReplyKind                 `json:"kind"`
	Parts   []string                  `json:"parts,omitempty"`
	Query   domain.StoreQuery         `json:"query"`
	Matches []domain.CatalogMatch     `json:"matches,omitempty"`
	Summary *domain.Summary           `json:"summary,omitempty"`
	Results []domain.ValidationResult `json:"-"`
}

// CatalogLookup finds catalog products for a store query.
type CatalogLookup interface {
	Lookup(ctx context.Context, query domain.StoreQuery) ([]domain.CatalogMatch, error)
}

// MessageServiceConfig holds configuration for the message service
type MessageServiceConfig struct {
	MessageTTL    time.Duration
	AllowedUsers  []string
	MaxReplyChars int
}

// MessageService routes chat messages to help, catalog lookups or shelf
// validation, suppressing duplicate deliveries.
type MessageService struct {
	parser     *IntentParser
	extractor  *ProductExtractor
	normalizer *Normalizer
	matcher    *MatchingService
	catalog    CatalogLookup
	inFlight   domain.ExpiringSet
	ttl        time.Duration
	allowed    map[string]bool
	maxChars   int
	logger     *zap.Logger
}

// NewMessageService creates a new message service
func NewMessageService(
	parser *IntentParser,
	extractor *ProductExtractor,
	normalizer *Normalizer,
	matcher *MatchingService,
	catalog CatalogLookup,
	inFlight domain.ExpiringSet,
	config MessageServiceConfig,
	logger *zap.Logger,
) *MessageService {
	ttl := config.MessageTTL
	if ttl <= 0 {
		ttl = defaultMessageTTL
	}

	maxChars := config.MaxReplyChars
	if maxChars <= 0 {
		maxChars = DefaultMaxMessageLength
	}

	var allowed map[string]bool
	if len(config.AllowedUsers) > 0 {
		allowed = make(map[string]bool, len(config.AllowedUsers))
		for _, u := range config.AllowedUsers {
			if u = strings.TrimSpace(u); u != "" {
				allowed[u] = true
			}
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &MessageService{
		parser:     parser,
		extractor:  extractor,
		normalizer: normalizer,
		matcher:    matcher,
		catalog:    catalog,
		inFlight:   inFlight,
		ttl:        ttl,
		allowed:    allowed,
		maxChars:   maxChars,
		logger:     logger,
	}
}

// Handle routes one message. Capability failures are returned as errors;
// everything the user can fix comes back as a reply.
func (s *MessageService) Handle(ctx context.Context, msg Message) (*Reply, error) {
	if msg.ID != "" && s.inFlight != nil {
		added, err := s.inFlight.Add(ctx, "msg:"+msg.ID, s.ttl)
		switch {
		case err != nil:
			// Suppression is best effort; process the message anyway.
			s.logger.Warn("duplicate check failed", zap.String("message_id", msg.ID), zap.Error(err))
		case !added:
			s.logger.Debug("skipping duplicate delivery", zap.String("message_id", msg.ID))
			return &Reply{Kind: ReplyDuplicate}, nil
		}
	}

	if s.allowed != nil && !s.allowed[msg.UserID] {
		s.logger.Info("ignoring message from unlisted user", zap.String("user_id", msg.UserID))
		return &Reply{Kind: ReplyIgnored}, nil
	}

	query, greeting := s.parser.Parse(msg.Text)

	if strings.TrimSpace(msg.ModelOutput) != "" {
		return s.handleShelf(ctx, msg, query)
	}

	if greeting {
		return s.reply(ReplyHelp, query, HelpMessage()), nil
	}

	if len(strings.TrimSpace(msg.Text)) < minPhraseLength || query.SearchPhrase == "" {
		return &Reply{Kind: ReplyIgnored, Query: query}, nil
	}

	if !query.HasStore() {
		return s.reply(ReplyStoreRequired, query, StoreRequiredMessage(query.SearchPhrase)), nil
	}

	matches, err := s.catalog.Lookup(ctx, query)
	if err != nil {
		return nil, err
	}

	reply := s.reply(ReplyLookup, query, FormatSearchResults(matches, query.SearchPhrase, query.StoreID))
	reply.Matches = matches
	return reply, nil
}

func (s *MessageService) handleShelf(ctx context.Context, msg Message, query domain.StoreQuery) (*Reply, error) {
	if !query.HasStore() {
		return s.reply(ReplyStoreRequired, query, StoreRequiredMessage("")), nil
	}

	products := s.normalizer.NormalizeAndDedupe(s.extractor.Extract(msg.ModelOutput))
	if len(products) == 0 {
		return s.reply(ReplyNoProducts, query,
			"⚠️ No se pudieron identificar productos en la imagen.\nAsegúrate de que la imagen muestre claramente los productos y precios."), nil
	}

	results, err := s.matcher.Validate(ctx, products, query.StoreID)
	if err != nil {
		return nil, fmt.Errorf("validate %d products for store %d: %w", len(products), query.StoreID, err)
	}

	summary := Summarize(results)
	s.logger.Info("shelf validated",
		zap.String("message_id", msg.ID),
		zap.Int("store_id", query.StoreID),
		zap.Int("matches", summary.Correct()),
		zap.Int("price_diffs", summary.WithDifference()),
		zap.Int("unresolved", summary.Unresolved()))

	reply := s.reply(ReplyValidation, query, FormatValidationTable(summary, query.StoreID))
	reply.Summary = &summary
	reply.Results = results
	return reply, nil
}

func (s *MessageService) reply(kind ReplyKind, query domain.StoreQuery, text string) *Reply {
	return &Reply{Kind: kind, Query: query, Parts: SplitMessage(text, s.maxChars)}
}
