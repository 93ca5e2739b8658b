package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
	"github.com/shelfcheck/backend/internal/infrastructure/export"
	"github.com/shelfcheck/backend/internal/usecase"
)

const (
	serviceName = "shelfcheck-backend"
	version     = "1.0.0"
)

// Services groups the usecases served over HTTP
type Services struct {
	Parser     *usecase.IntentParser
	Extractor  *usecase.ProductExtractor
	Normalizer *usecase.Normalizer
	Matcher    *usecase.MatchingService
	Catalog    *usecase.CatalogService
	Messages   *usecase.MessageService
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	services Services
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{services: services, logger: logger}
}

type extractRequest struct {
	Text string `json:"text" binding:"required"`
}

type extractResponse struct {
	Products []domain.ExtractedProduct `json:"products"`
	Stats    usecase.NormalizeStats    `json:"stats"`
}

type intentRequest struct {
	Text string `json:"text" binding:"required"`
}

type intentResponse struct {
	Query    domain.StoreQuery `json:"query"`
	HasStore bool              `json:"hasStore"`
	Greeting bool              `json:"greeting"`
}

type validationRequest struct {
	StoreID     int                       `json:"storeId"`
	Products    []domain.ExtractedProduct `json:"products"`
	ModelOutput string                    `json:"modelOutput"`
}

type validationResponse struct {
	StoreID int                       `json:"storeId"`
	Results []domain.ValidationResult `json:"results"`
	Summary domain.Summary            `json:"summary"`
	Table   string                    `json:"table"`
}

type lookupResponse struct {
	Query   domain.StoreQuery     `json:"query"`
	Matches []domain.CatalogMatch `json:"matches"`
	Text    string                `json:"text"`
}

type indexRequest struct {
	Entries []domain.CatalogEntry `json:"entries" binding:"required,dive"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": version,
	})
}

// ExtractProducts recovers and normalizes the products in a model answer
func (h *Handler) ExtractProducts(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidRequest(err))
		return
	}

	extracted := h.services.Extractor.Extract(req.Text)
	products, stats := h.services.Normalizer.Normalize(extracted)

	c.JSON(http.StatusOK, extractResponse{Products: products, Stats: stats})
}

// ParseIntent reads the store number and search phrase out of a message
func (h *Handler) ParseIntent(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidRequest(err))
		return
	}

	query, greeting := h.services.Parser.Parse(req.Text)
	c.JSON(http.StatusOK, intentResponse{
		Query:    query,
		HasStore: query.HasStore(),
		Greeting: greeting,
	})
}

// ValidateShelf checks shelf prices against a store's catalog. Products may
// be sent already structured or as raw model output. With ?format=xlsx the
// summary is returned as a workbook.
func (h *Handler) ValidateShelf(c *gin.Context) {
	var req validationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidRequest(err))
		return
	}
	if !domain.ValidStoreID(req.StoreID) {
		h.respondError(c, domain.ErrStoreIDRequired)
		return
	}

	products := req.Products
	if strings.TrimSpace(req.ModelOutput) != "" {
		products = append(products, h.services.Extractor.Extract(req.ModelOutput)...)
	}
	products = h.services.Normalizer.NormalizeAndDedupe(products)

	results, err := h.services.Matcher.Validate(c.Request.Context(), products, req.StoreID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	summary := usecase.Summarize(results)

	if c.Query("format") == "xlsx" {
		data, err := export.ValidationXLSX(summary, req.StoreID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+export.Filename(req.StoreID)+`"`)
		c.Data(http.StatusOK, export.ContentType, data)
		return
	}

	c.JSON(http.StatusOK, validationResponse{
		StoreID: req.StoreID,
		Results: results,
		Summary: summary,
		Table:   usecase.FormatValidationTable(summary, req.StoreID),
	})
}

// HandleMessage routes one chat message
func (h *Handler) HandleMessage(c *gin.Context) {
	var msg usecase.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		h.respondError(c, invalidRequest(err))
		return
	}

	reply, err := h.services.Messages.Handle(c.Request.Context(), msg)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// LookupProducts runs a semantic catalog search within one store
func (h *Handler) LookupProducts(c *gin.Context) {
	storeID, err := strconv.Atoi(c.Param("storeID"))
	if err != nil {
		h.respondError(c, domain.ErrStoreIDRequired)
		return
	}

	query := domain.StoreQuery{StoreID: storeID, SearchPhrase: strings.TrimSpace(c.Query("q"))}
	matches, err := h.services.Catalog.Lookup(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if matches == nil {
		matches = []domain.CatalogMatch{}
	}

	c.JSON(http.StatusOK, lookupResponse{
		Query:   query,
		Matches: matches,
		Text:    usecase.FormatSearchResults(matches, usecase.CanonicalName(query.SearchPhrase), storeID),
	})
}

// IndexCatalog embeds and stores catalog entries
func (h *Handler) IndexCatalog(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidRequest(err))
		return
	}

	indexed, err := h.services.Catalog.Index(c.Request.Context(), req.Entries)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": len(req.Entries), "indexed": indexed})
}

// DeleteCatalogFile removes every entry loaded from one source file
func (h *Handler) DeleteCatalogFile(c *gin.Context) {
	fileID := c.Param("fileID")
	deleted, err := h.services.Catalog.DeleteByFile(c.Request.Context(), fileID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fileId": fileID, "deleted": deleted})
}

// CountCatalog counts indexed entries, optionally by store or file
func (h *Handler) CountCatalog(c *gin.Context) {
	filter := domain.Filter{
		StoreID: strings.TrimSpace(c.Query("store_id")),
		FileID:  strings.TrimSpace(c.Query("file_id")),
	}
	count, err := h.services.Catalog.Count(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func invalidRequest(err error) error {
	return errors.Join(domain.ErrInvalidRequest, err)
}

// respondError maps domain errors to status codes. Internal details are
// logged, not returned.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStoreIDRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   domain.ErrStoreIDRequired.Error(),
			"message": usecase.StoreRequiredMessage(""),
		})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": domain.ErrRateLimited.Error()})
	case errors.Is(err, domain.ErrCapabilityFailure):
		h.logger.Error("upstream capability failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": domain.ErrCapabilityFailure.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
