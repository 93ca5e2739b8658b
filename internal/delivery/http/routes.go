package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	v1.Use(TimeoutMiddleware(cfg.Server.RequestTimeout))
	{
		v1.POST("/products/extract", handler.ExtractProducts)
		v1.POST("/intent", handler.ParseIntent)
		v1.POST("/validations", handler.ValidateShelf)
		v1.POST("/messages", handler.HandleMessage)
		v1.GET("/stores/:storeID/products", handler.LookupProducts)

		catalog := v1.Group("/catalog")
		{
			catalog.POST("/points", handler.IndexCatalog)
			catalog.DELETE("/files/:fileID", handler.DeleteCatalogFile)
			catalog.GET("/count", handler.CountCatalog)
		}
	}

	return router
}
