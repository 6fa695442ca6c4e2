// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"skugen/internal/core/sku"
	"skugen/internal/infrastructure/http/v1/handlers"
	"skugen/internal/infrastructure/http/v1/middleware"
	"skugen/internal/infrastructure/storage/postgres"
	"skugen/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is used by health endpoints; may be nil in tests.
	Pool *postgres.Pool

	// HealthChecks are extra readiness checks (e.g. Redis).
	HealthChecks []handlers.Check

	Version string

	// Logger for request logging
	Logger *logger.Logger

	// WebhookSecret verifies webhook HMAC signatures.
	WebhookSecret string

	// JWTValidator for admin session tokens
	JWTValidator middleware.JWTValidator

	Intake    handlers.ProductIntake
	Products  handlers.ProductSkus
	Sessions  handlers.SessionRemover
	Counters  handlers.CounterService
	Reserver  handlers.Reserver
	ScriptTag handlers.ScriptTagInstaller
	ScriptSrc string
	Codec     sku.Codec
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version, cfg.HealthChecks...)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.Webhook(cfg.WebhookSecret))
	{
		h := handlers.NewWebhookHandler(baseHandler, cfg.Intake, cfg.Sessions)
		webhooks.POST("/products/create", h.ProductCreated)
		webhooks.POST("/app/uninstalled", h.AppUninstalled)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	{
		counter := handlers.NewCounterHandler(baseHandler, cfg.Counters)
		v1.GET("/counter", counter.Get)
		v1.PUT("/counter", counter.Set)

		skus := handlers.NewSkuHandler(baseHandler, cfg.Reserver, cfg.Products, cfg.Codec)
		v1.POST("/skus/reserve", skus.Reserve)
		v1.GET("/products/:id/skus", skus.ProductRecords)
		v1.POST("/products/:id/resync", skus.Resync)

		scriptTag := handlers.NewScriptTagHandler(baseHandler, cfg.ScriptTag, cfg.ScriptSrc)
		v1.POST("/scripttag", scriptTag.Install)
	}

	return router
}
