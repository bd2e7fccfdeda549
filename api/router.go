package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/mailscout/api/handler"
	"github.com/use-agent/mailscout/api/middleware"
	"github.com/use-agent/mailscout/cache"
	"github.com/use-agent/mailscout/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics are outside auth so monitoring probes always work.
func NewRouter(lim *handler.Limiter, browsers handler.BrowserCounter, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health, no auth required.
	v1.GET("/health", handler.Health(lim, browsers, startTime))

	// Prometheus scrape endpoint, also open.
	if cfg.Server.MetricsPath != "" {
		r.GET(cfg.Server.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Single lookup
	protected.POST("/emails", handler.Lookup(lim, cc))

	// Batch
	protected.POST("/batch/emails", handler.PostBatch(lim))
	protected.GET("/batch/:id", handler.GetBatch())

	return r
}
