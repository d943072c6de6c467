package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blackdoglabs/analytics-platform/internal/auth"
	"github.com/blackdoglabs/analytics-platform/internal/config"
	"github.com/blackdoglabs/analytics-platform/internal/handlers"
	"github.com/blackdoglabs/analytics-platform/internal/store"
)

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /metrics
// Authenticated (Bearer token): /api/v1/events, /api/v1/metrics/summary
func NewRouter(cfg *config.Config, st *store.EventStore, ledger *store.IdempotencyLedger, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Liveness: confirms the process is running. The stores are in-memory,
	// so there is no external dependency to probe.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Prometheus exposition.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth group resolves the caller identity before any core call.
	api := r.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Identities))

	handlers.RegisterEventRoutes(api, st, ledger, logger)
	handlers.RegisterMetricRoutes(api, st, logger)

	return r
}
