package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fittingroom/storefront/internal/service"
	"github.com/fittingroom/storefront/pkg/health"
	"github.com/fittingroom/storefront/pkg/middleware"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName    string
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	PprofCIDRs     []string

	// RateLimiter replaces the in-process limiter when set, e.g. with one
	// shared through Redis.
	RateLimiter func(http.Handler) http.Handler
}

// NewRouter creates a chi router with all storefront routes registered.
// Background middleware work stops when ctx is done.
func NewRouter(
	ctx context.Context,
	catalogService *service.CatalogService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(chimw.Compress(5))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Storefront API endpoints
	h := NewCatalogHandler(catalogService, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(limiter)
		r.Use(middleware.CacheControl(middleware.NoStore))

		r.Get("/health", h.Health)
		r.Get("/brands", h.ListBrands)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/search", h.Search)
		r.Post("/search", h.Search)
	})

	return r
}
