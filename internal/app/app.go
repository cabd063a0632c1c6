package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/config"
	handler "github.com/fittingroom/storefront/internal/handler/http"
	"github.com/fittingroom/storefront/internal/service"
	"github.com/fittingroom/storefront/pkg/database"
	"github.com/fittingroom/storefront/pkg/health"
	"github.com/fittingroom/storefront/pkg/middleware"
	"github.com/fittingroom/storefront/pkg/tracing"
)

// ServiceName labels logs, metrics and spans.
const ServiceName = "storefront"

// App wires together all dependencies and runs the storefront API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	gateway        catalog.Gateway
	redisClient    *redis.Client
	httpServer     *http.Server
	stopBackground context.CancelFunc
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

	// Initialize the catalog backend based on configuration.
	gw, err := OpenGateway(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}
	gw = catalog.Instrument(gw)

	// Build the service layer.
	catalogService := service.NewCatalogService(gw, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("catalog_"+gw.Name(), gw.Ping)

	// Shared rate limiting across replicas when Redis is configured.
	var redisClient *redis.Client
	var limiter func(http.Handler) http.Handler
	if cfg.RateLimitRedis.Enabled() {
		redisClient, err = database.NewRedisClient(ctx, cfg.RateLimitRedis)
		if err != nil {
			_ = gw.Close()
			_ = tracerShutdown(context.Background())
			return nil, fmt.Errorf("rate limit redis: %w", err)
		}
		healthHandler.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		if cfg.RateLimitRPS > 0 {
			limiter = middleware.RedisRateLimit(
				middleware.NewRedisLimiter(redisClient, cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitWindow),
				logger,
			)
		}
		logger.Info("rate limiting shared through redis", slog.Duration("window", cfg.RateLimitWindow))
	}

	// HTTP router.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	router := handler.NewRouter(bgCtx, catalogService, healthHandler, handler.RouterConfig{
		ServiceName: ServiceName,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExposedHeaders: []string{"X-Correlation-ID"},
		},
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RateLimiter:    limiter,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		gateway:        gw,
		redisClient:    redisClient,
		httpServer:     httpServer,
		stopBackground: stopBackground,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("backend", a.gateway.Name()),
			slog.String("backend_address", a.gateway.Address()),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order. The HTTP server drains
// in-flight requests and pending spans are flushed before the catalog
// backend and Redis are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.stopBackground()

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.gateway.Close(); err != nil {
		a.logger.Error("catalog close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
