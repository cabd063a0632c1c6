package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/catalog/elasticsearch"
	"github.com/fittingroom/storefront/internal/catalog/memory"
	"github.com/fittingroom/storefront/internal/catalog/postgres"
	"github.com/fittingroom/storefront/internal/catalog/remote"
	"github.com/fittingroom/storefront/internal/catalog/sqlite"
	"github.com/fittingroom/storefront/internal/config"
	"github.com/fittingroom/storefront/pkg/database"
)

// Store is a backend that can be both read and written.
type Store interface {
	catalog.Gateway
	catalog.Writer
}

// OpenGateway builds the catalog backend selected by cfg.Backend.
func OpenGateway(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (catalog.Gateway, error) {
	switch cfg.Backend {
	case catalog.BackendRemote:
		gw, err := remote.New(remote.Config{
			BaseURL: cfg.CatalogAPIURL,
			Timeout: cfg.CatalogTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init remote catalog: %w", err)
		}
		logger.Info("remote catalog initialized",
			slog.String("url", gw.Address()),
			slog.Duration("timeout", cfg.CatalogTimeout),
		)
		return gw, nil

	case catalog.BackendMemory:
		if cfg.SeedFile == "" {
			logger.Info("in-memory catalog initialized")
			return memory.New(logger), nil
		}
		store, err := memory.Load(cfg.SeedFile, logger)
		if err != nil {
			return nil, fmt.Errorf("init memory catalog: %w", err)
		}
		logger.Info("in-memory catalog seeded",
			slog.String("seed_file", cfg.SeedFile),
			slog.Int("records", store.Len()),
		)
		return store, nil

	default:
		return OpenStore(ctx, cfg.Backend, cfg.Stores, reg, logger)
	}
}

// OpenStore builds one of the writable stores: sqlite, postgres or
// elasticsearch.
func OpenStore(ctx context.Context, backend string, stores config.Stores, reg prometheus.Registerer, logger *slog.Logger) (Store, error) {
	switch backend {
	case catalog.BackendSQLite:
		handle := sqlite.NewHandle(stores.SQLite, logger, func(_ context.Context, db *sql.DB) error {
			return database.RegisterSQLMetrics(reg, db, catalog.BackendSQLite)
		})
		logger.Info("sqlite catalog configured",
			slog.String("path", stores.SQLite.Path),
		)
		return sqlite.New(handle, logger), nil

	case catalog.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, &stores.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("init postgres catalog: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres catalog: %w", err)
		}
		if err := database.RegisterPoolMetrics(reg, pool, catalog.BackendPostgres); err != nil {
			logger.Warn("postgres pool metrics not registered", slog.String("error", err.Error()))
		}
		logger.Info("postgres catalog initialized",
			slog.String("address", stores.Postgres.Address()),
		)
		return postgres.New(pool, stores.Postgres.Address(), logger), nil

	case catalog.BackendElasticsearch:
		store, err := elasticsearch.New(stores.Elasticsearch, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch catalog: %w", err)
		}
		if err := store.EnsureIndex(ctx); err != nil {
			logger.Warn("elasticsearch index not ensured, will serve an empty catalog until it exists",
				slog.String("index", store.Index()),
				slog.String("error", err.Error()),
			)
		}
		logger.Info("elasticsearch catalog initialized",
			slog.String("address", store.Address()),
			slog.String("index", store.Index()),
		)
		return store, nil
	}
	return nil, fmt.Errorf("unknown catalog store %q", backend)
}
