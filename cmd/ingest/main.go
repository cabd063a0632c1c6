// Command ingest loads scraped product CSV files into a catalog store.
//
//	ingest [-target sqlite|postgres|elasticsearch] [-source name] [glob ...]
//
// Without a glob argument data/processed/*.csv is read.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fittingroom/storefront/internal/app"
	"github.com/fittingroom/storefront/internal/config"
	"github.com/fittingroom/storefront/internal/ingest"
	"github.com/fittingroom/storefront/pkg/database"
	"github.com/fittingroom/storefront/pkg/logger"
)

const defaultPattern = "data/processed/*.csv"

func main() {
	cfg, err := config.LoadIngest()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	target := flag.String("target", cfg.Target, "store to write to: "+strings.Join(config.IngestTargets, ", "))
	source := flag.String("source", cfg.Source, "source name for rows without a source column")
	batch := flag.Int("batch", cfg.BatchSize, "entries written per store call")
	flag.Parse()

	cfg.Target, cfg.Source, cfg.BatchSize = strings.ToLower(*target), *source, *batch
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New("storefront-ingest", cfg.LogLevel, cfg.LogFormat)
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), log)

	patterns := flag.Args()
	if len(patterns) == 0 {
		patterns = []string{defaultPattern}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, patterns, log); err != nil {
		log.Error("ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.IngestConfig, patterns []string, log *slog.Logger) error {
	store, err := app.OpenStore(ctx, cfg.Target, cfg.Stores, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store close error", slog.String("error", err.Error()))
		}
	}()

	in := ingest.New(store, cfg.Source, cfg.BatchSize, log)

	var total ingest.Stats
	for _, pattern := range patterns {
		stats, err := in.Run(ctx, pattern)
		total.Files += stats.Files
		total.Rows += stats.Rows
		total.Written += stats.Written
		total.Skipped += stats.Skipped
		if err != nil {
			return err
		}
	}

	log.Info("ingest complete",
		slog.String("target", store.Name()),
		slog.String("address", store.Address()),
		slog.Int("files", total.Files),
		slog.Int("rows", total.Rows),
		slog.Int("written", total.Written),
		slog.Int("skipped", total.Skipped),
	)
	return nil
}
