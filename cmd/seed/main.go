// Command seed fills a catalog store with a deterministic demo catalog, or
// writes it as a JSON seed file for the memory backend.
//
//	seed [-n 10000] [-seed 42] [-target sqlite|postgres|elasticsearch]
//	seed -out data/seed.json
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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fittingroom/storefront/internal/app"
	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/config"
	"github.com/fittingroom/storefront/internal/seed"
	"github.com/fittingroom/storefront/pkg/logger"
)

func main() {
	cfg, err := config.LoadIngest()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	n := flag.Int("n", 10000, "number of products to generate")
	rngSeed := flag.Int64("seed", seed.DefaultSeed, "random seed")
	target := flag.String("target", cfg.Target, "store to write to: "+strings.Join(config.IngestTargets, ", "))
	out := flag.String("out", "", "write a JSON seed file instead of a store")
	flag.Parse()

	cfg.Target = strings.ToLower(*target)
	if err := cfg.Validate(); err != nil && *out == "" {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New("storefront-seed", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	entries := seed.Generate(*n, *rngSeed, time.Now())
	log.Info("catalog generated", slog.Int("products", len(entries)), slog.Int64("seed", *rngSeed))

	if *out != "" {
		err = writeFile(*out, entries)
	} else {
		err = writeStore(ctx, cfg, entries, log)
	}
	if err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func writeFile(path string, entries []catalog.Entry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return seed.WriteJSON(f, entries)
}

func writeStore(ctx context.Context, cfg *config.IngestConfig, entries []catalog.Entry, log *slog.Logger) error {
	store, err := app.OpenStore(ctx, cfg.Target, cfg.Stores, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	written := 0
	for start := 0; start < len(entries); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(entries))
		n, err := store.Upsert(ctx, entries[start:end])
		written += n
		if err != nil {
			return fmt.Errorf("write batch at %d: %w", start, err)
		}
		log.Debug("batch written", slog.Int("written", written), slog.Int("total", len(entries)))
	}

	log.Info("seed complete",
		slog.String("target", store.Name()),
		slog.String("address", store.Address()),
		slog.Int("written", written),
	)
	return nil
}
