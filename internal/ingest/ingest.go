// Package ingest loads product CSV exports into a catalog store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/pkg/validator"
)

// DefaultBatchSize is the number of entries written per Upsert call.
const DefaultBatchSize = 500

// Stats summarizes one ingest run.
type Stats struct {
	Files   int
	Rows    int
	Written int
	Skipped int
}

// Ingester reads CSV files and writes their rows to a catalog store.
type Ingester struct {
	writer    catalog.Writer
	source    string
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an ingester writing to w. source names rows whose CSV has no
// source column.
func New(w catalog.Writer, source string, batchSize int, logger *slog.Logger) *Ingester {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Ingester{writer: w, source: source, batchSize: batchSize, logger: logger, now: time.Now}
}

// ErrNoFiles is returned when the pattern matches nothing.
var ErrNoFiles = errors.New("ingest: no csv files matched")

// Run ingests every file matching pattern, in name order. Invalid rows are
// logged and skipped; a store failure stops the run.
func (in *Ingester) Run(ctx context.Context, pattern string) (Stats, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: bad pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return Stats{}, fmt.Errorf("%w: %s", ErrNoFiles, pattern)
	}
	sort.Strings(paths)

	var total Stats
	for _, p := range paths {
		st, err := in.File(ctx, p)
		total.Files++
		total.Rows += st.Rows
		total.Written += st.Written
		total.Skipped += st.Skipped
		if err != nil {
			return total, err
		}
	}

	in.logger.InfoContext(ctx, "ingest finished",
		slog.Int("files", total.Files),
		slog.Int("rows", total.Rows),
		slog.Int("written", total.Written),
		slog.Int("skipped", total.Skipped),
	)
	return total, nil
}

// File ingests a single CSV file.
func (in *Ingester) File(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := ReadCSV(f)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest %s: %w", path, err)
	}

	log := in.logger.With(slog.String("file", path))
	log.InfoContext(ctx, "loading csv", slog.Int("rows", len(rows)))

	scrapedAt := in.now()
	st := Stats{Files: 1, Rows: len(rows)}
	batch := make([]catalog.Entry, 0, in.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := in.writer.Upsert(ctx, batch)
		st.Written += n
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("ingest %s: write batch: %w", path, err)
		}
		return nil
	}

	for _, row := range rows {
		e, err := Entry(row, in.source, scrapedAt)
		if err != nil {
			st.Skipped++
			attrs := []any{slog.Int("line", row.Line), slog.String("error", err.Error())}
			var ve *validator.ValidationError
			if errors.As(err, &ve) {
				attrs = append(attrs, slog.Any("fields", ve.Fields()))
			}
			log.WarnContext(ctx, "skipping invalid row", attrs...)
			continue
		}
		batch = append(batch, e)
		if len(batch) == in.batchSize {
			if err := flush(); err != nil {
				return st, err
			}
		}
	}
	if err := flush(); err != nil {
		return st, err
	}
	return st, nil
}
