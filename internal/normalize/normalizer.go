package normalize

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/pkg/logger"
)

var recordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_records_dropped_total",
	Help: "Catalog records dropped during normalization for lacking a name or brand.",
}, []string{"backend"})

// Normalizer is Batch with drop accounting for one backend.
type Normalizer struct {
	backend string
	logger  *slog.Logger
}

// New returns a Normalizer that attributes drops to backend.
func New(backend string, l *slog.Logger) *Normalizer {
	if l == nil {
		l = slog.Default()
	}
	return &Normalizer{backend: backend, logger: l}
}

// Products normalizes a batch, logging and counting any drops.
func (n *Normalizer) Products(ctx context.Context, records []Record) []domain.Product {
	products, dropped := Batch(records)
	if dropped > 0 {
		recordsDropped.WithLabelValues(n.backend).Add(float64(dropped))
		logger.WithContext(ctx, n.logger).WarnContext(ctx, "dropped malformed catalog records",
			slog.String("backend", n.backend),
			slog.Int("dropped", dropped),
			slog.Int("received", len(records)),
		)
	}
	return products
}

// Product normalizes a single record. A dropped record reports false.
func (n *Normalizer) Product(ctx context.Context, r Record) (domain.Product, bool) {
	products := n.Products(ctx, []Record{r})
	if len(products) == 0 {
		return domain.Product{}, false
	}
	return products[0], true
}
