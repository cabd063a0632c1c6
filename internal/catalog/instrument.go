package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/query"
	apperrors "github.com/fittingroom/storefront/pkg/errors"
)

var (
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_backend_requests_total",
		Help: "Catalog backend calls by backend, operation and outcome.",
	}, []string{"backend", "operation", "outcome"})

	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_backend_request_duration_seconds",
		Help:    "Catalog backend call latency.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"backend", "operation"})
)

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeUpstream    = "upstream_error"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case apperrors.IsBackendUnavailable(err):
		return OutcomeUnavailable
	case errors.Is(err, apperrors.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, apperrors.ErrUpstream):
		return OutcomeUpstream
	}
	return OutcomeError
}

type instrumented struct {
	Gateway
}

// Instrument records request counts and latency for every gateway call.
func Instrument(g Gateway) Gateway {
	return &instrumented{Gateway: g}
}

func (g *instrumented) observe(op string, start time.Time, err error) {
	backendRequests.WithLabelValues(g.Name(), op, outcome(err)).Inc()
	backendDuration.WithLabelValues(g.Name(), op).Observe(time.Since(start).Seconds())
}

func (g *instrumented) Search(ctx context.Context, q query.Query) (res *domain.SearchResult, err error) {
	defer func(start time.Time) { g.observe("search", start, err) }(time.Now())
	return g.Gateway.Search(ctx, q)
}

func (g *instrumented) Product(ctx context.Context, id string) (p *domain.Product, err error) {
	defer func(start time.Time) { g.observe("product", start, err) }(time.Now())
	return g.Gateway.Product(ctx, id)
}

func (g *instrumented) Brands(ctx context.Context) (b []domain.BrandSummary, err error) {
	defer func(start time.Time) { g.observe("brands", start, err) }(time.Now())
	return g.Gateway.Brands(ctx)
}

func (g *instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { g.observe("ping", start, err) }(time.Now())
	return g.Gateway.Ping(ctx)
}
