// Package catalog defines the gateway every catalog backend implements.
//
// Exactly one backend serves a process, chosen by configuration. Each one
// renders the built query for its store, hands raw records to the
// normalizer and reconciles the page against the reported total, so
// callers see the same SearchResult and error taxonomy whichever is active.
package catalog

import (
	"context"
	"time"

	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/normalize"
	"github.com/fittingroom/storefront/internal/query"
)

// Backend names accepted by configuration.
const (
	BackendRemote        = "remote"
	BackendSQLite        = "sqlite"
	BackendPostgres      = "postgres"
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"
)

// Gateway is the read-only catalog contract.
//
// Errors are *apperrors.AppError values: BackendUnavailable when the store
// cannot be reached, Upstream for a non-success answer, NotFound for an
// unknown product.
type Gateway interface {
	// Name is the backend name used in logs and metrics.
	Name() string
	// Address describes where the backend lives, without credentials.
	Address() string
	Search(ctx context.Context, q query.Query) (*domain.SearchResult, error)
	Product(ctx context.Context, id string) (*domain.Product, error)
	Brands(ctx context.Context) ([]domain.BrandSummary, error)
	Ping(ctx context.Context) error
	Close() error
}

// Entry is one product row as written by ingestion.
type Entry struct {
	Source       string    `json:"source" validate:"required"`
	Reference    string    `json:"reference" validate:"required"`
	ProductID    string    `json:"product_id,omitempty"`
	Name         string    `json:"name" validate:"required"`
	Brand        string    `json:"brand" validate:"required"`
	Category     string    `json:"category,omitempty"`
	Color        string    `json:"color,omitempty"`
	Price        float64   `json:"price" validate:"gte=0"`
	PriceCents   int64     `json:"price_cents" validate:"gte=0"`
	Currency     string    `json:"currency,omitempty"`
	Availability string    `json:"availability,omitempty"`
	ImageURL     string    `json:"image_url,omitempty" validate:"omitempty,http_url"`
	ProductURL   string    `json:"product_url,omitempty" validate:"omitempty,http_url"`
	Sizes        string    `json:"sizes,omitempty"`
	Colors       string    `json:"colors,omitempty"`
	Styles       string    `json:"styles,omitempty"`
	Description  string    `json:"description,omitempty"`
	Raw          string    `json:"-"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// Record is the raw form of e, as a store would hand it back.
func (e Entry) Record() normalize.Record {
	r := normalize.Record{
		"source":      e.Source,
		"reference":   e.Reference,
		"name":        e.Name,
		"brand":       e.Brand,
		"price":       e.Price,
		"price_cents": e.PriceCents,
	}
	optional := map[string]string{
		"product_id":   e.ProductID,
		"category":     e.Category,
		"color":        e.Color,
		"currency":     e.Currency,
		"availability": e.Availability,
		"image_url":    e.ImageURL,
		"product_url":  e.ProductURL,
		"sizes":        e.Sizes,
		"colors":       e.Colors,
		"styles":       e.Styles,
		"description":  e.Description,
	}
	for k, v := range optional {
		if v != "" {
			r[k] = v
		}
	}
	if !e.ScrapedAt.IsZero() {
		r["scraped_at"] = e.ScrapedAt.UTC().Format(time.RFC3339)
	}
	return r
}

// Writer stores entries, replacing any existing entry with the same
// source and reference.
type Writer interface {
	Upsert(ctx context.Context, entries []Entry) (int, error)
}
