package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/query"
	apperrors "github.com/fittingroom/storefront/pkg/errors"
	"github.com/fittingroom/storefront/pkg/logger"
)

// CatalogService implements the browsing operations on top of the active
// catalog gateway.
type CatalogService struct {
	gateway catalog.Gateway
	logger  *slog.Logger
	now     func() time.Time
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(gw catalog.Gateway, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		gateway: gw,
		logger:  logger,
		now:     time.Now,
	}
}

// Backend returns the name of the active backend.
func (s *CatalogService) Backend() string {
	return s.gateway.Name()
}

// Search runs f against the catalog. On error the result is nil; callers
// answer with domain.EmptySearchResult(f.Paging()).
func (s *CatalogService) Search(ctx context.Context, f domain.Filter) (*domain.SearchResult, error) {
	q := query.Build(f)

	res, err := s.gateway.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.WithContext(ctx, s.logger).DebugContext(ctx, "catalog searched",
		slog.String("backend", s.gateway.Name()),
		slog.Int("keywords", len(f.Keywords)),
		slog.Int("page", res.Page),
		slog.Int("results", len(res.Items)),
		slog.Int("total", res.TotalCount),
	)
	return res, nil
}

// ProductsByBrand lists one brand's products, newest first. An empty brand
// lists the whole catalog.
func (s *CatalogService) ProductsByBrand(ctx context.Context, brand string, page, perPage int) (*domain.SearchResult, error) {
	f := domain.Filter{Page: page, PageSize: perPage}
	if b := strings.TrimSpace(brand); b != "" {
		f.Brands = []string{b}
	}
	res, err := s.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("products by brand: %w", err)
	}
	return res, nil
}

// Product returns one product by id.
func (s *CatalogService) Product(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	p, err := s.gateway.Product(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Brands lists every brand with its product count, most stocked first.
// The slice is never nil.
func (s *CatalogService) Brands(ctx context.Context) ([]domain.BrandSummary, error) {
	brands, err := s.gateway.Brands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	if len(brands) == 0 {
		return catalog.EmptyBrands(), nil
	}

	out := make([]domain.BrandSummary, len(brands))
	copy(out, brands)
	domain.SortBrands(out)
	return out, nil
}

// HealthReport describes backend reachability.
type HealthReport struct {
	Reachable bool
	Backend   string
	Address   string
	Error     string
	Timestamp time.Time
}

// Health pings the active backend.
func (s *CatalogService) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Reachable: true,
		Backend:   s.gateway.Name(),
		Address:   s.gateway.Address(),
		Timestamp: s.now().UTC(),
	}
	if err := s.gateway.Ping(ctx); err != nil {
		report.Reachable = false
		report.Error = err.Error()
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "catalog backend unreachable",
			slog.String("backend", report.Backend),
			slog.String("error", err.Error()),
		)
	}
	return report
}
