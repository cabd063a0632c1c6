package http

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/filter"
	"github.com/fittingroom/storefront/internal/service"
	"github.com/fittingroom/storefront/pkg/httputil"
	"github.com/fittingroom/storefront/pkg/logger"
	"github.com/fittingroom/storefront/pkg/pagination"
)

// maxSearchBody bounds POST /api/search bodies.
const maxSearchBody = 1 << 20

// Health status values reported by GET /api/health.
const (
	StatusHealthy            = "healthy"
	StatusBackendUnreachable = "backend_unreachable"
)

// CatalogHandler handles HTTP requests for the browsing endpoints.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Response DTOs ---

// BrandsResponse is the body of GET /api/brands.
type BrandsResponse struct {
	Brands []domain.BrandSummary `json:"brands"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string       `json:"status"`
	Checks HealthChecks `json:"checks"`
}

// HealthChecks carries the backend probe details.
type HealthChecks struct {
	BackendReachable bool      `json:"backendReachable"`
	Backend          string    `json:"backend"`
	BackendURL       string    `json:"backendUrl"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// --- Handlers ---

// Search handles GET and POST /api/search
//
// GET reads facets from the query string, POST from a JSON body. A body
// that cannot be decoded degrades to an unfiltered search.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	f := filter.Parse(r.URL.Query())

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxSearchBody)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			body = nil
			h.log(r).WarnContext(r.Context(), "search body unreadable, searching unfiltered",
				slog.String("error", err.Error()),
			)
		}
		parsed, err := filter.ParseJSON(body)
		if err != nil {
			h.log(r).WarnContext(r.Context(), "malformed search body, searching unfiltered",
				slog.String("error", err.Error()),
			)
		}
		f = parsed
	}

	result, err := h.service.Search(r.Context(), f)
	if err != nil {
		httputil.WriteErrorWith(w, r, err, h.logger, emptySearchBody(f.Paging()))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// ListProducts handles GET /api/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := filter.Parse(q)

	result, err := h.service.ProductsByBrand(r.Context(), q.Get("brand"), f.Page, f.PageSize)
	if err != nil {
		httputil.WriteErrorWith(w, r, err, h.logger, emptySearchBody(f.Paging()))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetProduct handles GET /api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, product)
}

// ListBrands handles GET /api/brands
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.service.Brands(r.Context())
	if err != nil {
		httputil.WriteErrorWith(w, r, err, h.logger, map[string]any{
			"brands": []domain.BrandSummary{},
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, BrandsResponse{Brands: brands})
}

// Health handles GET /api/health
func (h *CatalogHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.service.Health(r.Context())

	resp := HealthResponse{
		Status: StatusHealthy,
		Checks: HealthChecks{
			BackendReachable: report.Reachable,
			Backend:          report.Backend,
			BackendURL:       report.Address,
			Error:            report.Error,
			Timestamp:        report.Timestamp,
		},
	}
	status := http.StatusOK
	if !report.Reachable {
		resp.Status = StatusBackendUnreachable
		status = http.StatusServiceUnavailable
	}

	httputil.WriteJSON(w, status, resp)
}

func (h *CatalogHandler) log(r *http.Request) *slog.Logger {
	if l := logger.FromContext(r.Context()); l != slog.Default() {
		return l
	}
	return h.logger
}

// emptySearchBody is the well-formed empty listing sent with an error.
func emptySearchBody(p pagination.Params) map[string]any {
	empty := domain.EmptySearchResult(p)
	return map[string]any{
		"results":    []domain.Product{},
		"total":      0,
		"page":       empty.Page,
		"limit":      empty.PageSize,
		"totalPages": empty.TotalPages,
	}
}
