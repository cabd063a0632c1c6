// Package remote is the catalog backend that forwards every request to an
// upstream catalog HTTP service.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/normalize"
	"github.com/fittingroom/storefront/internal/query"
	apperrors "github.com/fittingroom/storefront/pkg/errors"
	"github.com/fittingroom/storefront/pkg/httpclient"
)

const (
	serviceName = "catalog upstream"
	maxBody     = 32 << 20
)

// Upstream routes.
const (
	searchPath  = "/api/search"
	productPath = "/api/product/"
	brandsPath  = "/api/brands"
)

// Config addresses the upstream service.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker httpclient.CircuitBreakerConfig
}

// Client implements catalog.Gateway against the upstream service. Requests
// are never retried; a failing upstream trips the circuit breaker.
type Client struct {
	base       *url.URL
	doer       httpclient.Doer
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// New validates the base URL and builds the breaker-wrapped client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote catalog: parse base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("remote catalog: base url %q must be absolute http(s)", cfg.BaseURL)
	}

	hc := httpclient.DefaultConfig()
	hc.MaxRetries = 0
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = httpclient.DefaultCircuitBreakerConfig("catalog-" + base.Host)
	}

	return &Client{
		base:       base,
		doer:       httpclient.NewCircuitBreakerClient(httpclient.New(hc), cfg.Breaker, logger),
		normalizer: normalize.New(catalog.BackendRemote, logger),
		logger:     logger,
	}, nil
}

func (c *Client) Name() string    { return catalog.BackendRemote }
func (c *Client) Address() string { return c.base.String() }

// endpoint joins an already escaped path onto the base URL.
func (c *Client) endpoint(escapedPath string, params url.Values) string {
	u := *c.base
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + escapedPath
	u.Path, _ = url.PathUnescape(u.RawPath)
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// get performs one GET. A nil error means a 2xx response whose body the
// caller must close.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, params), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("remote catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, c.transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	return resp, nil
}

// transportError maps a failed exchange. A 5xx answer is an upstream
// error; network failures and an open breaker mean the backend is down.
func (c *Client) transportError(err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return httpclient.UpstreamFromStatus(se, serviceName)
	}
	return catalog.Unavailable(c.Name(), err)
}

func decodeFailure(err error) error {
	return &apperrors.AppError{
		Code:    "UPSTREAM_ERROR",
		Message: "catalog upstream returned an unreadable response",
		Status:  http.StatusBadGateway,
		Err:     errors.Join(apperrors.ErrUpstream, err),
	}
}

func body(resp *http.Response) io.Reader {
	return io.LimitReader(resp.Body, maxBody)
}

// Search forwards the filter as query parameters. When the upstream omits a
// total, the count of records seen up to this page stands in for it.
func (c *Client) Search(ctx context.Context, q query.Query) (*domain.SearchResult, error) {
	resp, err := c.get(ctx, searchPath, query.RemoteParams(q))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	env, err := normalize.DecodeEnvelope(body(resp))
	if err != nil {
		return nil, decodeFailure(err)
	}

	total := env.Total
	if !env.HasTotal {
		total = q.Page.Offset + len(env.Records)
	}
	return domain.NewSearchResult(c.normalizer.Products(ctx, env.Records), total, q.Page), nil
}

func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	resp, err := c.get(ctx, productPath+url.PathEscape(id), nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, catalog.ProductNotFound(id)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	rec, err := normalize.DecodeRecord(body(resp))
	if err != nil {
		return nil, decodeFailure(err)
	}
	p, ok := c.normalizer.Product(ctx, rec)
	if !ok {
		return nil, catalog.ProductNotFound(id)
	}
	return &p, nil
}

func (c *Client) Brands(ctx context.Context) ([]domain.BrandSummary, error) {
	resp, err := c.get(ctx, brandsPath, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	brands, err := normalize.DecodeBrands(body(resp))
	if err != nil {
		return nil, decodeFailure(err)
	}
	domain.SortBrands(brands)
	return brands, nil
}

// Ping checks that the upstream answers its brand listing.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, brandsPath, nil)
	if err != nil {
		if apperrors.IsBackendUnavailable(err) || errors.Is(err, context.Canceled) {
			return err
		}
		return catalog.Unavailable(c.Name(), err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	return resp.Body.Close()
}

func (c *Client) Close() error { return nil }
