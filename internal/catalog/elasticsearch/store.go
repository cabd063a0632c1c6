// Package elasticsearch is the search-cluster catalog backend.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/normalize"
	"github.com/fittingroom/storefront/internal/query"
	"github.com/fittingroom/storefront/pkg/database"
	"github.com/fittingroom/storefront/pkg/slug"
)

// Config selects the cluster and index.
type Config struct {
	URLs     []string      `env:"URL" envSeparator:"," envDefault:"http://localhost:9200"`
	Index    string        `env:"INDEX" envDefault:"fittingroom_products"`
	Username string        `env:"USERNAME"`
	Password string        `env:"PASSWORD"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// Store implements catalog.Gateway and catalog.Writer over one index.
type Store struct {
	client     *elasticsearch.Client
	index      string
	addresses  []string
	normalizer *normalize.Normalizer
	logger     *slog.Logger
	now        func() time.Time
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source normalize.Record `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Brands struct {
			Buckets []brandBucket `json:"buckets"`
		} `json:"brands"`
	} `json:"aggregations"`
}

type brandBucket struct {
	Key       string `json:"key"`
	DocCount  int    `json:"doc_count"`
	WithImage struct {
		First struct {
			Hits struct {
				Hits []struct {
					Source struct {
						ImageURL string `json:"image_url"`
					} `json:"_source"`
				} `json:"hits"`
			} `json:"hits"`
		} `json:"first"`
	} `json:"with_image"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a client for cfg. No request is made; an unreachable cluster
// surfaces per request as BackendUnavailable.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	esCfg := elasticsearch.Config{
		Addresses: cfg.URLs,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.Timeout > 0 {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = cfg.Timeout
		esCfg.Transport = tr
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return &Store{
		client:     client,
		index:      cfg.Index,
		addresses:  cfg.URLs,
		normalizer: normalize.New(catalog.BackendElasticsearch, logger),
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *Store) Name() string    { return catalog.BackendElasticsearch }
func (s *Store) Address() string { return strings.Join(s.addresses, ",") + "/" + s.index }

// Index is the name of the products index.
func (s *Store) Index() string { return s.index }

// responseError converts a non-2xx response. Server-side failures are
// reported as an unavailable backend.
func (s *Store) responseError(op string, res *esapi.Response) error {
	var errResp errorResponse
	msg := res.Status()
	if body, err := io.ReadAll(res.Body); err == nil && json.Unmarshal(body, &errResp) == nil && errResp.Error.Type != "" {
		msg = errResp.Error.Type + ": " + errResp.Error.Reason
	}
	err := fmt.Errorf("elasticsearch %s: %s", op, msg)
	if res.StatusCode >= http.StatusInternalServerError {
		return catalog.Unavailable(s.Name(), err)
	}
	return err
}

func indexMissing(res *esapi.Response) bool {
	return res.StatusCode == http.StatusNotFound
}

// search posts body to the index. A missing index reads as no hits.
func (s *Store) search(ctx context.Context, op string, body map[string]any) (_ *searchResponse, err error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}

	ctx, end := database.TraceQuery(ctx, database.SystemElasticsearch, op, string(data))
	defer func() { end(err) }()

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, catalog.Unavailable(s.Name(), err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		if indexMissing(res) {
			return &searchResponse{}, nil
		}
		return nil, s.responseError(op, res)
	}

	var out searchResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}
	return &out, nil
}

// MaxResultWindow is the index's default index.max_result_window. Pages
// reaching past it are answered with the total alone.
const MaxResultWindow = 10000

func (s *Store) Search(ctx context.Context, q query.Query) (*domain.SearchResult, error) {
	body, err := query.Elastic(q.Listable(), query.IndexFields)
	if err != nil {
		return nil, err
	}
	if q.Page.Offset+q.Page.Limit() > MaxResultWindow {
		body["from"] = 0
		body["size"] = 0
	}
	resp, err := s.search(ctx, "search_products", body)
	if err != nil {
		return nil, err
	}

	records := make([]normalize.Record, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		records = append(records, h.Source)
	}
	return domain.NewSearchResult(s.normalizer.Products(ctx, records), resp.Hits.Total.Value, q.Page), nil
}

func (s *Store) Product(ctx context.Context, id string) (*domain.Product, error) {
	resp, err := s.search(ctx, "get_product", map[string]any{
		"query": map[string]any{"term": map[string]any{"id": id}},
		"sort":  []any{map[string]any{"created_at": map[string]any{"order": "desc", "unmapped_type": "date_nanos"}}},
		"size":  1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Hits.Hits) == 0 {
		return nil, catalog.ProductNotFound(id)
	}
	p, ok := s.normalizer.Product(ctx, resp.Hits.Hits[0].Source)
	if !ok {
		return nil, catalog.ProductNotFound(id)
	}
	return &p, nil
}

// brandsQuery buckets products by brand and picks the first image.
var brandsQuery = map[string]any{
	"size": 0,
	"query": map[string]any{"bool": map[string]any{
		"filter":   []any{map[string]any{"exists": map[string]any{"field": "name"}}},
		"must_not": []any{map[string]any{"term": map[string]any{"name": ""}}},
	}},
	"aggs": map[string]any{
		"brands": map[string]any{
			"terms": map[string]any{"field": "brand", "size": 10000},
			"aggs": map[string]any{
				"with_image": map[string]any{
					"filter": map[string]any{"exists": map[string]any{"field": "image_url"}},
					"aggs": map[string]any{
						"first": map[string]any{"top_hits": map[string]any{
							"size":    1,
							"_source": []string{"image_url"},
							"sort":    []any{map[string]any{"created_at": map[string]any{"order": "asc", "unmapped_type": "date_nanos"}}},
						}},
					},
				},
			},
		},
	},
}

func (s *Store) Brands(ctx context.Context) ([]domain.BrandSummary, error) {
	resp, err := s.search(ctx, "list_brands", brandsQuery)
	if err != nil {
		return nil, err
	}

	out := catalog.EmptyBrands()
	for _, b := range resp.Aggregations.Brands.Buckets {
		brand := strings.TrimSpace(b.Key)
		if brand == "" {
			continue
		}
		summary := domain.BrandSummary{Brand: brand, Slug: slug.Generate(brand), Count: b.DocCount}
		if hits := b.WithImage.First.Hits.Hits; len(hits) > 0 {
			summary.ImageURL = normalize.AbsoluteURL(hits[0].Source.ImageURL)
		}
		out = append(out, summary)
	}
	domain.SortBrands(out)
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return catalog.Unavailable(s.Name(), err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return catalog.Unavailable(s.Name(), fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status()))
	}
	return nil
}

func (s *Store) Close() error { return nil }

// EnsureIndex creates the index with its mapping when it does not exist.
func (s *Store) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return catalog.Unavailable(s.Name(), err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return catalog.Unavailable(s.Name(), err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return s.responseError("create index", res)
	}

	s.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", s.index))
	return nil
}

// DeleteIndex drops the index. A missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context) error {
	res, err := s.client.Indices.Delete([]string{s.index}, s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return catalog.Unavailable(s.Name(), err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && !indexMissing(res) {
		return s.responseError("delete index", res)
	}
	return nil
}

// DocumentID keys a document by source and reference so a re-ingested
// entry replaces its previous version.
func DocumentID(e catalog.Entry) string {
	return e.Source + ":" + e.Reference
}

func (s *Store) document(e catalog.Entry, created time.Time) normalize.Record {
	doc := e.Record()
	for _, k := range []string{"name", "brand"} {
		if v := strings.TrimSpace(doc.Text(k)); v != "" {
			doc[k] = v
		} else {
			delete(doc, k)
		}
	}
	doc["id"] = e.Reference
	if e.ProductID != "" {
		doc["id"] = e.ProductID
	}
	doc["created_at"] = created.UTC().Format(time.RFC3339Nano)
	return doc
}

// Upsert bulk-indexes entries, creating the index first when needed. Each
// entry gets a distinct created_at so insertion order is preserved.
func (s *Store) Upsert(ctx context.Context, entries []catalog.Entry) (n int, err error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if err := s.EnsureIndex(ctx); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	base := s.now()
	for i, e := range entries {
		action := map[string]any{"index": map[string]any{"_index": s.index, "_id": DocumentID(e)}}
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(s.document(e, base.Add(time.Duration(i)*time.Microsecond))); err != nil {
			return 0, fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	ctx, end := database.TraceQuery(ctx, database.SystemElasticsearch, "bulk_upsert", "_bulk")
	defer func() { end(err) }()

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, catalog.Unavailable(s.Name(), err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return 0, s.responseError("bulk", res)
	}

	var bulk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return 0, fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}
	if bulk.Errors {
		var msgs []string
		for _, item := range bulk.Items {
			if item.Index.Error.Type != "" {
				msgs = append(msgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return len(entries) - len(msgs), fmt.Errorf("elasticsearch bulk: partial errors: %s", strings.Join(msgs, "; "))
	}

	s.logger.InfoContext(ctx, "bulk indexed products", slog.Int("count", len(entries)), slog.String("index", s.index))
	return len(entries), nil
}
