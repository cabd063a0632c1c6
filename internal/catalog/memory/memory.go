// Package memory is an in-process catalog backend used for development,
// demos and as the reference implementation in tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/normalize"
	"github.com/fittingroom/storefront/internal/query"
	"github.com/fittingroom/storefront/pkg/pagination"
	"github.com/fittingroom/storefront/pkg/slug"
)

// document is one stored record with its insertion order.
type document struct {
	rec       normalize.Record
	seq       int
	createdAt time.Time
}

func (d document) Text(f query.Field) string {
	return d.rec.Text(string(f))
}

func (d document) Number(f query.Field) (float64, bool) {
	if f == query.FieldPrice {
		return normalize.PriceOK(d.rec)
	}
	return d.rec.Number(string(f))
}

// Store keeps the catalog in memory. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	docs       []document
	byKey      map[string]int
	seq        int
	normalizer *normalize.Normalizer
	now        func() time.Time
}

// New returns an empty store.
func New(logger *slog.Logger) *Store {
	return &Store{
		byKey:      make(map[string]int),
		normalizer: normalize.New(catalog.BackendMemory, logger),
		now:        time.Now,
	}
}

// Load reads a JSON seed file holding a list of records or a search
// envelope.
func Load(path string, logger *slog.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memory catalog: open seed: %w", err)
	}
	defer func() { _ = f.Close() }()

	env, err := normalize.DecodeEnvelope(f)
	if err != nil {
		return nil, fmt.Errorf("memory catalog: read seed %s: %w", path, err)
	}
	s := New(logger)
	s.Add(env.Records...)
	return s, nil
}

// Add appends raw records. A record whose source and reference match an
// existing one replaces it in place.
func (s *Store) Add(records ...normalize.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.seq++
		if r.Text(idKeys...) == "" {
			r = withID(r, s.seq)
		}
		d := document{rec: r, seq: s.seq, createdAt: parseTime(r.Text("created_at"), s.now())}
		key := r.Text("source") + "\x00" + r.Text("reference")
		if r.Text("reference") != "" {
			if i, ok := s.byKey[key]; ok {
				s.docs[i] = d
				continue
			}
			s.byKey[key] = len(s.docs)
		}
		s.docs = append(s.docs, d)
	}
}

// Upsert implements catalog.Writer.
func (s *Store) Upsert(_ context.Context, entries []catalog.Entry) (int, error) {
	records := make([]normalize.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record())
	}
	s.Add(records...)
	return len(records), nil
}

var idKeys = []string{"product_id", "reference", "id"}

// withID copies r and gives it a stable id so search and lookup agree.
func withID(r normalize.Record, id int) normalize.Record {
	out := make(normalize.Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out["id"] = id
	return out
}

func parseTime(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

func (s *Store) Name() string    { return catalog.BackendMemory }
func (s *Store) Address() string { return "memory://" }

// Search filters with query.Match and orders newest first. Records the
// normalizer would drop are excluded before paging.
func (s *Store) Search(ctx context.Context, q query.Query) (*domain.SearchResult, error) {
	where := q.Listable().Where

	s.mu.RLock()
	matched := make([]document, 0)
	for _, d := range s.docs {
		if query.Match(where, d) {
			matched = append(matched, d)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].createdAt.Equal(matched[j].createdAt) {
			return matched[i].createdAt.After(matched[j].createdAt)
		}
		return matched[i].seq > matched[j].seq
	})

	page := pagination.Slice(matched, q.Page)
	records := make([]normalize.Record, 0, len(page.Items))
	for _, d := range page.Items {
		records = append(records, d.rec)
	}
	return domain.NewSearchResult(s.normalizer.Products(ctx, records), page.TotalCount, q.Page), nil
}

// Product finds a record by its normalized id.
func (s *Store) Product(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.docs {
		if d.rec.Text(idKeys...) != id {
			continue
		}
		if p, ok := s.normalizer.Product(ctx, d.rec); ok {
			return &p, nil
		}
	}
	return nil, catalog.ProductNotFound(id)
}

// Brands groups records by brand.
func (s *Store) Brands(_ context.Context) ([]domain.BrandSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[string]int)
	out := catalog.EmptyBrands()
	for _, d := range s.docs {
		brand := d.rec.Text("brand")
		if brand == "" || d.rec.Text("name") == "" {
			continue
		}
		i, ok := index[brand]
		if !ok {
			i = len(out)
			index[brand] = i
			out = append(out, domain.BrandSummary{Brand: brand, Slug: slug.Generate(brand)})
		}
		out[i].Count++
		if out[i].ImageURL == "" {
			out[i].ImageURL = firstImage(d.rec)
		}
	}
	domain.SortBrands(out)
	return out, nil
}

func firstImage(r normalize.Record) string {
	p, ok := normalize.Product(r, 0)
	if !ok {
		return ""
	}
	return strings.TrimSpace(p.ImageURL)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
