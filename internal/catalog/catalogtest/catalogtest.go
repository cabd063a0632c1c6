// Package catalogtest holds a fixture catalog and a behaviour suite every
// catalog.Gateway implementation must pass.
package catalogtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/query"
	apperrors "github.com/fittingroom/storefront/pkg/errors"
)

// Fixture counts.
const (
	CasualInRange = 45
	FixtureSize   = 55
)

var casualBrands = []string{"Arket", "COS", "Ganni"}

// Fixture returns 55 entries: 45 casual pieces priced 20..64, 3 casual
// hoodies priced 95, 5 formal gowns and 2 floral dresses.
func Fixture() []catalog.Entry {
	scraped := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var out []catalog.Entry

	for i := 0; i < CasualInRange; i++ {
		out = append(out, catalog.Entry{
			Source:      "fixture",
			Reference:   fmt.Sprintf("casual-%02d", i),
			Name:        fmt.Sprintf("Casual Tee %02d", i),
			Brand:       casualBrands[i%len(casualBrands)],
			Category:    "tops",
			Price:       float64(20 + i),
			PriceCents:  int64(20+i) * 100,
			Sizes:       "XS,S,M",
			Styles:      "casual,everyday",
			ImageURL:    fmt.Sprintf("https://cdn.example.com/casual-%02d.jpg", i),
			ProductURL:  fmt.Sprintf("https://shop.example.com/p/casual-%02d", i),
			Description: "Relaxed cotton jersey.",
			ScrapedAt:   scraped,
		})
	}
	for i := 0; i < 3; i++ {
		out = append(out, catalog.Entry{
			Source: "fixture", Reference: fmt.Sprintf("hoodie-%d", i),
			Name: fmt.Sprintf("Casual Hoodie %d", i), Brand: "Arket", Category: "knitwear",
			Price: 95, PriceCents: 9500, Sizes: "S,M,L", Styles: "casual", ScrapedAt: scraped,
		})
	}
	for i := 0; i < 5; i++ {
		out = append(out, catalog.Entry{
			Source: "fixture", Reference: fmt.Sprintf("gown-%d", i),
			Name: fmt.Sprintf("Evening Gown %d", i), Brand: "Reformation", Category: "dresses",
			Price: 150, PriceCents: 15000, Sizes: "8,10", Styles: "formal", ScrapedAt: scraped,
		})
	}
	out = append(out,
		catalog.Entry{
			Source: "fixture", Reference: "floral-midi", Name: "Floral Wrap Dress", Brand: "Ganni",
			Category: "midi", Price: 70, PriceCents: 7000, Sizes: "S,M", Styles: "floral,romantic",
			ScrapedAt: scraped,
		},
		catalog.Entry{
			Source: "fixture", Reference: "floral-mini", Name: "Floral Mini Dress", Brand: "Ganni",
			Category: "mini", Price: 70, PriceCents: 7000, Sizes: "S,M", Styles: "floral",
			ScrapedAt: scraped,
		},
	)
	return out
}

// Opener returns a gateway loaded with entries. It should register its own
// cleanup.
type Opener func(t *testing.T, entries []catalog.Entry) catalog.Gateway

func ptr(f float64) *float64 { return &f }

func search(t *testing.T, g catalog.Gateway, f domain.Filter) *domain.SearchResult {
	t.Helper()
	res, err := g.Search(context.Background(), query.Build(f))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, res.Items)
	return res
}

func names(res *domain.SearchResult) []string {
	out := make([]string, 0, len(res.Items))
	for _, p := range res.Items {
		out = append(out, p.Name)
	}
	return out
}

// Run executes the gateway behaviour suite.
func Run(t *testing.T, open Opener) {
	t.Run("paginates filtered search", func(t *testing.T) {
		g := open(t, Fixture())
		f := domain.Filter{Keywords: []string{"casual"}, MinPrice: ptr(20), MaxPrice: ptr(80), Page: 1, PageSize: 20}

		res := search(t, g, f)
		assert.Len(t, res.Items, 20)
		assert.Equal(t, CasualInRange, res.TotalCount)
		assert.Equal(t, 3, res.TotalPages)
		assert.Equal(t, "Casual Tee 44", res.Items[0].Name, "newest first")

		f.Page = 3
		res = search(t, g, f)
		assert.Len(t, res.Items, 5)
		assert.Equal(t, "Casual Tee 00", res.Items[4].Name)

		f.Page = 4
		res = search(t, g, f)
		assert.Empty(t, res.Items)
		assert.Equal(t, CasualInRange, res.TotalCount)
		assert.Equal(t, 3, res.TotalPages)
		assert.Equal(t, 4, res.Page)
	})

	t.Run("unlistable records do not shorten pages", func(t *testing.T) {
		var entries []catalog.Entry
		for i, e := range Fixture() {
			entries = append(entries, e)
			if i%10 == 5 {
				entries = append(entries,
					catalog.Entry{Source: "fixture", Reference: fmt.Sprintf("nobrand-%d", i),
						Name: "Casual Tee without brand", Price: 30, Styles: "casual", ScrapedAt: e.ScrapedAt},
					catalog.Entry{Source: "fixture", Reference: fmt.Sprintf("noname-%d", i),
						Name: "   ", Brand: "Arket", Price: 30, Styles: "casual", ScrapedAt: e.ScrapedAt},
				)
			}
		}
		g := open(t, entries)
		f := domain.Filter{Keywords: []string{"casual"}, MinPrice: ptr(20), MaxPrice: ptr(80), Page: 1, PageSize: 20}

		for page, want := range map[int]int{1: 20, 2: 20, 3: 5} {
			f.Page = page
			res := search(t, g, f)
			assert.Len(t, res.Items, want, "page %d", page)
			assert.Equal(t, CasualInRange, res.TotalCount)
			assert.Equal(t, 3, res.TotalPages)
		}

		brands, err := g.Brands(context.Background())
		require.NoError(t, err)
		for _, b := range brands {
			if b.Brand == "Arket" {
				assert.Equal(t, 18, b.Count)
			}
		}
	})

	t.Run("huge page is empty with real totals", func(t *testing.T) {
		g := open(t, Fixture())
		res := search(t, g, domain.Filter{Page: 922337203685477581, PageSize: 20})
		assert.Empty(t, res.Items)
		assert.Equal(t, FixtureSize, res.TotalCount)
		assert.Equal(t, 3, res.TotalPages)
	})

	t.Run("empty filter lists everything", func(t *testing.T) {
		g := open(t, Fixture())
		res := search(t, g, domain.Filter{PageSize: 100})
		assert.Equal(t, FixtureSize, res.TotalCount)
		assert.Len(t, res.Items, FixtureSize)
	})

	t.Run("keywords are ANDed across fields", func(t *testing.T) {
		g := open(t, Fixture())
		res := search(t, g, domain.Filter{Keywords: []string{"floral", "midi"}})
		assert.Equal(t, []string{"Floral Wrap Dress"}, names(res))
	})

	t.Run("brands are ORed and case-insensitive", func(t *testing.T) {
		g := open(t, Fixture())
		res := search(t, g, domain.Filter{Brands: []string{"ganni", "reformation"}})
		assert.Equal(t, 15+2+5, res.TotalCount)
	})

	t.Run("size matching is substring", func(t *testing.T) {
		g := open(t, Fixture())
		res := search(t, g, domain.Filter{Sizes: []string{"1"}})
		assert.Equal(t, 5, res.TotalCount, `"1" matches the "8,10" gowns`)
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		g := open(t, Fixture())
		res := search(t, g, domain.Filter{Keywords: []string{"%"}})
		assert.Zero(t, res.TotalCount)
		res = search(t, g, domain.Filter{Keywords: []string{"Casual_Tee"}})
		assert.Zero(t, res.TotalCount)
	})

	t.Run("normalizes products", func(t *testing.T) {
		g := open(t, Fixture())
		res := search(t, g, domain.Filter{Keywords: []string{"Casual Tee 07"}})
		require.Len(t, res.Items, 1)

		p := res.Items[0]
		assert.Equal(t, "casual-07", p.ID)
		assert.Equal(t, "COS", p.Brand)
		assert.InDelta(t, 27.0, p.Price, 1e-9)
		assert.Equal(t, "https://cdn.example.com/casual-07.jpg", p.ImageURL)
		assert.Equal(t, "https://shop.example.com/p/casual-07", p.ProductURL)
		assert.Equal(t, "fixture", p.Source)
	})

	t.Run("product lookup", func(t *testing.T) {
		g := open(t, Fixture())
		p, err := g.Product(context.Background(), "gown-3")
		require.NoError(t, err)
		assert.Equal(t, "Evening Gown 3", p.Name)
		assert.InDelta(t, 150.0, p.Price, 1e-9)

		_, err = g.Product(context.Background(), "does-not-exist")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("brand listing", func(t *testing.T) {
		g := open(t, Fixture())
		brands, err := g.Brands(context.Background())
		require.NoError(t, err)

		got := make([]string, 0, len(brands))
		counts := make(map[string]int)
		for _, b := range brands {
			got = append(got, b.Brand)
			counts[b.Brand] = b.Count
		}
		assert.Equal(t, []string{"Arket", "Ganni", "COS", "Reformation"}, got)
		assert.Equal(t, 18, counts["Arket"])
		assert.Equal(t, 17, counts["Ganni"])
		assert.Equal(t, "arket", brands[0].Slug)
		assert.NotEmpty(t, brands[0].ImageURL)
	})

	t.Run("empty catalog", func(t *testing.T) {
		g := open(t, nil)

		brands, err := g.Brands(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, brands)
		assert.Empty(t, brands)

		res := search(t, g, domain.Filter{Keywords: []string{"casual"}})
		assert.Zero(t, res.TotalCount)
		assert.Equal(t, 1, res.TotalPages)
		assert.NoError(t, g.Ping(context.Background()))
	})
}
