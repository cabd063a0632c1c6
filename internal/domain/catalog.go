package domain

import (
	"sort"
	"strings"

	"github.com/fittingroom/storefront/pkg/pagination"
)

// Filter is the canonical search intent built from one request. The zero
// value apart from paging matches the whole catalog.
type Filter struct {
	Keywords     []string `json:"keywords,omitempty"`
	MinPrice     *float64 `json:"min_price,omitempty"`
	MaxPrice     *float64 `json:"max_price,omitempty"`
	Sizes        []string `json:"sizes,omitempty"`
	Brands       []string `json:"brands,omitempty"`
	HeightBucket string   `json:"height_bucket,omitempty"`
	Page         int      `json:"page"`
	PageSize     int      `json:"per_page"`
}

// Unconstrained reports whether no facet narrows the result set.
// HeightBucket does not count; no store holds height data.
func (f Filter) Unconstrained() bool {
	return len(f.Keywords) == 0 && len(f.Sizes) == 0 && len(f.Brands) == 0 &&
		f.MinPrice == nil && f.MaxPrice == nil
}

// Paging returns the normalized page request.
func (f Filter) Paging() pagination.Params {
	return pagination.New(f.Page, f.PageSize)
}

// Product is the canonical, backend-agnostic product shape.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand"`
	Price        float64 `json:"price"`
	ImageURL     string  `json:"image_url,omitempty"`
	ProductURL   string  `json:"product_url,omitempty"`
	Color        string  `json:"color,omitempty"`
	Availability string  `json:"availability,omitempty"`
	Category     string  `json:"category,omitempty"`
	Source       string  `json:"source,omitempty"`
}

// SearchResult is one page of products plus totals across all pages.
type SearchResult struct {
	Items      []Product `json:"results"`
	TotalCount int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"limit"`
	TotalPages int       `json:"totalPages"`
}

// NewSearchResult reconciles items against the backend's total for p.
func NewSearchResult(items []Product, total int, p pagination.Params) *SearchResult {
	r := pagination.Reconcile(items, total, p)
	return &SearchResult{
		Items:      r.Items,
		TotalCount: r.TotalCount,
		Page:       r.Page,
		PageSize:   r.PageSize,
		TotalPages: r.TotalPages,
	}
}

// EmptySearchResult is the well-formed payload for a failed search.
func EmptySearchResult(p pagination.Params) *SearchResult {
	return NewSearchResult(nil, 0, p)
}

// BrandSummary is one entry of the brand listing.
type BrandSummary struct {
	Brand    string `json:"brand"`
	Slug     string `json:"slug"`
	Count    int    `json:"count"`
	ImageURL string `json:"image_url,omitempty"`
}

// SortBrands orders by count descending, then brand name.
func SortBrands(brands []BrandSummary) {
	sort.SliceStable(brands, func(i, j int) bool {
		if brands[i].Count != brands[j].Count {
			return brands[i].Count > brands[j].Count
		}
		return strings.ToLower(brands[i].Brand) < strings.ToLower(brands[j].Brand)
	})
}
