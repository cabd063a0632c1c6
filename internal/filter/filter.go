// Package filter turns loose request input into a domain.Filter.
//
// Input arrives from several UI entry points that disagree on parameter
// names and encodings. Every alias is accepted and malformed values fall
// back to "no constraint" instead of failing the request.
package filter

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/pkg/pagination"
)

// Accepted parameter names, in precedence order.
var (
	listKeywordKeys = []string{"styles", "keywords"}
	textKeywordKeys = []string{"aesthetic", "q"}
	minPriceKeys    = []string{"min_price", "minPrice"}
	maxPriceKeys    = []string{"max_price", "maxPrice"}
	sizeKeys        = []string{"sizes", "size"}
	brandKeys       = []string{"brands", "brand"}
	heightKeys      = []string{"heightBucket", "height", "heights"}
	pageKeys        = []string{"page"}
	pageSizeKeys    = []string{"per_page", "perPage", "page_size", "pageSize", "limit"}
)

// Parse builds a Filter from query-string style values.
func Parse(v url.Values) domain.Filter {
	var keywords []string
	for _, k := range listKeywordKeys {
		for _, raw := range v[k] {
			keywords = append(keywords, strings.Split(raw, ",")...)
		}
	}
	for _, k := range textKeywordKeys {
		for _, raw := range v[k] {
			keywords = append(keywords, strings.Fields(raw)...)
		}
	}

	f := domain.Filter{
		Keywords:     dedupe(keywords),
		MinPrice:     parsePrice(first(v, minPriceKeys)),
		MaxPrice:     parsePrice(first(v, maxPriceKeys)),
		Sizes:        dedupe(splitAll(v, sizeKeys)),
		Brands:       dedupe(splitAll(v, brandKeys)),
		HeightBucket: firstListValue(first(v, heightKeys)),
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		f.MinPrice, f.MaxPrice = f.MaxPrice, f.MinPrice
	}

	p := pagination.New(parseInt(first(v, pageKeys)), parseInt(first(v, pageSizeKeys)))
	f.Page, f.PageSize = p.Page, p.PageSize
	return f
}

// first returns the first non-blank value under any of keys.
func first(v url.Values, keys []string) string {
	for _, k := range keys {
		for _, raw := range v[k] {
			if s := strings.TrimSpace(raw); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstListValue(s string) string {
	head, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(head)
}

func splitAll(v url.Values, keys []string) []string {
	var out []string
	for _, k := range keys {
		for _, raw := range v[k] {
			out = append(out, strings.Split(raw, ",")...)
		}
	}
	return out
}

// dedupe trims entries, drops empty ones and removes case-insensitive
// duplicates while keeping first-seen order and spelling.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parsePrice returns nil for anything that is not a finite, non-negative
// number. A leading currency sign is tolerated.
func parsePrice(s string) *float64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	return &f
}

// parseInt accepts integers and integral decimals ("2", "2.0"). Anything
// else yields 0, which pagination treats as "use the default".
func parseInt(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}
