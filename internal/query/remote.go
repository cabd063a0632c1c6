package query

import (
	"net/url"
	"strconv"
	"strings"
)

// RemoteParams renders q as upstream query parameters. Canonical names are
// sent alongside the legacy aliases older upstreams read, so either kind of
// service sees the same filter.
func RemoteParams(q Query) url.Values {
	f := q.Filter
	v := url.Values{}

	if len(f.Keywords) > 0 {
		v.Set("styles", strings.Join(f.Keywords, ","))
		// Legacy upstreams read aesthetic as one free-text phrase.
		v.Set("aesthetic", f.Keywords[0])
	}
	if f.MinPrice != nil {
		s := formatFloat(*f.MinPrice)
		v.Set("min_price", s)
		v.Set("minPrice", s)
	}
	if f.MaxPrice != nil {
		s := formatFloat(*f.MaxPrice)
		v.Set("max_price", s)
		v.Set("maxPrice", s)
	}
	if len(f.Sizes) > 0 {
		v.Set("sizes", strings.Join(f.Sizes, ","))
	}
	if len(f.Brands) > 0 {
		v.Set("brands", strings.Join(f.Brands, ","))
	}
	if f.HeightBucket != "" {
		v.Set("heights", f.HeightBucket)
	}

	v.Set("page", strconv.Itoa(q.Page.Page))
	v.Set("per_page", strconv.Itoa(q.Page.PageSize))
	v.Set("limit", strconv.Itoa(q.Page.PageSize))
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
