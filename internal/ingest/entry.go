package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/pkg/slug"
	"github.com/fittingroom/storefront/pkg/validator"
)

// centsThreshold: integral prices above it are taken to be in cents.
const centsThreshold = 200

// ParsePrice reads a price cell. Integral values above 200 are assumed to
// be cents and divided by 100. ok is false for an empty or unusable cell.
func ParsePrice(s string) (price float64, ok bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	if f > centsThreshold && f == math.Trunc(f) {
		f /= 100
	}
	return f, true
}

// Entry converts row into a validated catalog entry. defaultSource is used
// when the row has no source column. A row without a reference gets one
// derived from its brand and name.
func Entry(row Row, defaultSource string, scrapedAt time.Time) (catalog.Entry, error) {
	e := catalog.Entry{
		Source:       row.Get("source"),
		Reference:    row.Get("reference"),
		ProductID:    row.Get("product_id"),
		Name:         row.Get("name"),
		Brand:        row.Get("brand"),
		Category:     row.Get("category"),
		Color:        row.Get("color"),
		Currency:     row.Get("currency"),
		Availability: row.Get("availability"),
		ImageURL:     row.Get("image_url"),
		ProductURL:   row.Get("product_url"),
		Sizes:        row.Get("sizes"),
		Colors:       row.Get("colors"),
		Styles:       row.Get("styles"),
		Description:  row.Get("description"),
		ScrapedAt:    scrapedAt.UTC(),
	}
	if e.Source == "" {
		e.Source = defaultSource
	}
	if e.Reference == "" && e.ProductID != "" {
		e.Reference = e.ProductID
	}
	if e.Reference == "" && e.Name != "" {
		e.Reference = slug.Generate(e.Brand + " " + e.Name)
	}
	if strings.HasPrefix(e.ImageURL, "//") {
		e.ImageURL = "https:" + e.ImageURL
	}
	if strings.HasPrefix(e.ProductURL, "//") {
		e.ProductURL = "https:" + e.ProductURL
	}
	if p, ok := ParsePrice(row.Get("price")); ok {
		e.Price = p
		e.PriceCents = int64(math.Round(p * 100))
	}
	if len(row.Raw) > 0 {
		if raw, err := json.Marshal(row.Raw); err == nil {
			e.Raw = string(raw)
		}
	}

	if err := validator.Validate(e); err != nil {
		return catalog.Entry{}, err
	}
	return e, nil
}
