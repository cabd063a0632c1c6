// Package normalize maps raw upstream records of any known shape onto
// domain.Product. It is the only package that sees raw catalog shapes.
package normalize

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fittingroom/storefront/internal/domain"
)

// Record is one raw catalog record: a decoded JSON object, a scanned row or
// an index document.
type Record map[string]any

// Key precedence for each canonical field; first present wins.
var (
	idKeys         = []string{"product_id", "reference", "id"}
	priceKeys      = []string{"price"}
	priceCentsKeys = []string{"price_cents"}
	imageKeys      = []string{"image_url", "image"}
	urlKeys        = []string{"product_url", "url"}
	colorKeys      = []string{"color", "colors"}
)

// Text returns the first non-blank textual value under keys.
func (r Record) Text(keys ...string) string {
	for _, k := range keys {
		if s, ok := text(r[k]); ok && s != "" {
			return s
		}
	}
	return ""
}

// Number returns the first finite numeric value under keys.
func (r Record) Number(keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := number(r[k]); ok {
			return f, true
		}
	}
	return 0, false
}

// Product normalizes r. index is the record's position in its batch and
// becomes the id when no identifier is present. ok is false when the
// record lacks a name or brand and must be dropped.
func Product(r Record, index int) (p domain.Product, ok bool) {
	p.Name = r.Text("name")
	p.Brand = r.Text("brand")
	if p.Name == "" || p.Brand == "" {
		return domain.Product{}, false
	}

	p.ID = r.Text(idKeys...)
	if p.ID == "" {
		p.ID = strconv.Itoa(index)
	}
	p.Price = Price(r)
	p.ImageURL = absoluteURL(r.Text(imageKeys...))
	p.ProductURL = absoluteURL(r.Text(urlKeys...))
	p.Color = firstListItem(r.Text(colorKeys...))
	p.Availability = r.Text("availability")
	p.Category = r.Text("category")
	p.Source = r.Text("source")
	return p, true
}

// Price applies the price precedence: a finite price as-is, else
// price_cents in major units rounded to two decimals, else 0.
func Price(r Record) float64 {
	f, _ := PriceOK(r)
	return f
}

// PriceOK is Price that also reports whether any price field was usable.
func PriceOK(r Record) (float64, bool) {
	if f, ok := r.Number(priceKeys...); ok {
		return f, true
	}
	if c, ok := r.Number(priceCentsKeys...); ok {
		return math.Round(c) / 100, true
	}
	return 0, false
}

// Batch normalizes records in order and reports how many were dropped.
// It is deterministic: the same input always drops the same records.
func Batch(records []Record) ([]domain.Product, int) {
	out := make([]domain.Product, 0, len(records))
	dropped := 0
	for i, r := range records {
		p, ok := Product(r, i)
		if !ok {
			dropped++
			continue
		}
		out = append(out, p)
	}
	return out, dropped
}

func text(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case []byte:
		return strings.TrimSpace(string(t)), true
	case json.Number:
		return t.String(), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return text(float64(t))
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case time.Time:
		return t.UTC().Format(time.RFC3339), true
	}
	return "", false
}

func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case string, []byte:
		s, _ := text(t)
		if s == "" {
			return 0, false
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AbsoluteURL returns s when it is a usable http(s) URL and "" otherwise.
func AbsoluteURL(s string) string { return absoluteURL(strings.TrimSpace(s)) }

// absoluteURL keeps http(s) URLs with a host. Protocol-relative values are
// upgraded to https; anything else is dropped.
func absoluteURL(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return s
	}
	return ""
}

func firstListItem(s string) string {
	head, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(head)
}
