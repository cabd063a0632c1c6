package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// columnAliases lists, per entry field, the CSV headers that may carry it
// in order of preference. Headers are matched case-insensitively.
var columnAliases = map[string][]string{
	"source":       {"source"},
	"reference":    {"reference", "canonicalreference", "ref", "sku"},
	"product_id":   {"product_id", "productid"},
	"name":         {"name", "title"},
	"brand":        {"brand"},
	"category":     {"category", "category_hint"},
	"color":        {"color", "colour"},
	"price":        {"price", "price_usd", "price_cents"},
	"currency":     {"currency"},
	"availability": {"availability", "stock"},
	"image_url":    {"image_url", "pdpimage", "pdpmedia", "image"},
	"product_url":  {"product_url", "url", "seo_url"},
	"sizes":        {"sizes", "size"},
	"colors":       {"colors", "colours"},
	"styles":       {"styles", "tags"},
	"description":  {"description"},
}

// Row is one CSV record keyed by entry field, plus the original cells
// keyed by header for the raw payload.
type Row struct {
	Line   int
	Fields map[string]string
	Raw    map[string]string
}

// Get returns the trimmed value of field.
func (r Row) Get(field string) string {
	return strings.TrimSpace(r.Fields[field])
}

const bom = "\ufeff"

// ErrNoHeader is returned for an empty CSV input.
var ErrNoHeader = errors.New("ingest: csv has no header row")

// header resolves each entry field to a column index.
func header(cols []string) map[string]int {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, bom)))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	out := make(map[string]int, len(columnAliases))
	for field, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				out[field] = i
				break
			}
		}
	}
	return out
}

// ReadCSV reads every record of r. Short or long records are accepted;
// missing cells read as empty.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	cols, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}
	fields := header(cols)

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		row := Row{Line: line, Fields: make(map[string]string, len(fields)), Raw: make(map[string]string, len(cols))}
		for field, i := range fields {
			if i < len(rec) {
				row.Fields[field] = rec[i]
			}
		}
		for i, c := range cols {
			if i < len(rec) {
				row.Raw[strings.TrimSpace(strings.TrimPrefix(c, bom))] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
