package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/pkg/slug"
)

var (
	listKeys  = []string{"results", "products", "items"}
	totalKeys = []string{"total", "totalCount", "total_count"}
)

// ErrUnexpectedShape is returned for payloads that are neither an object
// nor a list of records.
var ErrUnexpectedShape = errors.New("normalize: unexpected payload shape")

// Envelope is a decoded search response.
type Envelope struct {
	Records []Record
	// Total is the upstream's reported match count; HasTotal is false when
	// it sent none.
	Total    int
	HasTotal bool
}

func decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("normalize: decode: %w", err)
	}
	return v, nil
}

func records(list []any) []Record {
	out := make([]Record, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, Record(obj))
		} else {
			// Keep the position so the batch index stays aligned.
			out = append(out, Record{})
		}
	}
	return out
}

// DecodeEnvelope reads a search response. The list may sit under results,
// products or items, or the payload may be a bare list.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	v, err := decode(r)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case []any:
		return &Envelope{Records: records(t)}, nil
	case map[string]any:
		env := &Envelope{Records: []Record{}}
		for _, k := range listKeys {
			if list, ok := t[k].([]any); ok {
				env.Records = records(list)
				break
			}
		}
		if total, ok := Record(t).Number(totalKeys...); ok && total >= 0 {
			env.Total, env.HasTotal = int(total), true
		}
		return env, nil
	}
	return nil, ErrUnexpectedShape
}

// DecodeRecord reads a single product payload, unwrapping {"product": {...}}.
func DecodeRecord(r io.Reader) (Record, error) {
	v, err := decode(r)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrUnexpectedShape
	}
	if inner, ok := obj["product"].(map[string]any); ok {
		return Record(inner), nil
	}
	return Record(obj), nil
}

// DecodeBrands reads a brand listing whose entries are plain names or
// {brand, count, image_url} objects, under "brands" or as a bare list.
func DecodeBrands(r io.Reader) ([]domain.BrandSummary, error) {
	v, err := decode(r)
	if err != nil {
		return nil, err
	}

	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case map[string]any:
		list, _ = t["brands"].([]any)
	default:
		return nil, ErrUnexpectedShape
	}

	out := make([]domain.BrandSummary, 0, len(list))
	for _, item := range list {
		var b domain.BrandSummary
		switch t := item.(type) {
		case map[string]any:
			rec := Record(t)
			b.Brand = rec.Text("brand", "name")
			if n, ok := rec.Number("count", "product_count"); ok && n > 0 {
				b.Count = int(n)
			}
			b.ImageURL = absoluteURL(rec.Text(imageKeys...))
		default:
			b.Brand, _ = text(t)
		}
		if b.Brand == "" {
			continue
		}
		b.Slug = slug.Generate(b.Brand)
		out = append(out, b)
	}
	return out, nil
}
