package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/fittingroom/storefront/internal/domain"
)

// ErrNotObject is returned when a body is valid JSON but not an object.
var ErrNotObject = errors.New("filter: body is not a JSON object")

// FromJSON flattens a JSON request body into url.Values so it goes through
// the same parser as a query string. Arrays become repeated values; strings,
// numbers and booleans are accepted; nulls and nested objects are skipped.
func FromJSON(r io.Reader) (url.Values, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return url.Values{}, nil
		}
		return nil, fmt.Errorf("filter: decode body: %w", err)
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	out := make(url.Values, len(obj))
	for key, val := range obj {
		switch v := val.(type) {
		case []any:
			for _, item := range v {
				if s, ok := scalar(item); ok {
					out.Add(key, s)
				}
			}
		default:
			if s, ok := scalar(v); ok {
				out.Add(key, s)
			}
		}
	}
	return out, nil
}

// ParseJSON is FromJSON followed by Parse. An empty or malformed body
// yields the unfiltered default alongside the decode error.
func ParseJSON(body []byte) (domain.Filter, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Parse(url.Values{}), nil
	}
	v, err := FromJSON(bytes.NewReader(body))
	if err != nil {
		return Parse(url.Values{}), err
	}
	return Parse(v), nil
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
