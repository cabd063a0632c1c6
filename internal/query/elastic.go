package query

import (
	"fmt"
	"strings"
)

// IndexFields maps logical fields to Elasticsearch document fields. Text
// fields are mapped as keyword so wildcard queries see whole values.
var IndexFields = Columns{
	FieldID:          "id",
	FieldName:        "name",
	FieldDescription: "description",
	FieldCategory:    "category",
	FieldStyles:      "styles",
	FieldSizes:       "sizes",
	FieldBrand:       "brand",
	FieldPrice:       "price",
	FieldCreatedAt:   "created_at",
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// Elastic renders q as a search request body.
func Elastic(q Query, fields Columns) (map[string]any, error) {
	clause, err := elasticNode(q.Where, fields)
	if err != nil {
		return nil, err
	}

	sortKeys := q.Sort
	if len(sortKeys) == 0 {
		sortKeys = DefaultSort
	}
	sort := make([]any, 0, len(sortKeys))
	for _, k := range sortKeys {
		name, ok := fields[k.Field]
		if !ok {
			return nil, unknownField(k.Field)
		}
		order := "asc"
		if k.Desc {
			order = "desc"
		}
		sort = append(sort, map[string]any{name: map[string]any{"order": order, "unmapped_type": "keyword"}})
	}

	return map[string]any{
		"query":            clause,
		"sort":             sort,
		"from":             q.Page.Offset,
		"size":             q.Page.Limit(),
		"track_total_hits": true,
	}, nil
}

func elasticNode(n Node, fields Columns) (map[string]any, error) {
	switch t := n.(type) {
	case nil, True:
		return map[string]any{"match_all": map[string]any{}}, nil
	case And:
		children, err := elasticChildren(t, fields)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"filter": children}}, nil
	case Or:
		children, err := elasticChildren(t, fields)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{
			"should":               children,
			"minimum_should_match": 1,
		}}, nil
	case Contains:
		name, ok := fields[t.Field]
		if !ok {
			return nil, unknownField(t.Field)
		}
		return map[string]any{"wildcard": map[string]any{name: map[string]any{
			"value":            "*" + wildcardEscaper.Replace(t.Value) + "*",
			"case_insensitive": true,
		}}}, nil
	case Present:
		name, ok := fields[t.Field]
		if !ok {
			return nil, unknownField(t.Field)
		}
		return map[string]any{"bool": map[string]any{
			"filter":   []any{map[string]any{"exists": map[string]any{"field": name}}},
			"must_not": []any{map[string]any{"term": map[string]any{name: ""}}},
		}}, nil
	case Range:
		name, ok := fields[t.Field]
		if !ok {
			return nil, unknownField(t.Field)
		}
		bounds := map[string]any{}
		if t.Min != nil {
			bounds["gte"] = *t.Min
		}
		if t.Max != nil {
			bounds["lte"] = *t.Max
		}
		return map[string]any{"range": map[string]any{name: bounds}}, nil
	}
	return nil, fmt.Errorf("query: unsupported node %T", n)
}

func elasticChildren(nodes []Node, fields Columns) ([]any, error) {
	out := make([]any, 0, len(nodes))
	for _, c := range nodes {
		m, err := elasticNode(c, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
