package query

import "strings"

// Document exposes a product's searchable attributes to Match.
type Document interface {
	Text(Field) string
	Number(Field) (float64, bool)
}

// Match evaluates n against doc in process with the same semantics the
// store renderers produce: case-insensitive substring containment and
// inclusive ranges. A missing number never satisfies a range bound.
func Match(n Node, doc Document) bool {
	switch t := n.(type) {
	case nil, True:
		return true
	case And:
		for _, c := range t {
			if !Match(c, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range t {
			if Match(c, doc) {
				return true
			}
		}
		return false
	case Contains:
		return strings.Contains(strings.ToLower(doc.Text(t.Field)), strings.ToLower(t.Value))
	case Present:
		return strings.TrimSpace(doc.Text(t.Field)) != ""
	case Range:
		if t.Min == nil && t.Max == nil {
			return true
		}
		v, ok := doc.Number(t.Field)
		if !ok {
			return false
		}
		if t.Min != nil && v < *t.Min {
			return false
		}
		if t.Max != nil && v > *t.Max {
			return false
		}
		return true
	}
	return false
}
