// Package query composes a domain.Filter into a store-agnostic predicate
// tree and renders it for each catalog backend.
package query

import (
	"errors"
	"fmt"

	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/pkg/pagination"
)

// Field is a logical product attribute. Renderers map fields to physical
// names through their own whitelist.
type Field string

const (
	FieldID          Field = "id"
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldStyles      Field = "styles"
	FieldSizes       Field = "sizes"
	FieldBrand       Field = "brand"
	FieldPrice       Field = "price"
	FieldCreatedAt   Field = "created_at"
)

// KeywordFields are searched for every keyword.
var KeywordFields = []Field{FieldName, FieldDescription, FieldCategory, FieldStyles}

// ErrUnknownField is returned by renderers for a field outside their whitelist.
var ErrUnknownField = errors.New("query: unknown field")

func unknownField(f Field) error {
	return fmt.Errorf("%w %q", ErrUnknownField, string(f))
}

// Node is a predicate in the tree.
type Node interface {
	isNode()
}

// True matches everything.
type True struct{}

// And matches when every child matches.
type And []Node

// Or matches when at least one child matches.
type Or []Node

// Contains is a case-insensitive substring test.
type Contains struct {
	Field Field
	Value string
}

// Present matches when the field holds a non-blank value.
type Present struct {
	Field Field
}

// Range is an inclusive numeric bound; a nil side is open.
type Range struct {
	Field    Field
	Min, Max *float64
}

func (True) isNode()     {}
func (And) isNode()      {}
func (Or) isNode()       {}
func (Contains) isNode() {}
func (Present) isNode()  {}
func (Range) isNode()    {}

// SortKey orders results by one field.
type SortKey struct {
	Field Field
	Desc  bool
}

// DefaultSort is newest first with a stable tie-break.
var DefaultSort = []SortKey{{FieldCreatedAt, true}, {FieldID, true}}

// Query is a built, backend-independent search.
type Query struct {
	Filter domain.Filter
	Where  Node
	Sort   []SortKey
	Page   pagination.Params
}

// Build composes f into a Query. Keywords are ANDed, and each keyword may
// match any of KeywordFields. Sizes and brands are ORed substring tests
// against the stored text, so size "1" also matches "10".
func Build(f domain.Filter) Query {
	var conds []Node

	for _, kw := range f.Keywords {
		alts := make(Or, 0, len(KeywordFields))
		for _, field := range KeywordFields {
			alts = append(alts, Contains{Field: field, Value: kw})
		}
		conds = append(conds, alts)
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		conds = append(conds, Range{Field: FieldPrice, Min: f.MinPrice, Max: f.MaxPrice})
	}
	if n := anyOf(FieldSizes, f.Sizes); n != nil {
		conds = append(conds, n)
	}
	if n := anyOf(FieldBrand, f.Brands); n != nil {
		conds = append(conds, n)
	}

	return Query{
		Filter: f,
		Where:  allOf(conds),
		Sort:   DefaultSort,
		Page:   f.Paging(),
	}
}

func anyOf(field Field, values []string) Node {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return Contains{Field: field, Value: values[0]}
	}
	alts := make(Or, 0, len(values))
	for _, v := range values {
		alts = append(alts, Contains{Field: field, Value: v})
	}
	return alts
}

func allOf(conds []Node) Node {
	switch len(conds) {
	case 0:
		return True{}
	case 1:
		return conds[0]
	}
	return And(conds)
}

// ListableFields must be non-blank for a record to survive normalization.
var ListableFields = []Field{FieldName, FieldBrand}

// Listable restricts q to records that normalize into products, so paging
// and counting in the store agree with what is returned.
func (q Query) Listable() Query {
	conds := make([]Node, 0, len(ListableFields)+1)
	for _, f := range ListableFields {
		conds = append(conds, Present{Field: f})
	}
	switch t := q.Where.(type) {
	case And:
		conds = append(conds, t...)
	default:
		if !IsTrue(t) {
			conds = append(conds, t)
		}
	}
	q.Where = And(conds)
	return q
}

// IsTrue reports whether n trivially matches everything.
func IsTrue(n Node) bool {
	switch t := n.(type) {
	case nil, True:
		return true
	case And:
		for _, c := range t {
			if !IsTrue(c) {
				return false
			}
		}
		return true
	case Range:
		return t.Min == nil && t.Max == nil
	}
	return false
}
