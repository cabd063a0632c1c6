package pagination

import "math"

const (
	// DefaultPageSize applies when no usable page size was requested.
	DefaultPageSize = 20
	// MaxPageSize caps the page size a client can ask for.
	MaxPageSize = 100
	// MaxPage caps the page number so offsets stay within 32 bits for any
	// page size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Params holds a normalized page request.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"limit"`
	Offset   int `json:"-"`
}

// DefaultParams returns the first page with the default size.
func DefaultParams() Params {
	return New(1, DefaultPageSize)
}

// New normalizes a page request: page < 1 becomes 1 and pages above
// MaxPage are clamped. A non-positive size becomes DefaultPageSize and sizes
// above MaxPageSize are clamped.
func New(page, pageSize int) Params {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Params{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}

// Limit is the row limit for the underlying query.
func (p Params) Limit() int {
	return p.PageSize
}

// TotalPages returns max(1, ceil(totalCount/pageSize)).
func TotalPages(totalCount, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if totalCount <= 0 {
		return 1
	}
	pages := totalCount / pageSize
	if totalCount%pageSize > 0 {
		pages++
	}
	return pages
}

// Result is one page of items with its paging metadata.
type Result[T any] struct {
	Items      []T
	TotalCount int
	Page       int
	PageSize   int
	TotalPages int
}

// HasNext reports whether a later page exists.
func (r Result[T]) HasNext() bool { return r.Page < r.TotalPages }

// HasPrev reports whether an earlier page exists.
func (r Result[T]) HasPrev() bool { return r.Page > 1 }

// Reconcile attaches paging metadata to the items a backend returned for p.
//
// The backend's total is trusted unless it is smaller than what the page
// itself proves exists. Items are truncated to the page size, and a page
// beyond the last one yields no items while keeping the real totals.
// Items is never nil.
func Reconcile[T any](items []T, totalCount int, p Params) Result[T] {
	p = New(p.Page, p.PageSize)

	if len(items) > p.PageSize {
		items = items[:p.PageSize]
	}
	if totalCount < 0 {
		totalCount = 0
	}
	if seen := p.Offset + len(items); len(items) > 0 && totalCount < seen {
		totalCount = seen
	}

	totalPages := TotalPages(totalCount, p.PageSize)
	if p.Page > totalPages || items == nil {
		items = []T{}
	}

	return Result[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
	}
}

// Slice pages an already filtered, fully materialized collection.
func Slice[T any](all []T, p Params) Result[T] {
	p = New(p.Page, p.PageSize)
	total := len(all)

	start := p.Offset
	switch {
	case start < 0:
		start = 0
	case start > total:
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}

	page := make([]T, end-start)
	copy(page, all[start:end])
	return Reconcile(page, total, p)
}
