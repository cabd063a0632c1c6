package pagination

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 0, p.Offset)
}

func TestNew_Clamping(t *testing.T) {
	tests := []struct {
		page, size             int
		wantPage, wantSize, at int
	}{
		{1, 20, 1, 20, 0},
		{3, 25, 3, 25, 50},
		{0, 10, 1, 10, 0},
		{-4, 10, 1, 10, 0},
		{2, 0, 2, 20, 20},
		{2, -1, 2, 20, 20},
		{1, 500, 1, 100, 0},
		{2, 100, 2, 100, 100},
		{MaxPage, 100, MaxPage, 100, (MaxPage - 1) * 100},
		{922337203685477581, 20, MaxPage, 20, (MaxPage - 1) * 20},
		{math.MaxInt, 100, MaxPage, 100, (MaxPage - 1) * 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d,size=%d", tt.page, tt.size), func(t *testing.T) {
			p := New(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.PageSize)
			assert.Equal(t, tt.at, p.Offset)
			assert.Equal(t, tt.wantSize, p.Limit())
		})
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct{ total, size, want int }{
		{0, 20, 1},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
		{100, 10, 10},
		{101, 10, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.size), "total=%d size=%d", tt.total, tt.size)
	}
}

func TestTotalPages_Property(t *testing.T) {
	for total := 0; total <= 250; total++ {
		for size := 1; size <= 30; size++ {
			want := (total + size - 1) / size
			if want < 1 {
				want = 1
			}
			require.Equal(t, want, TotalPages(total, size), "total=%d size=%d", total, size)
		}
	}
}

func TestReconcile_FullPage(t *testing.T) {
	r := Reconcile(seq(20), 45, New(1, 20))
	assert.Len(t, r.Items, 20)
	assert.Equal(t, 45, r.TotalCount)
	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext())
	assert.False(t, r.HasPrev())
}

func TestReconcile_PageBeyondLast(t *testing.T) {
	r := Reconcile([]int{}, 45, New(7, 20))
	require.NotNil(t, r.Items)
	assert.Empty(t, r.Items)
	assert.Equal(t, 45, r.TotalCount)
	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, 7, r.Page)
	assert.False(t, r.HasNext())
}

func TestReconcile_PageBeyondLastDropsStrayItems(t *testing.T) {
	r := Reconcile(seq(3), 0, New(1, 20))
	assert.Len(t, r.Items, 3, "items prove a total of at least 3")
	assert.Equal(t, 3, r.TotalCount)

	r = Reconcile([]int{}, 0, New(2, 20))
	assert.Empty(t, r.Items)
	assert.Equal(t, 1, r.TotalPages)
}

func TestReconcile_TruncatesOversizedPage(t *testing.T) {
	r := Reconcile(seq(35), 35, New(1, 20))
	assert.Len(t, r.Items, 20)
	assert.Equal(t, 35, r.TotalCount)
}

func TestReconcile_NegativeTotal(t *testing.T) {
	r := Reconcile[int](nil, -5, New(1, 20))
	assert.Equal(t, 0, r.TotalCount)
	assert.Equal(t, 1, r.TotalPages)
	assert.NotNil(t, r.Items)
}

func TestReconcile_UndercountedTotal(t *testing.T) {
	r := Reconcile(seq(10), 5, New(2, 10))
	assert.Equal(t, 20, r.TotalCount)
	assert.Equal(t, 2, r.TotalPages)
	assert.Len(t, r.Items, 10)
}

func TestSlice_Pages(t *testing.T) {
	all := seq(45)

	tests := []struct {
		page, size, wantLen, first int
	}{
		{1, 20, 20, 0},
		{2, 20, 20, 20},
		{3, 20, 5, 40},
		{4, 20, 0, -1},
		{0, 20, 20, 0},
	}
	for _, tt := range tests {
		r := Slice(all, New(tt.page, tt.size))
		assert.Len(t, r.Items, tt.wantLen)
		assert.Equal(t, 45, r.TotalCount)
		assert.Equal(t, 3, r.TotalPages)
		if tt.first >= 0 {
			assert.Equal(t, tt.first, r.Items[0])
		}
	}
}

func TestSlice_ItemsNeverExceedPageSize(t *testing.T) {
	for total := 0; total <= 60; total++ {
		all := seq(total)
		for size := 1; size <= 12; size++ {
			pages := TotalPages(total, size)
			for page := 1; page <= pages+1; page++ {
				r := Slice(all, New(page, size))
				require.LessOrEqual(t, len(r.Items), size)
				if page < pages {
					require.Len(t, r.Items, size, "non-final pages are full")
				}
				if page > pages {
					require.Empty(t, r.Items)
				}
			}
		}
	}
}

func TestSlice_HugePageIsEmpty(t *testing.T) {
	for _, page := range []int{MaxPage, MaxPage + 1, 922337203685477581, math.MaxInt} {
		r := Slice(seq(45), New(page, 20))
		assert.Empty(t, r.Items, "page=%d", page)
		assert.NotNil(t, r.Items)
		assert.Equal(t, 45, r.TotalCount)
		assert.Equal(t, 3, r.TotalPages)
		assert.Equal(t, MaxPage, r.Page)
	}

	r := Slice(seq(5), Params{Page: 1, PageSize: 5, Offset: -16})
	assert.Len(t, r.Items, 5)
}

func TestSlice_DoesNotAliasInput(t *testing.T) {
	all := seq(5)
	r := Slice(all, New(1, 5))
	r.Items[0] = 99
	assert.Equal(t, 0, all[0])
}
