package filter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Add(pairs[i], pairs[i+1])
	}
	return v
}

func TestParse_Empty(t *testing.T) {
	f := Parse(url.Values{})

	assert.True(t, f.Unconstrained())
	assert.Nil(t, f.Keywords)
	assert.Nil(t, f.MinPrice)
	assert.Nil(t, f.MaxPrice)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)
}

func TestParse_Keywords(t *testing.T) {
	tests := []struct {
		name string
		in   url.Values
		want []string
	}{
		{"comma list", values("styles", "boho, minimalist,,"), []string{"boho", "minimalist"}},
		{"repeated", values("styles", "boho", "styles", "y2k"), []string{"boho", "y2k"}},
		{"free text", values("aesthetic", "  cottage   core "), []string{"cottage", "core"}},
		{"q alias", values("q", "linen"), []string{"linen"}},
		{"keywords alias", values("keywords", "denim"), []string{"denim"}},
		{"merged in precedence order", values("aesthetic", "grunge", "styles", "boho"), []string{"boho", "grunge"}},
		{"case-insensitive dedupe keeps first spelling", values("styles", "Boho,boho,BOHO,y2k"), []string{"Boho", "y2k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in).Keywords)
		})
	}
}

func TestParse_PriceAliasesAndSoftFail(t *testing.T) {
	tests := []struct {
		name     string
		in       url.Values
		min, max *float64
	}{
		{"snake case", values("min_price", "20", "max_price", "80"), ptr(20), ptr(80)},
		{"camel case", values("minPrice", "20.5", "maxPrice", "80"), ptr(20.5), ptr(80)},
		{"snake wins over camel", values("min_price", "10", "minPrice", "30"), ptr(10), nil},
		{"blank snake falls through to camel", values("min_price", " ", "minPrice", "30"), ptr(30), nil},
		{"currency sign", values("max_price", "$99.99"), nil, ptr(99.99)},
		{"garbage ignored", values("min_price", "cheap", "max_price", "80"), nil, ptr(80)},
		{"NaN ignored", values("min_price", "NaN"), nil, nil},
		{"infinity ignored", values("max_price", "+Inf"), nil, nil},
		{"negative ignored", values("min_price", "-5"), nil, nil},
		{"zero kept", values("min_price", "0"), ptr(0), nil},
		{"inverted bounds swapped", values("min_price", "80", "max_price", "20"), ptr(20), ptr(80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Parse(tt.in)
			assert.Equal(t, tt.min, f.MinPrice)
			assert.Equal(t, tt.max, f.MaxPrice)
		})
	}
}

func TestParse_SizesBrandsHeight(t *testing.T) {
	f := Parse(values(
		"sizes", "S,M",
		"size", "m",
		"brand", "Reformation",
		"brands", "Ganni, Reformation",
		"height", "petite,tall",
	))

	assert.Equal(t, []string{"S", "M"}, f.Sizes)
	assert.Equal(t, []string{"Ganni", "Reformation"}, f.Brands)
	assert.Equal(t, "petite", f.HeightBucket)
}

func TestParse_HeightBucketPrecedence(t *testing.T) {
	f := Parse(values("heights", "tall", "heightBucket", "average"))
	assert.Equal(t, "average", f.HeightBucket)
}

func TestParse_Paging(t *testing.T) {
	tests := []struct {
		name           string
		in             url.Values
		page, pageSize int
	}{
		{"defaults", url.Values{}, 1, 20},
		{"explicit", values("page", "3", "per_page", "10"), 3, 10},
		{"limit alias", values("limit", "40"), 1, 40},
		{"pageSize alias", values("pageSize", "15"), 1, 15},
		{"integral decimal", values("page", "2.0"), 2, 20},
		{"fractional page", values("page", "2.5"), 1, 20},
		{"garbage page", values("page", "two"), 1, 20},
		{"zero page", values("page", "0"), 1, 20},
		{"negative page", values("page", "-3"), 1, 20},
		{"zero size", values("per_page", "0"), 1, 20},
		{"oversized clamped", values("per_page", "1000"), 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Parse(tt.in)
			assert.Equal(t, tt.page, f.Page)
			assert.Equal(t, tt.pageSize, f.PageSize)
		})
	}
}

func TestParse_NeverPanicsOnHostileInput(t *testing.T) {
	inputs := []url.Values{
		values("page", "99999999999999999999999"),
		values("per_page", "1e309"),
		values("styles", ",,,,"),
		values("min_price", "1e400"),
		values("brands", "%_\\"),
	}
	for _, in := range inputs {
		require.NotPanics(t, func() { Parse(in) })
	}
}

func ptr(f float64) *float64 { return &f }
