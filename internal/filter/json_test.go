package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON_Flattens(t *testing.T) {
	v, err := FromJSON(strings.NewReader(`{
		"styles": ["boho", "y2k"],
		"min_price": 20,
		"max_price": "80",
		"sizes": ["S", 8],
		"brands": null,
		"meta": {"nested": true},
		"page": 2,
		"per_page": 10,
		"in_stock": true
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"boho", "y2k"}, v["styles"])
	assert.Equal(t, []string{"20"}, v["min_price"])
	assert.Equal(t, []string{"80"}, v["max_price"])
	assert.Equal(t, []string{"S", "8"}, v["sizes"])
	assert.Equal(t, []string{"true"}, v["in_stock"])
	assert.NotContains(t, v, "brands")
	assert.NotContains(t, v, "meta")
}

func TestFromJSON_Errors(t *testing.T) {
	_, err := FromJSON(strings.NewReader(`{"styles": [`))
	assert.Error(t, err)

	_, err = FromJSON(strings.NewReader(`["boho"]`))
	assert.ErrorIs(t, err, ErrNotObject)

	v, err := FromJSON(strings.NewReader(``))
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestParseJSON_MatchesQueryString(t *testing.T) {
	fromBody, err := ParseJSON([]byte(`{"styles":["casual"],"min_price":20,"max_price":80,"page":1,"per_page":20}`))
	require.NoError(t, err)

	fromQuery := Parse(values("styles", "casual", "min_price", "20", "max_price", "80", "page", "1", "per_page", "20"))
	assert.Equal(t, fromQuery, fromBody)
}

func TestParseJSON_MalformedDegradesToUnfiltered(t *testing.T) {
	f, err := ParseJSON([]byte(`{not json`))
	assert.Error(t, err)
	assert.True(t, f.Unconstrained())
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)

	f, err = ParseJSON([]byte("  "))
	assert.NoError(t, err)
	assert.True(t, f.Unconstrained())
}
