package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_IDPrecedence(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"product_id wins", Record{"product_id": "P-1", "reference": "R-1", "id": 7}, "P-1"},
		{"reference next", Record{"reference": "R-1", "id": 7}, "R-1"},
		{"numeric id", Record{"id": int64(7)}, "7"},
		{"integral float id", Record{"id": 42.0}, "42"},
		{"json number id", Record{"id": json.Number("1001")}, "1001"},
		{"blank product_id skipped", Record{"product_id": "  ", "id": "abc"}, "abc"},
		{"positional fallback", Record{}, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rec["name"], tt.rec["brand"] = "Slip Dress", "Ganni"
			p, ok := Product(tt.rec, 3)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.ID)
		})
	}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want float64
	}{
		{"cents round trip", Record{"price_cents": 2599}, 25.99},
		{"price as-is", Record{"price": 25.99}, 25.99},
		{"price wins over cents", Record{"price": 10.5, "price_cents": 9999}, 10.5},
		{"numeric string", Record{"price": "49.00"}, 49},
		{"json number cents", Record{"price_cents": json.Number("1250")}, 12.5},
		{"fractional cents rounded", Record{"price_cents": 1999.6}, 20},
		{"garbage price falls to cents", Record{"price": "n/a", "price_cents": int64(500)}, 5},
		{"NaN price falls to cents", Record{"price": math.NaN(), "price_cents": 100}, 1},
		{"nothing", Record{}, 0},
		{"null price", Record{"price": nil}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Price(tt.rec), 1e-9)
		})
	}
}

func TestProduct_URLs(t *testing.T) {
	tests := []struct {
		name           string
		rec            Record
		image, product string
	}{
		{"snake names", Record{"image_url": "https://cdn.example.com/a.jpg", "product_url": "https://shop.example.com/p/1"},
			"https://cdn.example.com/a.jpg", "https://shop.example.com/p/1"},
		{"short names", Record{"image": "http://cdn.example.com/b.jpg", "url": "https://shop.example.com/p/2"},
			"http://cdn.example.com/b.jpg", "https://shop.example.com/p/2"},
		{"protocol relative", Record{"image_url": "//static.zara.net/x.jpg"}, "https://static.zara.net/x.jpg", ""},
		{"relative dropped", Record{"image_url": "/img/x.jpg", "url": "p/2"}, "", ""},
		{"other scheme dropped", Record{"image_url": "javascript:alert(1)", "url": "ftp://host/file"}, "", ""},
		{"blank first falls through", Record{"image_url": "", "image": "https://cdn.example.com/c.jpg"}, "https://cdn.example.com/c.jpg", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rec["name"], tt.rec["brand"] = "Tee", "COS"
			p, ok := Product(tt.rec, 0)
			require.True(t, ok)
			assert.Equal(t, tt.image, p.ImageURL)
			assert.Equal(t, tt.product, p.ProductURL)
		})
	}
}

func TestProduct_OptionalFields(t *testing.T) {
	p, ok := Product(Record{
		"name": "  Linen Shirt ", "brand": "Arket",
		"colors": "ecru, navy", "availability": "in_stock",
		"category": "shirts", "source": "arket_csv",
	}, 0)
	require.True(t, ok)

	assert.Equal(t, "Linen Shirt", p.Name)
	assert.Equal(t, "ecru", p.Color)
	assert.Equal(t, "in_stock", p.Availability)
	assert.Equal(t, "shirts", p.Category)
	assert.Equal(t, "arket_csv", p.Source)
}

func TestProduct_DropsWithoutNameOrBrand(t *testing.T) {
	for _, rec := range []Record{
		{"brand": "Ganni"},
		{"name": "Dress"},
		{"name": "   ", "brand": "Ganni"},
		{"name": "Dress", "brand": nil},
		{"name": map[string]any{"en": "Dress"}, "brand": "Ganni"},
	} {
		_, ok := Product(rec, 0)
		assert.False(t, ok, "%v", rec)
	}
}

func TestBatch_DeterministicDrops(t *testing.T) {
	batch := []Record{
		{"name": "A", "brand": "X", "price": 1},
		{"name": "B"},
		{"brand": "Y"},
		{"name": "D", "brand": "Z", "price_cents": 2599},
		{},
	}

	first, droppedFirst := Batch(batch)
	second, droppedSecond := Batch(batch)

	assert.Equal(t, 3, droppedFirst)
	assert.Equal(t, droppedFirst, droppedSecond)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "0", first[0].ID)
	assert.Equal(t, "3", first[1].ID, "positional ids count dropped records")
	assert.InDelta(t, 25.99, first[1].Price, 1e-9)
}

func TestBatch_PriceNeverNaN(t *testing.T) {
	products, _ := Batch([]Record{
		{"name": "A", "brand": "X", "price": math.Inf(1)},
		{"name": "B", "brand": "X", "price": "NaN"},
		{"name": "C", "brand": "X", "price_cents": math.NaN()},
	})
	for _, p := range products {
		assert.False(t, math.IsNaN(p.Price) || math.IsInf(p.Price, 0))
		assert.Zero(t, p.Price)
	}
}
