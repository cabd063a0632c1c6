// Package seed generates a deterministic demo catalog for local
// development and load tests.
package seed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/normalize"
	"github.com/fittingroom/storefront/pkg/slug"
)

// Source is stamped on every generated entry.
const Source = "seed"

// DefaultSeed makes repeated runs produce the same catalog.
const DefaultSeed = 42

var brands = []string{
	"Arket", "Ganni", "Toteme", "Reformation", "Nanushka",
	"Sezane", "Rixo", "Staud", "Khaite", "Cos",
}

type department struct {
	Name     string
	Weight   float64
	Types    []string
	Sizes    []string
	Styles   []string
	MinPrice int
	MaxPrice int
}

var departments = []department{
	{
		Name:     "dresses",
		Weight:   0.25,
		Types:    []string{"Midi Dress", "Maxi Dress", "Slip Dress", "Wrap Dress", "Shirt Dress"},
		Sizes:    []string{"XS", "S", "M", "L", "XL"},
		Styles:   []string{"romantic", "boho", "minimal", "party"},
		MinPrice: 45, MaxPrice: 420,
	},
	{
		Name:     "tops",
		Weight:   0.20,
		Types:    []string{"Linen Shirt", "Poplin Blouse", "Knit Tank", "Oversized Tee", "Cardigan"},
		Sizes:    []string{"XS", "S", "M", "L", "XL"},
		Styles:   []string{"casual", "minimal", "classic"},
		MinPrice: 20, MaxPrice: 180,
	},
	{
		Name:     "bottoms",
		Weight:   0.15,
		Types:    []string{"Wide Leg Jeans", "Pleated Trousers", "Midi Skirt", "Cargo Pants", "Bermuda Shorts"},
		Sizes:    []string{"24", "25", "26", "27", "28", "29", "30", "31", "32"},
		Styles:   []string{"casual", "streetwear", "classic"},
		MinPrice: 35, MaxPrice: 260,
	},
	{
		Name:     "outerwear",
		Weight:   0.15,
		Types:    []string{"Trench Coat", "Wool Coat", "Leather Jacket", "Puffer Jacket", "Blazer"},
		Sizes:    []string{"XS", "S", "M", "L", "XL"},
		Styles:   []string{"classic", "minimal", "streetwear"},
		MinPrice: 90, MaxPrice: 650,
	},
	{
		Name:     "shoes",
		Weight:   0.15,
		Types:    []string{"Ankle Boots", "Loafers", "Ballet Flats", "Sneakers", "Strappy Sandals"},
		Sizes:    []string{"5", "6", "7", "8", "9", "10", "11"},
		Styles:   []string{"classic", "casual", "party"},
		MinPrice: 60, MaxPrice: 480,
	},
	{
		Name:     "accessories",
		Weight:   0.10,
		Types:    []string{"Shoulder Bag", "Silk Scarf", "Leather Belt", "Hoop Earrings", "Bucket Hat"},
		Sizes:    []string{"One Size"},
		Styles:   []string{"minimal", "boho", "classic"},
		MinPrice: 15, MaxPrice: 320,
	},
}

var prefixes = []string{
	"Floral", "Striped", "Polka Dot", "Embroidered", "Pleated",
	"Belted", "Ribbed", "Satin", "Velvet", "Crochet",
	"Organic Cotton", "Linen Blend", "Recycled", "Sequin", "Tie Front",
}

var colors = []string{
	"Black", "Navy", "Ecru", "Blush", "Grey",
	"Khaki", "Burgundy", "Sky Blue", "Camel", "Red",
	"Sage", "Chocolate", "Cream", "Indigo", "Mustard",
}

var availability = []string{"in_stock", "in_stock", "in_stock", "low_stock", "out_of_stock"}

// Reference returns the stable reference for the i-th generated product.
func Reference(i int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("fittingroom-seed:%d", i)))
	return "seed-" + hex.EncodeToString(h[:6])
}

// Generate returns n products. The same n and seed always produce the same
// catalog; scrape times are spread over the 90 days before now.
func Generate(n int, seed int64, now time.Time) []catalog.Entry {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	now = now.UTC().Truncate(time.Second)

	counts := allocate(n)
	out := make([]catalog.Entry, 0, n)
	for d, count := range counts {
		dept := departments[d]
		for j := 0; j < count; j++ {
			i := len(out)
			kind := dept.Types[j%len(dept.Types)]
			color := colors[rng.Intn(len(colors))]
			name := fmt.Sprintf("%s %s - %s", prefixes[rng.Intn(len(prefixes))], kind, color)
			brand := brands[i%len(brands)]
			ref := Reference(i)

			price := dept.MinPrice + rng.Intn(dept.MaxPrice-dept.MinPrice+1)
			cents := int64(price*100 - 1)
			if rng.Intn(3) == 0 {
				cents = int64(price * 100)
			}

			age := time.Duration(rng.Intn(90*24*60)) * time.Minute
			out = append(out, catalog.Entry{
				Source:       Source,
				Reference:    ref,
				Name:         name,
				Brand:        brand,
				Category:     dept.Name,
				Color:        color,
				Price:        float64(cents) / 100,
				PriceCents:   cents,
				Currency:     "USD",
				Availability: availability[rng.Intn(len(availability))],
				ImageURL:     "https://images.fittingroom.example/products/" + ref + ".jpg",
				ProductURL:   "https://shop.example.com/" + slug.Generate(brand) + "/" + slug.Generate(name) + "-" + ref,
				Sizes:        pickSizes(rng, dept.Sizes),
				Colors:       color,
				Styles:       pickStyles(rng, dept.Styles),
				Description:  describe(rng, kind, dept.Name),
				ScrapedAt:    now.Add(-age),
			})
		}
	}
	return out
}

// allocate splits n across departments by weight; the last one takes the
// remainder.
func allocate(n int) []int {
	counts := make([]int, len(departments))
	remaining := n
	for i, d := range departments {
		if i == len(departments)-1 {
			counts[i] = remaining
			break
		}
		c := int(float64(n) * d.Weight)
		counts[i] = c
		remaining -= c
	}
	return counts
}

// pickSizes returns a contiguous run of sizes, the way retailers list the
// sizes still available.
func pickSizes(rng *rand.Rand, sizes []string) string {
	if len(sizes) == 1 {
		return sizes[0]
	}
	start := rng.Intn(len(sizes) - 1)
	end := start + 2 + rng.Intn(len(sizes)-start-1)
	return strings.Join(sizes[start:end], ",")
}

func pickStyles(rng *rand.Rand, styles []string) string {
	first := rng.Intn(len(styles))
	if rng.Intn(2) == 0 {
		return styles[first]
	}
	second := (first + 1 + rng.Intn(len(styles)-1)) % len(styles)
	return styles[first] + "," + styles[second]
}

var descriptions = []string{
	"An easy %s cut for everyday wear. Pairs with everything in your %s edit.",
	"This %s is made in small batches and finished by hand. A %s staple for every season.",
	"Relaxed fit %s with clean lines. Part of the new %s collection.",
	"A %s designed to last, in a fabric that softens with every wash. Shop more %s.",
}

func describe(rng *rand.Rand, kind, dept string) string {
	return fmt.Sprintf(descriptions[rng.Intn(len(descriptions))], strings.ToLower(kind), dept)
}

// WriteJSON writes entries as a {"products": [...]} document that the memory
// backend reads as its seed file.
func WriteJSON(w io.Writer, entries []catalog.Entry) error {
	records := make([]normalize.Record, 0, len(entries))
	for _, e := range entries {
		r := e.Record()
		r["created_at"] = e.ScrapedAt.UTC().Format(time.RFC3339)
		records = append(records, r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"products": records}); err != nil {
		return fmt.Errorf("seed: write json: %w", err)
	}
	return nil
}
