package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

	// Letters that do not decompose into a base letter plus a mark.
	specialLetters = strings.NewReplacer(
		"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "ł", "l", "đ", "d", "ı", "i",
		"&", " and ", "+", " plus ",
	)
)

// Generate creates a URL-friendly slug from a brand or category name.
// Accented letters are folded to ASCII.
//
// Examples:
//   - "Sézane" → "sezane"
//   - "Zadig & Voltaire" → "zadig-and-voltaire"
//   - "  H&M  " → "h-and-m"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = specialLetters.Replace(s)

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
