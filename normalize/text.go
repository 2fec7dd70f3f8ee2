package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics and turns every run of non
// alphanumeric characters into a single space. It is the key used for every
// keyword and reference-table comparison: "Locação / Temporada" and
// "locacao temporada" fold to the same string.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

// Portuguese particles kept lower-case inside names.
var particles = map[string]bool{
	"a": true, "as": true, "o": true, "os": true, "e": true,
	"da": true, "das": true, "de": true, "do": true, "dos": true,
	"em": true, "na": true, "no": true,
}

var titleCaser = cases.Title(language.BrazilianPortuguese)

// TitleCase normalizes the casing of street, neighborhood and city names:
// "RUA DAS FLORES" becomes "Rua das Flores". Whitespace is collapsed.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lower := strings.ToLower(w)
		if i > 0 && particles[lower] {
			words[i] = lower
			continue
		}
		words[i] = titleCaser.String(lower)
	}
	return strings.Join(words, " ")
}

// Clean trims s and collapses inner whitespace, keeping line breaks out of
// single-line fields.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
