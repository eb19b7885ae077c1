package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics strips combining marks. A transformer keeps state, so one is built per call.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName folds a name into its index key: lowercase, no diacritics,
// single spaces between words.
func NormalizeName(name string) string {
	folded := foldDiacritics(strings.ToLower(name))
	return strings.Join(strings.Fields(folded), " ")
}

// foldKey folds a raw column name down to lowercase letters and digits.
func foldKey(key string) string {
	folded := foldDiacritics(strings.ToLower(strings.TrimSpace(key)))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
