// Package textfold lower-cases text and strips diacritics so that "É" and
// "e" compare equal during dictionary lookups.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tableSize covers Latin-1, Latin Extended A/B, and Greek and Cyrillic.
const tableSize = 0x500

var table [tableSize]rune

func init() {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	for r := rune(0); r < tableSize; r++ {
		table[r] = foldSlow(t, r)
	}
}

func foldSlow(t transform.Transformer, r rune) rune {
	s, _, err := transform.String(t, string(r))
	t.Reset()
	if err != nil || s == "" {
		return unicode.ToLower(r)
	}
	base := []rune(s)
	if len(base) != 1 {
		return unicode.ToLower(r)
	}
	return unicode.ToLower(base[0])
}

// Rune folds a single rune.
func Rune(r rune) rune {
	if r >= 0 && r < tableSize {
		return table[r]
	}
	return unicode.ToLower(r)
}

// String folds every rune of s.
func String(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(Rune(r))
	}
	return b.String()
}

// Equal reports whether a and b fold to the same text.
func Equal(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	if len(ar) != len(br) {
		return false
	}
	for i := range ar {
		if Rune(ar[i]) != Rune(br[i]) {
			return false
		}
	}
	return true
}
