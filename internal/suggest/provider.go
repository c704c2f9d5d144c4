package suggest

import (
	"keyintent/internal/composer"
)

// WordCallback receives one candidate word and its frequency. Returning
// false asks the provider to stop early. word is only valid during the call.
type WordCallback func(word []rune, freq int) bool

// Provider is a source of candidate words.
type Provider interface {
	// Words reports every word matching the composer to cb. Providers may
	// add to nextLetterFreq, indexed by code point, for letters that would
	// extend the typed prefix.
	Words(c *composer.Composer, cb WordCallback, nextLetterFreq []int)
	IsValidWord(word string) bool
}

// Validator only answers validity questions. The auto-learned dictionary is
// one: it never proposes words but can vouch for them.
type Validator interface {
	IsValidWord(word string) bool
}

// AutoText maps a word to a replacement, such as "teh" to "the".
type AutoText interface {
	Lookup(word string) (string, bool)
}

// AutoTextMap is an AutoText backed by a map keyed by lower-case word.
type AutoTextMap map[string]string

func (m AutoTextMap) Lookup(word string) (string, bool) {
	s, ok := m[word]
	return s, ok
}

// sizer is implemented by providers that know their word count.
type sizer interface {
	Size() int
}
