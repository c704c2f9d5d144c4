// Package suggest ranks candidate words for the word being typed.
//
// A Ranker asks each Provider for words matching a composer, keeps the K
// best by frequency, and post-processes them into the suggestion strip:
//
//	providers ──► top-K merge ──► typed word first ──► commonality gate
//	                                                        │
//	               dedupe ◄── auto-text replacements ◄──────┘
//
// The result also says whether a correction is available, i.e. whether the
// editor may replace the typed word with the first real suggestion.
package suggest

import (
	"fmt"
	"strings"
	"unicode"

	"keyintent/internal/composer"
	"keyintent/internal/textfold"
)

// CorrectionMode selects how aggressively corrections are offered.
type CorrectionMode int

const (
	// CorrectionNone never offers a correction.
	CorrectionNone CorrectionMode = iota
	// CorrectionBasic offers auto-text replacements only.
	CorrectionBasic
	// CorrectionFull offers dictionary corrections and auto-text.
	CorrectionFull
)

func (m CorrectionMode) String() string {
	switch m {
	case CorrectionNone:
		return "none"
	case CorrectionBasic:
		return "basic"
	case CorrectionFull:
		return "full"
	default:
		return fmt.Sprintf("CorrectionMode(%d)", int(m))
	}
}

// ParseCorrectionMode parses "none", "basic" or "full".
func ParseCorrectionMode(s string) (CorrectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return CorrectionNone, nil
	case "basic":
		return CorrectionBasic, nil
	case "full", "":
		return CorrectionFull, nil
	}
	return CorrectionNone, fmt.Errorf("unknown correction mode %q", s)
}

const (
	DefaultMaxSuggestions = 12
	MaxSuggestionsLimit   = 100

	// NextLetterSlots is the size of the next-letter histogram.
	NextLetterSlots = 1280

	// LargeDictionaryThreshold is the word count above which the main
	// dictionary is considered complete enough for auto-correction.
	LargeDictionaryThreshold = 200000

	// minQueryLength is the composer size below which providers are not
	// consulted.
	minQueryLength = 2

	autoTextScan      = 6
	autoTextScanBasic = 1
)

// Result is the outcome of one query.
type Result struct {
	// Words starts with the typed word, followed by ranked candidates.
	Words []string

	// CorrectionAvailable reports that Words[1] may replace the typed word.
	CorrectionAvailable bool

	// TypedWordValid reports that some provider knows the typed word.
	TypedWordValid bool

	// NextLetterFrequencies is indexed by code point.
	NextLetterFrequencies []int
}

// Default returns the suggestion to commit in place of the typed word when
// auto-correcting, or "" when there is none.
func (r Result) Default() string {
	if r.CorrectionAvailable && !r.TypedWordValid && len(r.Words) > 1 {
		return r.Words[1]
	}
	return ""
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithExtraProviders adds providers queried before the main one, such as
// the user and contacts dictionaries.
func WithExtraProviders(p ...Provider) Option {
	return func(r *Ranker) { r.extra = append(r.extra, p...) }
}

// WithValidators adds sources consulted only by IsValidWord.
func WithValidators(v ...Validator) Option {
	return func(r *Ranker) { r.validators = append(r.validators, v...) }
}

// WithAutoText enables the auto-text pass.
func WithAutoText(a AutoText) Option {
	return func(r *Ranker) { r.autoText = a }
}

// WithCorrectionMode sets the correction mode.
func WithCorrectionMode(m CorrectionMode) Option {
	return func(r *Ranker) { r.mode = m }
}

// WithMaxSuggestions sets K. It panics outside 1..100.
func WithMaxSuggestions(n int) Option {
	return func(r *Ranker) { r.SetMaxSuggestions(n) }
}

// Ranker merges provider output into a ranked suggestion list. A Ranker
// reuses its buffers across queries and is not safe for concurrent use.
type Ranker struct {
	main       Provider
	extra      []Provider
	validators []Validator
	autoText   AutoText
	mode       CorrectionMode

	k           int
	priorities  []int
	lengths     []int // rune length of each candidate
	candidates  []string
	nextLetters []int

	// per-query state
	typed      []rune
	capitalize bool
	allUpper   bool
	pinned     bool
	buf        []rune
}

// NewRanker returns a ranker over main, which may be nil.
func NewRanker(main Provider, opts ...Option) *Ranker {
	r := &Ranker{
		main:        main,
		mode:        CorrectionFull,
		nextLetters: make([]int, NextLetterSlots),
	}
	r.SetMaxSuggestions(DefaultMaxSuggestions)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetMainProvider replaces the main provider.
func (r *Ranker) SetMainProvider(p Provider) { r.main = p }

// SetExtraProviders replaces the providers queried before the main one.
func (r *Ranker) SetExtraProviders(p ...Provider) { r.extra = p }

// SetAutoText replaces the auto-text source; nil disables the pass.
func (r *Ranker) SetAutoText(a AutoText) { r.autoText = a }

func (r *Ranker) SetCorrectionMode(m CorrectionMode) { r.mode = m }

func (r *Ranker) CorrectionMode() CorrectionMode { return r.mode }

// SetMaxSuggestions sets K. It panics outside 1..100.
func (r *Ranker) SetMaxSuggestions(n int) {
	if n < 1 || n > MaxSuggestionsLimit {
		panic(fmt.Sprintf("suggest: max suggestions %d out of range 1..%d", n, MaxSuggestionsLimit))
	}
	r.k = n
	r.priorities = make([]int, n)
	r.lengths = make([]int, n)
	r.candidates = make([]string, 0, n)
}

func (r *Ranker) MaxSuggestions() int { return r.k }

// HasMainDictionary reports whether the main provider is large enough to
// drive auto-correction.
func (r *Ranker) HasMainDictionary() bool {
	s, ok := r.main.(sizer)
	return ok && s.Size() > LargeDictionaryThreshold
}

// IsValidWord reports whether any provider or validator knows word.
func (r *Ranker) IsValidWord(word string) bool {
	if word == "" {
		return false
	}
	if r.main != nil && r.main.IsValidWord(word) {
		return true
	}
	for _, p := range r.extra {
		if p.IsValidWord(word) {
			return true
		}
	}
	for _, v := range r.validators {
		if v.IsValidWord(word) {
			return true
		}
	}
	return false
}

func (r *Ranker) reset() {
	for i := range r.priorities {
		r.priorities[i] = 0
		r.lengths[i] = 0
	}
	r.candidates = r.candidates[:0]
	for i := range r.nextLetters {
		r.nextLetters[i] = 0
	}
	r.pinned = false
}

// Query ranks suggestions for the composer's word. Providers are not
// mutated; repeated queries with the same input return the same result.
func (r *Ranker) Query(c *composer.Composer) Result {
	r.reset()

	original := c.TypedWord()
	r.typed = []rune(original)
	r.capitalize = c.IsCapitalized()
	r.allUpper = c.IsMostlyCaps() && isAllUpper(r.typed)

	haveCorrection := false
	if c.Size() >= minQueryLength {
		if len(r.extra) > 0 {
			for _, p := range r.extra {
				p.Words(c, r.addWord, r.nextLetters)
			}
			if len(r.candidates) > 0 && r.IsValidWord(original) && r.mode == CorrectionFull {
				haveCorrection = true
			}
		}
		if r.main != nil {
			r.main.Words(c, r.addWord, r.nextLetters)
		}
		if r.mode == CorrectionFull && len(r.candidates) > 0 {
			haveCorrection = true
		}
	}

	words := make([]string, 0, len(r.candidates)+1)
	if original != "" {
		words = append(words, original)
	}
	words = append(words, r.candidates...)

	if r.mode == CorrectionFull && len(words) > 1 {
		if !SufficientCommonality(strings.ToLower(original), words[1]) {
			haveCorrection = false
		}
	}

	if r.autoText != nil && r.mode != CorrectionNone {
		var added bool
		words, added = r.applyAutoText(words)
		haveCorrection = haveCorrection || added
	}

	words = removeDupes(words)
	if len(words) > r.k {
		words = words[:r.k]
	}

	return Result{
		Words:                 words,
		CorrectionAvailable:   haveCorrection,
		TypedWordValid:        r.IsValidWord(original),
		NextLetterFrequencies: append([]int(nil), r.nextLetters...),
	}
}

// addWord offers one candidate to the top-K buffer.
func (r *Ranker) addWord(word []rune, freq int) bool {
	k := r.k
	pos := 0

	if !r.pinned && r.matchesTyped(word) {
		// The typed word in another case always ranks first.
		r.pinned = true
	} else {
		if r.priorities[k-1] >= freq {
			return true
		}
		if r.pinned {
			pos = 1
		}
		for ; pos < k; pos++ {
			if r.priorities[pos] < freq {
				break
			}
			if r.priorities[pos] == freq && pos < len(r.candidates) &&
				len(word) < r.lengths[pos] {
				break
			}
		}
	}
	if pos >= k {
		return true
	}

	copy(r.priorities[pos+1:], r.priorities[pos:k-1])
	r.priorities[pos] = freq
	copy(r.lengths[pos+1:], r.lengths[pos:k-1])
	r.lengths[pos] = len(word)

	s := r.format(word)
	if len(r.candidates) < k {
		r.candidates = append(r.candidates, "")
	}
	copy(r.candidates[pos+1:], r.candidates[pos:len(r.candidates)-1])
	r.candidates[pos] = s
	return true
}

func (r *Ranker) matchesTyped(word []rune) bool {
	if len(word) != len(r.typed) || len(word) == 0 {
		return false
	}
	for i := range word {
		if unicode.ToLower(word[i]) != unicode.ToLower(r.typed[i]) {
			return false
		}
	}
	return true
}

func (r *Ranker) format(word []rune) string {
	r.buf = append(r.buf[:0], word...)
	switch {
	case r.allUpper:
		for i, ch := range r.buf {
			r.buf[i] = unicode.ToUpper(ch)
		}
	case r.capitalize && len(r.buf) > 0:
		r.buf[0] = unicode.ToUpper(r.buf[0])
	}
	return string(r.buf)
}

func (r *Ranker) applyAutoText(words []string) ([]string, bool) {
	limit := autoTextScan
	if r.mode == CorrectionBasic {
		limit = autoTextScanBasic
	}
	added := false
	for i := 0; i < len(words) && i < limit; i++ {
		repl, ok := r.autoText.Lookup(strings.ToLower(words[i]))
		if !ok || repl == words[i] {
			continue
		}
		if i+1 < len(words) && r.mode != CorrectionBasic && repl == words[i+1] {
			continue
		}
		words = append(words, "")
		copy(words[i+2:], words[i+1:])
		words[i+1] = repl
		added = true
		i++
	}
	return words, added
}

// removeDupes drops later exact duplicates, keeping the first occurrence.
func removeDupes(words []string) []string {
	out := words[:0]
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func isAllUpper(rs []rune) bool {
	for _, r := range rs {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return len(rs) > 0
}

// SufficientCommonality reports whether suggestion shares enough letters
// with the lower-cased typed word to be offered as a correction. Letters
// are compared position by position, also allowing the suggestion to run
// one letter ahead to tolerate a dropped character.
func SufficientCommonality(lowerOriginal, suggestion string) bool {
	orig := []rune(lowerOriginal)
	sugg := []rune(suggestion)
	minLength := min(len(orig), len(sugg))
	if minLength <= 2 {
		return true
	}

	matching, lessMatching := 0, 0
	for i := 0; i < minLength; i++ {
		o := textfold.Rune(orig[i])
		if o == textfold.Rune(sugg[i]) {
			matching++
			lessMatching++
		} else if i+1 < len(sugg) && o == textfold.Rune(sugg[i+1]) {
			lessMatching++
		}
	}
	matching = max(matching, lessMatching)
	if minLength <= 4 {
		return matching >= 2
	}
	return matching > minLength/2
}
