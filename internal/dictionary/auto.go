package dictionary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"

	"keyintent/internal/store"
)

const (
	// FrequencyForPicked is added when the user picks the typed word from
	// the suggestion strip.
	FrequencyForPicked = 3
	// FrequencyForTyped is added when a typed word is committed without
	// correction.
	FrequencyForTyped = 1
	// FrequencyForAutoAdd is the user-dictionary frequency of promoted words.
	FrequencyForAutoAdd = 250

	// ValidityThreshold is the frequency from which a learned word is valid.
	ValidityThreshold = 2 * FrequencyForPicked
	// PromotionThreshold is the frequency from which a learned word moves to
	// the user dictionary.
	PromotionThreshold = 4 * FrequencyForPicked
)

// AutoDictionary learns words as they are committed. It never proposes
// words itself; it vouches for words typed often enough and promotes the
// most frequent ones to the user dictionary.
//
// Writes are buffered until Flush.
type AutoDictionary struct {
	trie   *Trie
	store  WordStore
	user   *UserDictionary
	locale string

	mu      sync.Mutex
	pending map[string]int
}

// NewAutoDictionary loads learned words for locale. ws and user may be nil.
func NewAutoDictionary(ctx context.Context, ws WordStore, locale string, user *UserDictionary) (*AutoDictionary, error) {
	d := &AutoDictionary{
		trie:    NewTrie(),
		store:   ws,
		user:    user,
		locale:  locale,
		pending: make(map[string]int),
	}
	if ws == nil || len(locale) < 2 {
		return d, nil
	}
	entries, err := ws.LoadWords(ctx, store.AutoWords, locale)
	if err != nil {
		return nil, fmt.Errorf("load learned words: %w", err)
	}
	for _, e := range entries {
		d.trie.Add(e.Word, e.Freq)
	}
	return d, nil
}

// Learn adds delta to word's frequency. When autoCapitalized is set the
// first letter is lower-cased first. Words shorter than two runes, or of
// MaxWordLength runes or more, are ignored. It reports whether the word was
// promoted to the user dictionary. Nothing is written until Flush.
func (d *AutoDictionary) Learn(word string, delta int, autoCapitalized bool) bool {
	n := utf8.RuneCountInString(word)
	if n < 2 || n >= MaxWordLength {
		return false
	}
	if autoCapitalized {
		r, size := utf8.DecodeRuneInString(word)
		word = string(unicode.ToLower(r)) + word[size:]
	}

	freq := d.trie.Frequency(word)
	if freq < 0 {
		freq = delta
	} else {
		freq += delta
	}
	d.trie.Add(word, freq)

	d.mu.Lock()
	defer d.mu.Unlock()

	if freq < PromotionThreshold {
		d.pending[word] = freq
		return false
	}

	// The word now lives in the user dictionary; drop the stored copy but
	// keep vouching for it in memory.
	d.pending[word] = 0
	if d.user == nil || d.user.IsValidWord(word) {
		return false
	}
	d.user.queue(word, FrequencyForAutoAdd)
	return true
}

// Flush writes buffered changes, including promoted user words, to the
// store.
func (d *AutoDictionary) Flush(ctx context.Context) error {
	err := d.flushLearned(ctx)
	if d.user != nil {
		err = errors.Join(err, d.user.Flush(ctx))
	}
	return err
}

func (d *AutoDictionary) flushLearned(ctx context.Context) error {
	d.mu.Lock()
	if len(d.pending) == 0 || d.store == nil {
		d.pending = make(map[string]int)
		d.mu.Unlock()
		return nil
	}
	pending := d.pending
	d.pending = make(map[string]int)
	d.mu.Unlock()

	if err := d.store.SaveWords(ctx, store.AutoWords, d.locale, sortedEntries(pending)); err != nil {
		d.mu.Lock()
		requeue(d.pending, pending)
		d.mu.Unlock()
		return fmt.Errorf("flush learned words: %w", err)
	}
	return nil
}

func sortedEntries(m map[string]int) []store.WordEntry {
	entries := make([]store.WordEntry, 0, len(m))
	for w, f := range m {
		entries = append(entries, store.WordEntry{Word: w, Freq: f})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Word < entries[j].Word })
	return entries
}

// requeue puts failed writes back unless a newer value is already queued.
func requeue(dst, failed map[string]int) {
	for w, f := range failed {
		if _, ok := dst[w]; !ok {
			dst[w] = f
		}
	}
}

// Pending returns the number of unflushed changes.
func (d *AutoDictionary) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// IsValidWord reports whether word has been learned often enough.
func (d *AutoDictionary) IsValidWord(word string) bool {
	return d.trie.Frequency(word) >= ValidityThreshold
}

// Frequency returns the learned frequency of word, or -1.
func (d *AutoDictionary) Frequency(word string) int { return d.trie.Frequency(word) }

func (d *AutoDictionary) Size() int { return d.trie.Size() }
