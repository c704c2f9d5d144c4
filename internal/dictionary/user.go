package dictionary

import (
	"context"
	"fmt"
	"sync"

	"keyintent/internal/composer"
	"keyintent/internal/store"
	"keyintent/internal/suggest"
)

// WordStore persists word tables. *store.Store implements it.
type WordStore interface {
	LoadWords(ctx context.Context, table store.Table, locale string) ([]store.WordEntry, error)
	SaveWords(ctx context.Context, table store.Table, locale string, entries []store.WordEntry) error
}

// UserDictionary holds words the user added, or that were promoted from
// the auto dictionary. AddWord and DeleteWord write through to the store;
// promotions wait for Flush.
type UserDictionary struct {
	trie   *Trie
	store  WordStore
	locale string

	mu      sync.Mutex
	pending map[string]int
}

// NewUserDictionary loads the user words for locale. ws may be nil, in
// which case the dictionary lives in memory only.
func NewUserDictionary(ctx context.Context, ws WordStore, locale string) (*UserDictionary, error) {
	d := &UserDictionary{trie: NewTrie(), store: ws, locale: locale, pending: make(map[string]int)}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload replaces the in-memory words with the stored ones.
func (d *UserDictionary) Reload(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	entries, err := d.store.LoadWords(ctx, store.UserWords, d.locale)
	if err != nil {
		return fmt.Errorf("load user words: %w", err)
	}
	d.trie.Clear()
	for _, e := range entries {
		d.trie.Add(e.Word, e.Freq)
	}
	return nil
}

// AddWord adds word with freq, keeping a larger existing frequency.
func (d *UserDictionary) AddWord(ctx context.Context, word string, freq int) error {
	if !validWord(word) {
		return nil
	}
	d.trie.Add(word, freq)
	if d.store == nil {
		return nil
	}
	entry := store.WordEntry{Word: word, Freq: d.trie.Frequency(word)}
	if err := d.store.SaveWords(ctx, store.UserWords, d.locale, []store.WordEntry{entry}); err != nil {
		return fmt.Errorf("save user word: %w", err)
	}
	return nil
}

// queue adds word in memory and defers the store write to Flush.
func (d *UserDictionary) queue(word string, freq int) {
	if !validWord(word) {
		return
	}
	d.trie.Add(word, freq)
	if d.store == nil {
		return
	}
	d.mu.Lock()
	d.pending[word] = d.trie.Frequency(word)
	d.mu.Unlock()
}

// Flush writes queued promotions to the store.
func (d *UserDictionary) Flush(ctx context.Context) error {
	d.mu.Lock()
	if len(d.pending) == 0 || d.store == nil {
		d.mu.Unlock()
		return nil
	}
	pending := d.pending
	d.pending = make(map[string]int)
	d.mu.Unlock()

	if err := d.store.SaveWords(ctx, store.UserWords, d.locale, sortedEntries(pending)); err != nil {
		d.mu.Lock()
		requeue(d.pending, pending)
		d.mu.Unlock()
		return fmt.Errorf("flush user words: %w", err)
	}
	return nil
}

// Pending returns the number of unflushed promotions.
func (d *UserDictionary) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// DeleteWord removes word.
func (d *UserDictionary) DeleteWord(ctx context.Context, word string) error {
	d.mu.Lock()
	delete(d.pending, word)
	d.mu.Unlock()
	if !d.trie.Remove(word) || d.store == nil {
		return nil
	}
	entry := store.WordEntry{Word: word, Freq: 0}
	if err := d.store.SaveWords(ctx, store.UserWords, d.locale, []store.WordEntry{entry}); err != nil {
		return fmt.Errorf("delete user word: %w", err)
	}
	return nil
}

func (d *UserDictionary) Words(c *composer.Composer, cb suggest.WordCallback, nextLetterFreq []int) {
	d.trie.Words(c, cb, nextLetterFreq)
}

func (d *UserDictionary) IsValidWord(word string) bool { return d.trie.IsValidWord(word) }

func (d *UserDictionary) Frequency(word string) int { return d.trie.Frequency(word) }

func (d *UserDictionary) Size() int { return d.trie.Size() }

func (d *UserDictionary) Locale() string { return d.locale }
