// Package store provides SQLite-backed persistence for learned words and
// input session summaries.
package store

import "fmt"

// Table names a word table.
type Table string

const (
	// AutoWords holds words learned from typing.
	AutoWords Table = "words"
	// UserWords holds words the user added or that were promoted from
	// AutoWords.
	UserWords Table = "user_words"
)

func (t Table) validate() error {
	switch t {
	case AutoWords, UserWords:
		return nil
	}
	return fmt.Errorf("unknown word table %q", string(t))
}

// WordEntry is one stored word. A non-positive Freq passed to SaveWords
// deletes the word.
type WordEntry struct {
	Word string
	Freq int
}

// SessionRecord summarizes one input session.
type SessionRecord struct {
	ID             string
	Locale         string
	StartedNs      int64
	EndedNs        int64
	KeysCommitted  int
	WordsCommitted int
	Corrections    int
}
