package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite word store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadWords returns every word of table for locale.
func (s *Store) LoadWords(ctx context.Context, table Table, locale string) ([]WordEntry, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT word, freq FROM `+string(table)+` WHERE locale = ? ORDER BY word ASC`, locale)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var entries []WordEntry
	for rows.Next() {
		var e WordEntry
		if err := rows.Scan(&e.Word, &e.Freq); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return entries, nil
}

// SaveWords writes entries in one transaction. Entries with a non-positive
// frequency are deleted.
func (s *Store) SaveWords(ctx context.Context, table Table, locale string, entries []WordEntry) error {
	if err := table.validate(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO `+string(table)+` (word, freq, locale) VALUES (?, ?, ?)
		ON CONFLICT(word, locale) DO UPDATE SET freq = excluded.freq`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	del, err := tx.PrepareContext(ctx, `DELETE FROM `+string(table)+` WHERE word = ? AND locale = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer del.Close()

	for _, e := range entries {
		if e.Freq <= 0 {
			if _, err := del.ExecContext(ctx, e.Word, locale); err != nil {
				return fmt.Errorf("delete word: %w", err)
			}
			continue
		}
		if _, err := upsert.ExecContext(ctx, e.Word, e.Freq, locale); err != nil {
			return fmt.Errorf("upsert word: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WordFrequency returns the stored frequency of word, or -1 if absent.
func (s *Store) WordFrequency(ctx context.Context, table Table, locale, word string) (int, error) {
	if err := table.validate(); err != nil {
		return 0, err
	}
	var freq int
	err := s.db.QueryRowContext(ctx,
		`SELECT freq FROM `+string(table)+` WHERE word = ? AND locale = ?`, word, locale).Scan(&freq)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get word frequency: %w", err)
	}
	return freq, nil
}

// InsertSession records a finished session.
func (s *Store) InsertSession(ctx context.Context, r *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, locale, started_ns, ended_ns, keys_committed, words_committed, corrections)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Locale, r.StartedNs, r.EndedNs, r.KeysCommitted, r.WordsCommitted, r.Corrections,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, locale, started_ns, ended_ns, keys_committed, words_committed, corrections
		FROM sessions
		ORDER BY started_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.Locale, &r.StartedNs, &r.EndedNs, &r.KeysCommitted, &r.WordsCommitted, &r.Corrections); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
