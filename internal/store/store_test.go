package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestReopenKeepsWords(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SaveWords(ctx, AutoWords, "en_US", []WordEntry{{"hello", 9}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}
	s.Close()

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	words, err := s.LoadWords(ctx, AutoWords, "en_US")
	if err != nil {
		t.Fatalf("LoadWords failed: %v", err)
	}
	if len(words) != 1 || words[0].Word != "hello" || words[0].Freq != 9 {
		t.Errorf("unexpected words after reopen: %+v", words)
	}
}

// =============================================================================
// Words
// =============================================================================

func TestSaveAndLoadWords(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	entries := []WordEntry{{"world", 3}, {"apple", 12}, {"keyboard", 1}}
	if err := s.SaveWords(ctx, AutoWords, "en_US", entries); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}

	got, err := s.LoadWords(ctx, AutoWords, "en_US")
	if err != nil {
		t.Fatalf("LoadWords failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 words, got %d", len(got))
	}
	// Ordered by word.
	if got[0].Word != "apple" || got[1].Word != "keyboard" || got[2].Word != "world" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[0].Freq != 12 {
		t.Errorf("expected freq 12 for apple, got %d", got[0].Freq)
	}
}

func TestSaveWordsUpserts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SaveWords(ctx, AutoWords, "en_US", []WordEntry{{"word", 1}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}
	if err := s.SaveWords(ctx, AutoWords, "en_US", []WordEntry{{"word", 7}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}

	freq, err := s.WordFrequency(ctx, AutoWords, "en_US", "word")
	if err != nil {
		t.Fatalf("WordFrequency failed: %v", err)
	}
	if freq != 7 {
		t.Errorf("expected freq 7, got %d", freq)
	}
}

func TestSaveWordsNonPositiveDeletes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SaveWords(ctx, AutoWords, "en_US", []WordEntry{{"gone", 5}, {"kept", 5}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}
	if err := s.SaveWords(ctx, AutoWords, "en_US", []WordEntry{{"gone", 0}, {"never", -1}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}

	got, err := s.LoadWords(ctx, AutoWords, "en_US")
	if err != nil {
		t.Fatalf("LoadWords failed: %v", err)
	}
	if len(got) != 1 || got[0].Word != "kept" {
		t.Errorf("expected only 'kept', got %+v", got)
	}
}

func TestSaveWordsEmpty(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveWords(context.Background(), UserWords, "en_US", nil); err != nil {
		t.Errorf("SaveWords with no entries should not error: %v", err)
	}
}

func TestWordsSeparatedByLocaleAndTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SaveWords(ctx, AutoWords, "en_US", []WordEntry{{"color", 2}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}
	if err := s.SaveWords(ctx, AutoWords, "en_GB", []WordEntry{{"colour", 2}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}
	if err := s.SaveWords(ctx, UserWords, "en_US", []WordEntry{{"keyintent", 250}}); err != nil {
		t.Fatalf("SaveWords failed: %v", err)
	}

	us, err := s.LoadWords(ctx, AutoWords, "en_US")
	if err != nil {
		t.Fatalf("LoadWords failed: %v", err)
	}
	if len(us) != 1 || us[0].Word != "color" {
		t.Errorf("unexpected en_US auto words: %+v", us)
	}

	user, err := s.LoadWords(ctx, UserWords, "en_US")
	if err != nil {
		t.Fatalf("LoadWords failed: %v", err)
	}
	if len(user) != 1 || user[0].Word != "keyintent" || user[0].Freq != 250 {
		t.Errorf("unexpected user words: %+v", user)
	}
}

func TestWordFrequencyNotFound(t *testing.T) {
	s := openTestStore(t)
	freq, err := s.WordFrequency(context.Background(), UserWords, "en_US", "missing")
	if err != nil {
		t.Fatalf("WordFrequency failed: %v", err)
	}
	if freq != -1 {
		t.Errorf("expected -1 for missing word, got %d", freq)
	}
}

func TestUnknownTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.LoadWords(ctx, Table("sessions; DROP TABLE words"), "en_US"); err == nil {
		t.Error("expected error for unknown table")
	}
	if err := s.SaveWords(ctx, Table("bogus"), "en_US", []WordEntry{{"a", 1}}); err == nil {
		t.Error("expected error for unknown table")
	}
	if _, err := s.WordFrequency(ctx, Table("bogus"), "en_US", "a"); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestSaveWordsCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SaveWords(ctx, AutoWords, "en_US", []WordEntry{{"late", 1}}); err == nil {
		t.Error("expected error with cancelled context")
	}
}

// =============================================================================
// Sessions
// =============================================================================

func TestInsertAndListSessions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Now().UnixNano()
	for i, id := range []string{"a", "b", "c"} {
		rec := &SessionRecord{
			ID:             id,
			Locale:         "en_US",
			StartedNs:      base + int64(i)*int64(time.Second),
			EndedNs:        base + int64(i+1)*int64(time.Second),
			KeysCommitted:  10 * (i + 1),
			WordsCommitted: i + 1,
			Corrections:    i,
		}
		if err := s.InsertSession(ctx, rec); err != nil {
			t.Fatalf("InsertSession failed: %v", err)
		}
	}

	got, err := s.RecentSessions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].KeysCommitted != 30 || got[0].Corrections != 2 {
		t.Errorf("unexpected session contents: %+v", got[0])
	}
}

func TestInsertSessionDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := &SessionRecord{ID: "dup", Locale: "en_US", StartedNs: 1, EndedNs: 2}
	if err := s.InsertSession(ctx, rec); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}
	if err := s.InsertSession(ctx, rec); err == nil {
		t.Error("expected error on duplicate session ID")
	}
}

func TestRecentSessionsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.RecentSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no sessions, got %d", len(got))
	}
}

// =============================================================================
// Migrations
// =============================================================================

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "raw.db"))
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateDBIdempotent(t *testing.T) {
	db := openRawDB(t)

	if err := MigrateDB(db); err != nil {
		t.Fatalf("first MigrateDB failed: %v", err)
	}
	if err := MigrateDB(db); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}
	if err := ValidateSchema(db); err != nil {
		t.Errorf("ValidateSchema failed: %v", err)
	}

	status, err := GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != status.LatestVersion {
		t.Errorf("expected current %d == latest %d", status.CurrentVersion, status.LatestVersion)
	}
	if len(status.Pending) != 0 {
		t.Errorf("expected no pending migrations, got %d", len(status.Pending))
	}
}

func TestMigrationStatusFreshDB(t *testing.T) {
	db := openRawDB(t)

	status, err := GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != 0 {
		t.Errorf("expected version 0, got %d", status.CurrentVersion)
	}
	if len(status.Pending) != len(migrations) {
		t.Errorf("expected %d pending, got %d", len(migrations), len(status.Pending))
	}
}

func TestRollbackMigration(t *testing.T) {
	db := openRawDB(t)
	if err := MigrateDB(db); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}

	if err := RollbackMigration(db); err != nil {
		t.Fatalf("RollbackMigration failed: %v", err)
	}
	if err := ValidateSchema(db); err == nil {
		t.Error("expected missing sessions table after rollback")
	}

	status, err := GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != len(migrations)-1 {
		t.Errorf("expected version %d, got %d", len(migrations)-1, status.CurrentVersion)
	}

	// Re-applying restores the schema.
	if err := MigrateDB(db); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}
	if err := ValidateSchema(db); err != nil {
		t.Errorf("ValidateSchema failed: %v", err)
	}
}

func TestRollbackAll(t *testing.T) {
	db := openRawDB(t)
	if err := MigrateDB(db); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}
	for range migrations {
		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration failed: %v", err)
		}
	}
	if err := RollbackMigration(db); err == nil {
		t.Error("expected error with nothing to roll back")
	}
}
