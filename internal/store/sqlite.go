// ABOUTME: SQLite implementation of the pollgate store using modernc.org/sqlite
// ABOUTME: Provides schema creation and transactional unit-of-work via WithTx

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists polls, choices, votes and the dedup ledger in SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Foreign keys are per-connection in SQLite; the DSN pragma applies to
	// every connection the pool opens, an Exec would only cover one
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance; the journal mode
	// is persistent in the database file
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS polls (
			poll_id         INTEGER PRIMARY KEY,
			title           TEXT NOT NULL,
			chat_id         TEXT NOT NULL,
			creator_user_id INTEGER NOT NULL,
			created_at      TEXT NOT NULL,
			closed_at       TEXT,
			is_multi_vote   INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_polls_chat_open
			ON polls(chat_id) WHERE closed_at IS NULL;

		CREATE TABLE IF NOT EXISTS poll_choices (
			choice_id INTEGER PRIMARY KEY,
			poll_id   INTEGER NOT NULL,
			text      TEXT NOT NULL,
			FOREIGN KEY (poll_id) REFERENCES polls(poll_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_choices_poll_id
			ON poll_choices(poll_id);

		CREATE TABLE IF NOT EXISTS poll_votes (
			vote_id    INTEGER PRIMARY KEY,
			choice_id  INTEGER NOT NULL,
			user_id    INTEGER NOT NULL,
			user_name  TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (choice_id) REFERENCES poll_choices(choice_id) ON DELETE CASCADE,
			UNIQUE (choice_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_votes_choice_id
			ON poll_votes(choice_id);

		CREATE TABLE IF NOT EXISTS processed_updates (
			id         TEXT PRIMARY KEY,
			update_id  INTEGER NOT NULL,
			first_seen TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_processed_updates_update_id
			ON processed_updates(update_id);

		CREATE INDEX IF NOT EXISTS idx_processed_updates_first_seen
			ON processed_updates(first_seen);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Tx is one unit of work against the store. All entity operations hang off
// Tx so that every read-modify-write sequence is atomic.
type Tx struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// WithTx runs fn inside a single database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise; fn's error is
// returned unchanged so callers can match sentinel errors through it.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	t := &Tx{tx: dbtx, logger: s.logger}
	if err := fn(t); err != nil {
		if rbErr := dbtx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// formatTime renders a timestamp the way the store persists it.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}
