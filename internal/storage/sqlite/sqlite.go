// Package sqlite implements the storage interface on SQLite. All mutating
// operations run inside a single BEGIN IMMEDIATE transaction; candidate
// resolution, merging and enum replacement therefore see a stable snapshot
// and serialize against concurrent writers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parlatrack/parlatrack/internal/notify"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// openAttempts bounds the connection retry loop: 14 attempts with
// exponential backoff from 1 ms to 2^13 ms.
const openAttempts = 14

// Sink receives notification events emitted by storage operations
// (ambiguous matches, new vocabulary values, sonstig use).
type Sink interface {
	Notify(notify.Event)
}

type nopSink struct{}

func (nopSink) Notify(notify.Event) {}

// Options tune a Storage instance. Zero values select defaults.
type Options struct {
	Logger *zap.Logger
	Sink   Sink
	// ScraperLogSize bounds the per-entity provenance log. Default 5.
	ScraperLogSize int
	// TitleSimilarity returns the threshold above which a new vocabulary
	// value is reported as a near-duplicate. Default: constant 0.8.
	TitleSimilarity func() float64
}

// SQLiteStorage implements storage.Storage.
type SQLiteStorage struct {
	db      *sql.DB
	log     *zap.Logger
	sink    Sink
	logSize int
	simil   func() float64
}

// New opens (and if necessary creates) the database at path, applies the
// schema and migrations, and returns the storage. Connection establishment
// retries with exponential backoff before giving up.
func New(ctx context.Context, path string, opts Options) (*SQLiteStorage, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.ScraperLogSize <= 0 {
		opts.ScraperLogSize = 5
	}
	if opts.TitleSimilarity == nil {
		opts.TitleSimilarity = func() float64 { return 0.8 }
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(wal)", path)

	var db *sql.DB
	var err error
	for attempt := 0; attempt < openAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		db, err = sql.Open("sqlite3", dsn)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				break
			}
			_ = db.Close()
			db = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s after %d attempts: %w", path, openAttempts, err)
	}

	s := &SQLiteStorage{
		db:      db,
		log:     opts.Logger,
		sink:    opts.Sink,
		logSize: opts.ScraperLogSize,
		simil:   opts.TitleSimilarity,
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a single transaction. The transaction is rolled
// back on error or panic and committed otherwise.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueConstraintError checks if err is a UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

// canonTS stores timestamps in their canonical at-rest form: UTC at
// millisecond resolution.
func canonTS(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func canonTSPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return canonTS(*t)
}

// nullStr maps optional strings to their at-rest form. Columns that take
// part in composite unique keys store '' instead of NULL so SQLite enforces
// the uniqueness (NULLs are pairwise distinct in unique indexes).
func nullStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strNull(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
