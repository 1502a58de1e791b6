package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single named schema change. Migrations run in order during
// initialization; applied names are recorded in the metadata table, and
// every migration must be idempotent anyway.
type Migration struct {
	Name string
	Func func(context.Context, *sql.DB) error
}

var migrationsList = []Migration{
	{"seed_guarded_vocabularies", migrateSeedGuardedVocabularies},
	{"api_keys_last_used_index", migrateAPIKeysLastUsedIndex},
	{"sitzung_gremium_index", migrateSitzungGremiumIndex},
}

func (s *SQLiteStorage) runMigrations(ctx context.Context) error {
	for _, m := range migrationsList {
		var done int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM metadata WHERE key = ?`, "migration:"+m.Name).Scan(&done)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.Name, err)
		}
		if done > 0 {
			continue
		}
		if err := m.Func(ctx, s.db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, 'done')`,
			"migration:"+m.Name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// migrateSeedGuardedVocabularies inserts the built-in values of the guarded
// vocabularies so fresh databases can resolve enum ids without waiting for
// the first enum PUT.
func migrateSeedGuardedVocabularies(ctx context.Context, db *sql.DB) error {
	seed := func(table string, values []string) error {
		for _, v := range values {
			if _, err := db.ExecContext(ctx,
				`INSERT INTO `+table+` (value) VALUES (?) ON CONFLICT (value) DO NOTHING`, v); err != nil {
				return fmt.Errorf("failed to seed %s: %w", table, err)
			}
		}
		return nil
	}
	for table, values := range builtinVocabularies() {
		if err := seed(table, values); err != nil {
			return err
		}
	}
	return nil
}

func migrateAPIKeysLastUsedIndex(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_last_used ON api_keys(last_used)`)
	return err
}

func migrateSitzungGremiumIndex(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_sitzung_gremium ON sitzung(gr_id)`)
	return err
}
