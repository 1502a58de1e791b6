package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/parlatrack/parlatrack/internal/storage"
)

// touch records that a collector's scraper last wrote the entity, then
// evicts the oldest entries so at most logSize scrapers stay on record per
// entity. Writes without a scraper name (manual edits) leave no trace.
func (s *SQLiteStorage) touch(ctx context.Context, tx *sql.Tx, table, idCol string, id int64, by storage.Collector) error {
	if by.Scraper == "" {
		return nil
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO `+table+` (`+idCol+`, scraper, collector_key, time_stamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (`+idCol+`, scraper) DO UPDATE SET
			collector_key = excluded.collector_key,
			time_stamp = excluded.time_stamp`,
		id, by.Scraper, by.KeyID, now)
	if err != nil {
		return fmt.Errorf("failed to record scraper touch in %s: %w", table, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM `+table+` WHERE `+idCol+` = ? AND scraper NOT IN (
			SELECT scraper FROM `+table+` WHERE `+idCol+` = ?
			ORDER BY time_stamp DESC, scraper ASC LIMIT ?)`,
		id, id, s.logSize)
	if err != nil {
		return fmt.Errorf("failed to evict scraper touches in %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStorage) touchVorgang(ctx context.Context, tx *sql.Tx, id int64, by storage.Collector) error {
	return s.touch(ctx, tx, "scraper_touched_vorgang", "vg_id", id, by)
}

func (s *SQLiteStorage) touchStation(ctx context.Context, tx *sql.Tx, id int64, by storage.Collector) error {
	return s.touch(ctx, tx, "scraper_touched_station", "stat_id", id, by)
}

func (s *SQLiteStorage) touchDokument(ctx context.Context, tx *sql.Tx, id int64, by storage.Collector) error {
	return s.touch(ctx, tx, "scraper_touched_dokument", "dok_id", id, by)
}

func (s *SQLiteStorage) touchSitzung(ctx context.Context, tx *sql.Tx, id int64, by storage.Collector) error {
	return s.touch(ctx, tx, "scraper_touched_sitzung", "sid", id, by)
}
