package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parlatrack/parlatrack/internal/canon"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// insertSitzung inserts a new session with its agenda and associations and
// returns the surrogate id.
func (s *SQLiteStorage) insertSitzung(ctx context.Context, tx *sql.Tx, sz *types.Sitzung, by storage.Collector) (int64, error) {
	if sz.APIID == "" {
		sz.APIID = uuid.NewString()
	}
	grID, err := s.gremiumID(ctx, tx, sz.Gremium)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sitzung (api_id, titel, termin, gr_id, nummer, public, link)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sz.APIID, sz.Titel, canonTS(sz.Termin), grID, sz.Nummer, sz.Public, sz.Link)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sitzung: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted sitzung id: %w", err)
	}

	for _, r := range sz.Dokumente {
		dokID, err := s.resolveDokRef(ctx, tx, r, by)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_sitzung_dokument (sid, dok_id) VALUES (?, ?)
			 ON CONFLICT (sid, dok_id) DO NOTHING`, id, dokID); err != nil {
			return 0, fmt.Errorf("failed to link sitzung dokument: %w", err)
		}
	}
	for _, a := range sz.Experten {
		autorID, err := s.autorID(ctx, tx, a)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_sitzung_experten (sid, autor_id) VALUES (?, ?)
			 ON CONFLICT (sid, autor_id) DO NOTHING`, id, autorID); err != nil {
			return 0, fmt.Errorf("failed to link sitzung experte: %w", err)
		}
	}

	for _, top := range sz.Tops {
		tres, err := tx.ExecContext(ctx,
			`INSERT INTO top (sid, nummer, titel) VALUES (?, ?, ?)`,
			id, top.Nummer, top.Titel)
		if err != nil {
			return 0, fmt.Errorf("failed to insert top %d: %w", top.Nummer, err)
		}
		topID, err := tres.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read inserted top id: %w", err)
		}
		for _, r := range top.Dokumente {
			dokID, err := s.resolveDokRef(ctx, tx, r, by)
			if err != nil {
				return 0, err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tops_doks (top_id, dok_id) VALUES (?, ?)
				 ON CONFLICT (top_id, dok_id) DO NOTHING`, topID, dokID); err != nil {
				return 0, fmt.Errorf("failed to link top dokument: %w", err)
			}
		}
	}

	if err := s.touchSitzung(ctx, tx, id, by); err != nil {
		return 0, err
	}
	return id, nil
}

// PutSitzung is PUT-by-id: insert when the api_id is absent, replace when the
// stored object differs canonically, ErrNotModified when equal.
func (s *SQLiteStorage) PutSitzung(ctx context.Context, sz *types.Sitzung, by storage.Collector) (bool, error) {
	if err := sz.Validate(); err != nil {
		return false, &storage.ValidationError{Err: err}
	}

	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM sitzung WHERE api_id = ?`, sz.APIID).Scan(&id)
		if err == sql.ErrNoRows {
			created = true
			_, err := s.insertSitzung(ctx, tx, sz, by)
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to look up sitzung %s: %w", sz.APIID, err)
		}

		stored, err := s.loadSitzung(ctx, tx, id)
		if err != nil {
			return err
		}
		if canon.EqualSitzung(stored, sz) {
			return storage.ErrNotModified
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sitzung WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete sitzung: %w", err)
		}
		_, err = s.insertSitzung(ctx, tx, sz, by)
		return err
	})
	return created, err
}

// GetSitzung reads a full session by api_id.
func (s *SQLiteStorage) GetSitzung(ctx context.Context, apiID string) (*types.Sitzung, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM sitzung WHERE api_id = ?`, apiID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sitzung %s: %w", apiID, err)
	}
	return s.loadSitzung(ctx, s.db, id)
}

// DeleteSitzung removes a session; agenda items, associations and provenance
// cascade.
func (s *SQLiteStorage) DeleteSitzung(ctx context.Context, apiID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sitzung WHERE api_id = ?`, apiID)
		if err != nil {
			return fmt.Errorf("failed to delete sitzung: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

// ReplaceKalender atomically replaces every session of (parlament, day) with
// the given set. The day is taken as a UTC calendar day.
func (s *SQLiteStorage) ReplaceKalender(ctx context.Context, p types.Parlament, day time.Time, sessions []types.Sitzung, by storage.Collector) error {
	for i := range sessions {
		if err := sessions[i].Validate(); err != nil {
			return &storage.ValidationError{Err: err}
		}
	}
	from, to := dayBounds(day)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM sitzung WHERE id IN (
				SELECT sz.id FROM sitzung sz
				JOIN gremium g ON g.id = sz.gr_id
				JOIN parlament pl ON pl.id = g.parl
				WHERE pl.value = ? AND sz.termin >= ? AND sz.termin < ?)`,
			string(p), from, to)
		if err != nil {
			return fmt.Errorf("failed to clear kalender: %w", err)
		}
		for i := range sessions {
			if _, err := s.insertSitzung(ctx, tx, &sessions[i], by); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetKalender returns every session of (parlament, day), ordered by termin.
func (s *SQLiteStorage) GetKalender(ctx context.Context, p types.Parlament, day time.Time) ([]*types.Sitzung, error) {
	from, to := dayBounds(day)
	rows, err := s.db.QueryContext(ctx, `
		SELECT sz.id FROM sitzung sz
		JOIN gremium g ON g.id = sz.gr_id
		JOIN parlament pl ON pl.id = g.parl
		WHERE pl.value = ? AND sz.termin >= ? AND sz.termin < ?
		ORDER BY sz.termin, sz.id`,
		string(p), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query kalender: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan kalender entry: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*types.Sitzung, 0, len(ids))
	for _, id := range ids {
		sz, err := s.loadSitzung(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sz)
	}
	return out, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}

// loadSitzung reads a full session by surrogate id, including the derived
// vorgang references of each agenda item.
func (s *SQLiteStorage) loadSitzung(ctx context.Context, q queryer, id int64) (*types.Sitzung, error) {
	var sz types.Sitzung
	var titel, link sql.NullString
	var grID int64
	err := q.QueryRowContext(ctx, `
		SELECT api_id, titel, termin, gr_id, nummer, public, link
		FROM sitzung WHERE id = ?`, id).Scan(
		&sz.APIID, &titel, &sz.Termin, &grID, &sz.Nummer, &sz.Public, &link)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sitzung %d: %w", id, err)
	}
	if titel.Valid {
		sz.Titel = &titel.String
	}
	if link.Valid {
		sz.Link = &link.String
	}
	g, err := s.loadGremium(ctx, q, grID)
	if err != nil {
		return nil, err
	}
	sz.Gremium = *g

	if sz.Dokumente, err = s.loadDokRefs(ctx, q, `
		SELECT dok_id FROM rel_sitzung_dokument WHERE sid = ? ORDER BY dok_id`, id); err != nil {
		return nil, err
	}

	arows, err := q.QueryContext(ctx, `
		SELECT a.person, a.organisation, a.fachgebiet, a.lobbyregister
		FROM rel_sitzung_experten r JOIN autor a ON a.id = r.autor_id
		WHERE r.sid = ? ORDER BY a.organisation, a.person`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load sitzung experten: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		a, err := scanAutor(arows)
		if err != nil {
			return nil, err
		}
		sz.Experten = append(sz.Experten, a)
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}

	trows, err := q.QueryContext(ctx, `
		SELECT id, nummer, titel FROM top WHERE sid = ? ORDER BY nummer`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tops: %w", err)
	}
	defer trows.Close()
	type topRow struct {
		id  int64
		top types.Top
	}
	var tops []topRow
	for trows.Next() {
		var r topRow
		if err := trows.Scan(&r.id, &r.top.Nummer, &r.top.Titel); err != nil {
			return nil, fmt.Errorf("failed to scan top: %w", err)
		}
		tops = append(tops, r)
	}
	if err := trows.Err(); err != nil {
		return nil, err
	}

	for _, r := range tops {
		if r.top.Dokumente, err = s.loadDokRefs(ctx, q, `
			SELECT dok_id FROM tops_doks WHERE top_id = ? ORDER BY dok_id`, r.id); err != nil {
			return nil, err
		}
		if r.top.VorgangIDs, err = s.topVorgangIDs(ctx, q, r.id); err != nil {
			return nil, err
		}
		sz.Tops = append(sz.Tops, r.top)
	}
	return &sz, nil
}

// topVorgangIDs derives which vorgaenge an agenda item concerns: those whose
// stations reference any document attached to the item.
func (s *SQLiteStorage) topVorgangIDs(ctx context.Context, q queryer, topID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT vg.api_id
		FROM tops_doks td
		JOIN (
			SELECT stat_id, dok_id FROM rel_station_dokument
			UNION SELECT stat_id, dok_id FROM rel_station_stln
		) rs ON rs.dok_id = td.dok_id
		JOIN station st ON st.id = rs.stat_id
		JOIN vorgang vg ON vg.id = st.vg_id
		WHERE td.top_id = ?
		ORDER BY vg.api_id`, topID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive top vorgaenge: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var apiID string
		if err := rows.Scan(&apiID); err != nil {
			return nil, fmt.Errorf("failed to scan top vorgang: %w", err)
		}
		out = append(out, apiID)
	}
	return out, rows.Err()
}
