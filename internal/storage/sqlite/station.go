package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/parlatrack/parlatrack/internal/canon"
	"github.com/parlatrack/parlatrack/internal/guard"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// insertStation inserts a new station under vorgang vgID with all its
// associations and returns the surrogate id.
func (s *SQLiteStorage) insertStation(ctx context.Context, tx *sql.Tx, vgID int64, st *types.Station, by storage.Collector) (int64, error) {
	if st.APIID == "" {
		st.APIID = uuid.NewString()
	}
	typID, err := s.enumValueID(ctx, tx, "stationstyp", guard.TS(st.Typ, st.APIID, "station", s.sink))
	if err != nil {
		return 0, err
	}
	parlID, err := s.enumValueID(ctx, tx, "parlament", string(st.Parlament))
	if err != nil {
		return 0, err
	}
	var grID any
	if st.Gremium != nil {
		id, err := s.gremiumID(ctx, tx, *st.Gremium)
		if err != nil {
			return 0, err
		}
		grID = id
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO station (
			api_id, vg_id, typ, titel, zp_start, zp_modifiziert, link,
			gremium_federf, trojanergefahr, parl, gr_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.APIID, vgID, typID, st.Titel, canonTS(st.ZPStart), canonTSPtr(st.ZPModifiziert),
		st.Link, st.GremiumFederf, st.Trojanergefahr, parlID, grID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert station: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted station id: %w", err)
	}

	if err := s.insertStationRels(ctx, tx, id, st, by); err != nil {
		return 0, err
	}
	if err := s.touchStation(ctx, tx, id, by); err != nil {
		return 0, err
	}
	return id, nil
}

// insertStationRels unions the station's keyword, link and document sets into
// the stored associations.
func (s *SQLiteStorage) insertStationRels(ctx context.Context, tx *sql.Tx, id int64, st *types.Station, by storage.Collector) error {
	for _, sw := range canon.NormalizeSchlagworte(st.Schlagworte) {
		swID, err := s.enumValueID(ctx, tx, "schlagwort", sw)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_station_schlagwort (stat_id, sw_id) VALUES (?, ?)
			 ON CONFLICT (stat_id, sw_id) DO NOTHING`, id, swID); err != nil {
			return fmt.Errorf("failed to link station schlagwort: %w", err)
		}
	}
	for _, link := range st.AdditionalLinks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_station_link (stat_id, link) VALUES (?, ?)
			 ON CONFLICT (stat_id, link) DO NOTHING`, id, link); err != nil {
			return fmt.Errorf("failed to link station link: %w", err)
		}
	}
	for _, r := range st.Dokumente {
		dokID, err := s.resolveDokRef(ctx, tx, r, by)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_station_dokument (stat_id, dok_id) VALUES (?, ?)
			 ON CONFLICT (stat_id, dok_id) DO NOTHING`, id, dokID); err != nil {
			return fmt.Errorf("failed to link station dokument: %w", err)
		}
	}
	for _, r := range st.Stellungnahmen {
		dokID, err := s.resolveDokRef(ctx, tx, r, by)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_station_stln (stat_id, dok_id) VALUES (?, ?)
			 ON CONFLICT (stat_id, dok_id) DO NOTHING`, id, dokID); err != nil {
			return fmt.Errorf("failed to link station stellungnahme: %w", err)
		}
	}
	return nil
}

// mergeStation folds st into the stored station id: mandatory fields
// overwrite, optional fields keep the stored value when st carries none,
// collections union.
func (s *SQLiteStorage) mergeStation(ctx context.Context, tx *sql.Tx, id int64, st *types.Station, by storage.Collector) error {
	var apiID string
	if err := tx.QueryRowContext(ctx,
		`SELECT api_id FROM station WHERE id = ?`, id).Scan(&apiID); err != nil {
		return fmt.Errorf("failed to load merged station: %w", err)
	}
	typID, err := s.enumValueID(ctx, tx, "stationstyp", guard.TS(st.Typ, apiID, "station", s.sink))
	if err != nil {
		return err
	}
	parlID, err := s.enumValueID(ctx, tx, "parlament", string(st.Parlament))
	if err != nil {
		return err
	}
	var grID any
	if st.Gremium != nil {
		gid, err := s.gremiumID(ctx, tx, *st.Gremium)
		if err != nil {
			return err
		}
		grID = gid
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE station SET
			typ = ?, zp_start = ?, parl = ?,
			titel = COALESCE(?, titel),
			zp_modifiziert = COALESCE(?, zp_modifiziert),
			link = COALESCE(?, link),
			gremium_federf = COALESCE(?, gremium_federf),
			trojanergefahr = COALESCE(?, trojanergefahr),
			gr_id = COALESCE(?, gr_id)
		WHERE id = ?`,
		typID, canonTS(st.ZPStart), parlID,
		st.Titel, canonTSPtr(st.ZPModifiziert), st.Link,
		st.GremiumFederf, st.Trojanergefahr, grID, id)
	if err != nil {
		return fmt.Errorf("failed to merge station: %w", err)
	}

	if err := s.insertStationRels(ctx, tx, id, st, by); err != nil {
		return err
	}
	return s.touchStation(ctx, tx, id, by)
}

// upsertStation runs candidate resolution for one payload station within its
// vorgang and inserts or merges accordingly.
func (s *SQLiteStorage) upsertStation(ctx context.Context, tx *sql.Tx, vgID int64, st *types.Station, by storage.Collector) error {
	match, err := s.matchStation(ctx, tx, vgID, st)
	if err != nil {
		return err
	}
	switch len(match.ids) {
	case 0:
		_, err := s.insertStation(ctx, tx, vgID, st, by)
		return err
	case 1:
		return s.mergeStation(ctx, tx, match.ids[0], st, by)
	default:
		return s.ambiguous("station", match.apiIDs)
	}
}

// loadStations reads all stations of a vorgang, ordered by start time, with
// their documents fully embedded.
func (s *SQLiteStorage) loadStations(ctx context.Context, q queryer, vgID int64) ([]types.Station, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT st.id, st.api_id, t.value, st.titel, st.zp_start, st.zp_modifiziert,
		       st.link, st.gremium_federf, st.trojanergefahr, p.value, st.gr_id
		FROM station st
		JOIN stationstyp t ON t.id = st.typ
		JOIN parlament p ON p.id = st.parl
		WHERE st.vg_id = ?
		ORDER BY st.zp_start, st.id`, vgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stationen: %w", err)
	}
	defer rows.Close()

	type stRow struct {
		id   int64
		st   types.Station
		grID sql.NullInt64
	}
	var loaded []stRow
	for rows.Next() {
		var r stRow
		var typ, parl string
		var titel, link sql.NullString
		var modifiziert sql.NullTime
		var federf sql.NullBool
		var trojaner sql.NullInt64
		if err := rows.Scan(&r.id, &r.st.APIID, &typ, &titel, &r.st.ZPStart, &modifiziert,
			&link, &federf, &trojaner, &parl, &r.grID); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		r.st.Typ = types.Stationstyp(typ)
		r.st.Parlament = types.Parlament(parl)
		if titel.Valid {
			r.st.Titel = &titel.String
		}
		if link.Valid {
			r.st.Link = &link.String
		}
		if modifiziert.Valid {
			t := modifiziert.Time
			r.st.ZPModifiziert = &t
		}
		if federf.Valid {
			b := federf.Bool
			r.st.GremiumFederf = &b
		}
		if trojaner.Valid {
			n := int(trojaner.Int64)
			r.st.Trojanergefahr = &n
		}
		loaded = append(loaded, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]types.Station, 0, len(loaded))
	for _, r := range loaded {
		if r.grID.Valid {
			g, err := s.loadGremium(ctx, q, r.grID.Int64)
			if err != nil {
				return nil, err
			}
			r.st.Gremium = g
		}
		if r.st.Schlagworte, err = loadStringRel(ctx, q, `
			SELECT sw.value FROM rel_station_schlagwort r JOIN schlagwort sw ON sw.id = r.sw_id
			WHERE r.stat_id = ? ORDER BY sw.value`, r.id); err != nil {
			return nil, err
		}
		if r.st.AdditionalLinks, err = loadStringRel(ctx, q, `
			SELECT link FROM rel_station_link WHERE stat_id = ? ORDER BY link`, r.id); err != nil {
			return nil, err
		}
		if r.st.Dokumente, err = s.loadDokRefs(ctx, q, `
			SELECT dok_id FROM rel_station_dokument WHERE stat_id = ? ORDER BY dok_id`, r.id); err != nil {
			return nil, err
		}
		if r.st.Stellungnahmen, err = s.loadDokRefs(ctx, q, `
			SELECT dok_id FROM rel_station_stln WHERE stat_id = ? ORDER BY dok_id`, r.id); err != nil {
			return nil, err
		}
		out = append(out, r.st)
	}
	return out, nil
}

// loadGremium reads one committee by surrogate id.
func (s *SQLiteStorage) loadGremium(ctx context.Context, q queryer, id int64) (*types.Gremium, error) {
	var g types.Gremium
	var parl string
	var link sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT g.name, p.value, g.wp, g.link
		FROM gremium g JOIN parlament p ON p.id = g.parl
		WHERE g.id = ?`, id).Scan(&g.Name, &parl, &g.Wahlperiode, &link)
	if err != nil {
		return nil, fmt.Errorf("failed to load gremium %d: %w", id, err)
	}
	g.Parlament = types.Parlament(parl)
	if link.Valid {
		g.Link = &link.String
	}
	return &g, nil
}

// loadDokRefs loads the documents behind an association query as fully
// embedded documents.
func (s *SQLiteStorage) loadDokRefs(ctx context.Context, q queryer, query string, args ...any) ([]types.DokRef, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load dokument associations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dokument association: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []types.DokRef
	for _, id := range ids {
		d, err := s.loadDokument(ctx, q, id)
		if err != nil {
			return nil, err
		}
		out = append(out, types.DokRef{Dokument: d})
	}
	return out, nil
}

// loadStringRel collects a single-column string association.
func loadStringRel(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load association: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan association: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
