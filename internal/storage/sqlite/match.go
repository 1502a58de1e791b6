package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parlatrack/parlatrack/internal/notify"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// matchResult is the outcome of candidate resolution: no match, exactly one
// (ids[0]), or ambiguous.
type matchResult struct {
	ids    []int64
	apiIDs []string
}

// ambiguous records the ambiguity for the notification worker and returns
// the error that aborts the enclosing transaction.
func (s *SQLiteStorage) ambiguous(kind string, apiIDs []string) error {
	s.sink.Notify(notify.Event{
		Kind: notify.KindAmbiguousMatch,
		Body: fmt.Sprintf("ambiguous %s match: %s", kind, strings.Join(apiIDs, ", ")),
	})
	return &storage.AmbiguousError{Kind: kind, APIIDs: apiIDs}
}

// matchVorgang finds stored candidates for v: equal api_id, or same
// (wahlperiode, typ) sharing at least one (typ, value) identifier.
func (s *SQLiteStorage) matchVorgang(ctx context.Context, tx *sql.Tx, v *types.Vorgang) (matchResult, error) {
	var res matchResult
	add := func(id int64, apiID string) {
		for _, seen := range res.ids {
			if seen == id {
				return
			}
		}
		res.ids = append(res.ids, id)
		res.apiIDs = append(res.apiIDs, apiID)
	}

	var id int64
	var apiID string
	err := tx.QueryRowContext(ctx,
		`SELECT id, api_id FROM vorgang WHERE api_id = ?`, v.APIID).Scan(&id, &apiID)
	if err != nil && err != sql.ErrNoRows {
		return res, fmt.Errorf("failed to match vorgang by api_id: %w", err)
	}
	if err == nil {
		add(id, apiID)
	}

	if len(v.IDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("(?, ?),", len(v.IDs)), ",")
		args := []any{v.Wahlperiode, string(v.Typ)}
		for _, ident := range v.IDs {
			args = append(args, string(ident.Typ), ident.ID)
		}
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT vg.id, vg.api_id
			FROM vorgang vg
			JOIN vorgangstyp vt ON vt.id = vg.typ
			JOIN rel_vorgang_ident ri ON ri.vg_id = vg.id
			JOIN vg_ident_typ it ON it.id = ri.typ
			WHERE vg.wahlperiode = ? AND vt.value = ?
			  AND (it.value, ri.identifikator) IN (VALUES `+placeholders+`)`, args...)
		if err != nil {
			return res, fmt.Errorf("failed to match vorgang by identifiers: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			if err := rows.Scan(&id, &apiID); err != nil {
				return res, fmt.Errorf("failed to scan vorgang candidate: %w", err)
			}
			add(id, apiID)
		}
		if err := rows.Err(); err != nil {
			return res, err
		}
	}

	return res, nil
}

// matchStation finds candidates for st among the stations of vorgang vgID:
// equal api_id, or same typ with compatible gremium/parlament and at least
// one embedded document hash shared with the stored station's documents.
func (s *SQLiteStorage) matchStation(ctx context.Context, tx *sql.Tx, vgID int64, st *types.Station) (matchResult, error) {
	var res matchResult
	add := func(id int64, apiID string) {
		for _, seen := range res.ids {
			if seen == id {
				return
			}
		}
		res.ids = append(res.ids, id)
		res.apiIDs = append(res.apiIDs, apiID)
	}

	var id int64
	var apiID string
	err := tx.QueryRowContext(ctx,
		`SELECT id, api_id FROM station WHERE api_id = ? AND vg_id = ?`,
		st.APIID, vgID).Scan(&id, &apiID)
	if err != nil && err != sql.ErrNoRows {
		return res, fmt.Errorf("failed to match station by api_id: %w", err)
	}
	if err == nil {
		add(id, apiID)
	}

	var hashes []string
	for _, r := range st.Dokumente {
		if r.Dokument != nil {
			hashes = append(hashes, r.Dokument.Hash)
		}
	}
	for _, r := range st.Stellungnahmen {
		if r.Dokument != nil {
			hashes = append(hashes, r.Dokument.Hash)
		}
	}
	if len(hashes) == 0 {
		return res, nil // nothing to anchor a content match on
	}

	hashIn := strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",")
	query := `
		SELECT DISTINCT st.id, st.api_id
		FROM station st
		JOIN stationstyp t ON t.id = st.typ
		JOIN parlament p ON p.id = st.parl
		WHERE st.vg_id = ? AND t.value = ?`
	args := []any{vgID, string(st.Typ)}

	if st.Parlament != "" {
		query += ` AND p.value = ?`
		args = append(args, string(st.Parlament))
	}
	if st.Gremium != nil {
		query += ` AND st.gr_id IN (
			SELECT g.id FROM gremium g JOIN parlament gp ON gp.id = g.parl
			WHERE g.name = ? AND gp.value = ? AND g.wp = ?)`
		args = append(args, st.Gremium.Name, string(st.Gremium.Parlament), st.Gremium.Wahlperiode)
	}

	query += ` AND EXISTS (
		SELECT 1 FROM (
			SELECT dok_id, stat_id FROM rel_station_dokument
			UNION SELECT dok_id, stat_id FROM rel_station_stln
		) rd
		JOIN dokument d ON d.id = rd.dok_id
		WHERE rd.stat_id = st.id AND d.hash IN (` + hashIn + `))`
	for _, h := range hashes {
		args = append(args, h)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return res, fmt.Errorf("failed to match station by content: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := rows.Scan(&id, &apiID); err != nil {
			return res, fmt.Errorf("failed to scan station candidate: %w", err)
		}
		add(id, apiID)
	}
	return res, rows.Err()
}
