package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parlatrack/parlatrack/internal/canon"
	"github.com/parlatrack/parlatrack/internal/guard"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// drucksnrTolerance is the window within which two zp_referenz values still
// identify the same printed item.
const drucksnrTolerance = 12 * time.Hour

// insertDokument inserts a new document row with its keyword and author
// associations and returns the surrogate id.
func (s *SQLiteStorage) insertDokument(ctx context.Context, tx *sql.Tx, d *types.Dokument, by storage.Collector) (int64, error) {
	if d.APIID == "" {
		d.APIID = uuid.NewString()
	}
	typID, err := s.enumValueID(ctx, tx, "dokumententyp", guard.TS(d.Typ, d.APIID, "dokument", s.sink))
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO dokument (
			api_id, typ, titel, kurztitel, vorwort, volltext, zusammenfassung,
			link, hash, drucksnr, meinung, zp_referenz, zp_erstellt, zp_modifiziert
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.APIID, typID, d.Titel, d.Kurztitel, d.Vorwort, d.Volltext, d.Zusammenfassung,
		d.Link, d.Hash, d.Drucksnr, d.Meinung,
		canonTS(d.ZPReferenz), canonTSPtr(d.ZPErstellt), canonTS(d.ZPModifiziert))
	if err != nil {
		return 0, fmt.Errorf("failed to insert dokument: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted dokument id: %w", err)
	}

	if err := s.insertDokumentRels(ctx, tx, id, d); err != nil {
		return 0, err
	}
	if err := s.touchDokument(ctx, tx, id, by); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStorage) insertDokumentRels(ctx context.Context, tx *sql.Tx, id int64, d *types.Dokument) error {
	for _, sw := range canon.NormalizeSchlagworte(d.Schlagworte) {
		swID, err := s.enumValueID(ctx, tx, "schlagwort", sw)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_dok_schlagwort (dok_id, sw_id) VALUES (?, ?)
			 ON CONFLICT (dok_id, sw_id) DO NOTHING`, id, swID); err != nil {
			return fmt.Errorf("failed to link dokument schlagwort: %w", err)
		}
	}
	for _, a := range d.Autoren {
		autorID, err := s.autorID(ctx, tx, a)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_dok_autor (dok_id, autor_id) VALUES (?, ?)
			 ON CONFLICT (dok_id, autor_id) DO NOTHING`, id, autorID); err != nil {
			return fmt.Errorf("failed to link dokument autor: %w", err)
		}
	}
	return nil
}

// matchDokument finds stored candidates for d: equal hash, equal api_id, or
// equal (drucksnr, typ) with zp_referenz within the tolerance window.
func (s *SQLiteStorage) matchDokument(ctx context.Context, tx *sql.Tx, d *types.Dokument) (matchResult, error) {
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

	rows, err := tx.QueryContext(ctx,
		`SELECT id, api_id FROM dokument WHERE hash = ? OR api_id = ?`, d.Hash, d.APIID)
	if err != nil {
		return res, fmt.Errorf("failed to match dokument by hash/api_id: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var apiID string
		if err := rows.Scan(&id, &apiID); err != nil {
			return res, fmt.Errorf("failed to scan dokument candidate: %w", err)
		}
		add(id, apiID)
	}
	if err := rows.Err(); err != nil {
		return res, err
	}

	if d.Drucksnr != nil {
		rows, err := tx.QueryContext(ctx, `
			SELECT d.id, d.api_id, d.zp_referenz
			FROM dokument d JOIN dokumententyp t ON t.id = d.typ
			WHERE d.drucksnr = ? AND t.value = ?`,
			*d.Drucksnr, string(d.Typ))
		if err != nil {
			return res, fmt.Errorf("failed to match dokument by drucksnr: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var apiID string
			var ref time.Time
			if err := rows.Scan(&id, &apiID, &ref); err != nil {
				return res, fmt.Errorf("failed to scan dokument candidate: %w", err)
			}
			delta := ref.Sub(d.ZPReferenz)
			if delta < 0 {
				delta = -delta
			}
			if delta <= drucksnrTolerance {
				add(id, apiID)
			}
		}
		if err := rows.Err(); err != nil {
			return res, err
		}
	}

	return res, nil
}

// mergeDokument folds d into the stored row id: mandatory fields overwrite,
// optional fields keep the stored value when d carries none, keyword and
// author sets union.
func (s *SQLiteStorage) mergeDokument(ctx context.Context, tx *sql.Tx, id int64, d *types.Dokument, by storage.Collector) error {
	var apiID string
	if err := tx.QueryRowContext(ctx,
		`SELECT api_id FROM dokument WHERE id = ?`, id).Scan(&apiID); err != nil {
		return fmt.Errorf("failed to load merged dokument: %w", err)
	}
	typID, err := s.enumValueID(ctx, tx, "dokumententyp", guard.TS(d.Typ, apiID, "dokument", s.sink))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE dokument SET
			typ = ?, titel = ?, volltext = ?, link = ?, hash = ?,
			zp_referenz = ?, zp_modifiziert = ?,
			kurztitel = COALESCE(?, kurztitel),
			vorwort = COALESCE(?, vorwort),
			zusammenfassung = COALESCE(?, zusammenfassung),
			drucksnr = COALESCE(?, drucksnr),
			meinung = COALESCE(?, meinung),
			zp_erstellt = COALESCE(?, zp_erstellt)
		WHERE id = ?`,
		typID, d.Titel, d.Volltext, d.Link, d.Hash,
		canonTS(d.ZPReferenz), canonTS(d.ZPModifiziert),
		d.Kurztitel, d.Vorwort, d.Zusammenfassung, d.Drucksnr, d.Meinung,
		canonTSPtr(d.ZPErstellt), id)
	if err != nil {
		return fmt.Errorf("failed to merge dokument: %w", err)
	}

	if err := s.insertDokumentRels(ctx, tx, id, d); err != nil {
		return err
	}
	return s.touchDokument(ctx, tx, id, by)
}

// upsertDokument runs candidate resolution for an embedded document and
// inserts or merges accordingly.
func (s *SQLiteStorage) upsertDokument(ctx context.Context, tx *sql.Tx, d *types.Dokument, by storage.Collector) (int64, error) {
	match, err := s.matchDokument(ctx, tx, d)
	if err != nil {
		return 0, err
	}
	switch len(match.ids) {
	case 0:
		return s.insertDokument(ctx, tx, d, by)
	case 1:
		if err := s.mergeDokument(ctx, tx, match.ids[0], d, by); err != nil {
			return 0, err
		}
		return match.ids[0], nil
	default:
		return 0, s.ambiguous("dokument", match.apiIDs)
	}
}

// resolveDokRef maps one mixed embed/reference element to a stored document
// id. A bare reference must resolve; an embedded document is upserted.
func (s *SQLiteStorage) resolveDokRef(ctx context.Context, tx *sql.Tx, r types.DokRef, by storage.Collector) (int64, error) {
	if r.Dokument != nil {
		return s.upsertDokument(ctx, tx, r.Dokument, by)
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM dokument WHERE api_id = ?`, r.Referenz).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, &storage.IncompleteError{Ref: r.Referenz}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve dokument reference: %w", err)
	}
	return id, nil
}

// loadDokument reads a full document by surrogate id.
func (s *SQLiteStorage) loadDokument(ctx context.Context, q queryer, id int64) (*types.Dokument, error) {
	var d types.Dokument
	var typ string
	var kurztitel, vorwort, zusammenfassung, drucksnr sql.NullString
	var meinung sql.NullInt64
	var erstellt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT d.api_id, t.value, d.titel, d.kurztitel, d.vorwort, d.volltext,
		       d.zusammenfassung, d.link, d.hash, d.drucksnr, d.meinung,
		       d.zp_referenz, d.zp_erstellt, d.zp_modifiziert
		FROM dokument d JOIN dokumententyp t ON t.id = d.typ
		WHERE d.id = ?`, id).Scan(
		&d.APIID, &typ, &d.Titel, &kurztitel, &vorwort, &d.Volltext,
		&zusammenfassung, &d.Link, &d.Hash, &drucksnr, &meinung,
		&d.ZPReferenz, &erstellt, &d.ZPModifiziert)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dokument %d: %w", id, err)
	}
	d.Typ = types.Doktyp(typ)
	if kurztitel.Valid {
		d.Kurztitel = &kurztitel.String
	}
	if vorwort.Valid {
		d.Vorwort = &vorwort.String
	}
	if zusammenfassung.Valid {
		d.Zusammenfassung = &zusammenfassung.String
	}
	if drucksnr.Valid {
		d.Drucksnr = &drucksnr.String
	}
	if meinung.Valid {
		m := int(meinung.Int64)
		d.Meinung = &m
	}
	if erstellt.Valid {
		t := erstellt.Time
		d.ZPErstellt = &t
	}

	rows, err := q.QueryContext(ctx, `
		SELECT sw.value FROM rel_dok_schlagwort r JOIN schlagwort sw ON sw.id = r.sw_id
		WHERE r.dok_id = ? ORDER BY sw.value`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dokument schlagworte: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan schlagwort: %w", err)
		}
		d.Schlagworte = append(d.Schlagworte, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := q.QueryContext(ctx, `
		SELECT a.person, a.organisation, a.fachgebiet, a.lobbyregister
		FROM rel_dok_autor r JOIN autor a ON a.id = r.autor_id
		WHERE r.dok_id = ? ORDER BY a.organisation, a.person`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dokument autoren: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		a, err := scanAutor(arows)
		if err != nil {
			return nil, err
		}
		d.Autoren = append(d.Autoren, a)
	}
	return &d, arows.Err()
}

// queryer abstracts *sql.DB and *sql.Tx for read helpers.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
