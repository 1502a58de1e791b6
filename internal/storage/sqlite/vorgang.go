package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parlatrack/parlatrack/internal/canon"
	"github.com/parlatrack/parlatrack/internal/guard"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// insertVorgang inserts a new vorgang with all its associations and stations
// and returns the surrogate id.
func (s *SQLiteStorage) insertVorgang(ctx context.Context, tx *sql.Tx, v *types.Vorgang, by storage.Collector) (int64, error) {
	if v.APIID == "" {
		v.APIID = uuid.NewString()
	}
	typID, err := s.enumValueID(ctx, tx, "vorgangstyp", guard.TS(v.Typ, v.APIID, "vorgang", s.sink))
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO vorgang (api_id, titel, kurztitel, wahlperiode, verfassungsaendernd, typ)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.APIID, v.Titel, v.Kurztitel, v.Wahlperiode, v.Verfassungsaendernd, typID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vorgang: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted vorgang id: %w", err)
	}

	if err := s.insertVorgangRels(ctx, tx, id, v); err != nil {
		return 0, err
	}
	if err := s.replaceLobbyregister(ctx, tx, id, v.Lobbyregister); err != nil {
		return 0, err
	}
	for i := range v.Stationen {
		if _, err := s.insertStation(ctx, tx, id, &v.Stationen[i], by); err != nil {
			return 0, err
		}
	}
	if err := s.touchVorgang(ctx, tx, id, by); err != nil {
		return 0, err
	}
	return id, nil
}

// insertVorgangRels unions the vorgang's link, identifier and initiator sets
// into the stored associations.
func (s *SQLiteStorage) insertVorgangRels(ctx context.Context, tx *sql.Tx, id int64, v *types.Vorgang) error {
	for _, link := range v.Links {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_vorgang_links (vg_id, link) VALUES (?, ?)
			 ON CONFLICT (vg_id, link) DO NOTHING`, id, link); err != nil {
			return fmt.Errorf("failed to link vorgang link: %w", err)
		}
	}
	for _, ident := range v.IDs {
		typID, err := s.enumValueID(ctx, tx, "vg_ident_typ", guard.TS(ident.Typ, v.APIID, "vorgang-ident", s.sink))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_vorgang_ident (vg_id, typ, identifikator) VALUES (?, ?, ?)
			 ON CONFLICT (vg_id, typ, identifikator) DO NOTHING`, id, typID, ident.ID); err != nil {
			return fmt.Errorf("failed to link vorgang identifier: %w", err)
		}
	}
	for _, a := range v.Initiatoren {
		autorID, err := s.autorID(ctx, tx, a)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rel_vorgang_init (vg_id, autor_id) VALUES (?, ?)
			 ON CONFLICT (vg_id, autor_id) DO NOTHING`, id, autorID); err != nil {
			return fmt.Errorf("failed to link vorgang initiator: %w", err)
		}
	}
	return nil
}

// replaceLobbyregister replaces the whole lobby-register set of a vorgang.
// Entries are never merged individually.
func (s *SQLiteStorage) replaceLobbyregister(ctx context.Context, tx *sql.Tx, vgID int64, entries []types.Lobbyeintrag) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM lobbyregistereintrag WHERE vg_id = ?`, vgID); err != nil {
		return fmt.Errorf("failed to clear lobbyregister: %w", err)
	}
	for _, e := range entries {
		autorID, err := s.autorID(ctx, tx, e.Organisation)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO lobbyregistereintrag (vg_id, autor_id, intention, interne_id, link)
			 VALUES (?, ?, ?, ?, ?)`,
			vgID, autorID, e.Intention, e.InterneID, e.Link)
		if err != nil {
			return fmt.Errorf("failed to insert lobbyregistereintrag: %w", err)
		}
		entryID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inserted lobbyregistereintrag id: %w", err)
		}
		for _, nr := range e.BetroffeneDrucksachen {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rel_lobbyreg_drucksnr (lobbyreg_id, drucksnr) VALUES (?, ?)
				 ON CONFLICT (lobbyreg_id, drucksnr) DO NOTHING`, entryID, nr); err != nil {
				return fmt.Errorf("failed to link lobbyregister drucksnr: %w", err)
			}
		}
	}
	return nil
}

// mergeVorgang folds v into the stored vorgang id: mandatory fields
// overwrite, optional fields keep the stored value when v carries none,
// collections union, the lobby-register set is replaced wholesale, and each
// payload station descends into its own candidate resolution.
func (s *SQLiteStorage) mergeVorgang(ctx context.Context, tx *sql.Tx, id int64, v *types.Vorgang, by storage.Collector) error {
	var apiID string
	if err := tx.QueryRowContext(ctx,
		`SELECT api_id FROM vorgang WHERE id = ?`, id).Scan(&apiID); err != nil {
		return fmt.Errorf("failed to load merged vorgang: %w", err)
	}
	typID, err := s.enumValueID(ctx, tx, "vorgangstyp", guard.TS(v.Typ, apiID, "vorgang", s.sink))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE vorgang SET
			titel = ?, wahlperiode = ?, verfassungsaendernd = ?, typ = ?,
			kurztitel = COALESCE(?, kurztitel)
		WHERE id = ?`,
		v.Titel, v.Wahlperiode, v.Verfassungsaendernd, typID, v.Kurztitel, id)
	if err != nil {
		return fmt.Errorf("failed to merge vorgang: %w", err)
	}

	if err := s.insertVorgangRels(ctx, tx, id, v); err != nil {
		return err
	}
	if len(v.Lobbyregister) > 0 {
		if err := s.replaceLobbyregister(ctx, tx, id, v.Lobbyregister); err != nil {
			return err
		}
	}
	for i := range v.Stationen {
		if err := s.upsertStation(ctx, tx, id, &v.Stationen[i], by); err != nil {
			return err
		}
	}
	return s.touchVorgang(ctx, tx, id, by)
}

// ApplyVorgang is the collector push path: resolve candidates across the
// store, then insert or merge. Returns the api_id of the resulting row.
func (s *SQLiteStorage) ApplyVorgang(ctx context.Context, v *types.Vorgang, by storage.Collector) (string, error) {
	if err := v.Validate(); err != nil {
		return "", &storage.ValidationError{Err: err}
	}

	var outID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		match, err := s.matchVorgang(ctx, tx, v)
		if err != nil {
			return err
		}
		switch len(match.ids) {
		case 0:
			if _, err := s.insertVorgang(ctx, tx, v, by); err != nil {
				return err
			}
			outID = v.APIID
			return nil
		case 1:
			outID = match.apiIDs[0]
			return s.mergeVorgang(ctx, tx, match.ids[0], v, by)
		default:
			return s.ambiguous("vorgang", match.apiIDs)
		}
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("vorgang applied", zap.String("api_id", outID))
	return outID, nil
}

// PutVorgang is PUT-by-id: insert when the api_id is absent, replace when the
// stored object differs canonically, ErrNotModified when equal.
func (s *SQLiteStorage) PutVorgang(ctx context.Context, v *types.Vorgang, by storage.Collector) (bool, error) {
	if err := v.Validate(); err != nil {
		return false, &storage.ValidationError{Err: err}
	}

	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM vorgang WHERE api_id = ?`, v.APIID).Scan(&id)
		if err == sql.ErrNoRows {
			created = true
			_, err := s.insertVorgang(ctx, tx, v, by)
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to look up vorgang %s: %w", v.APIID, err)
		}

		stored, err := s.loadVorgang(ctx, tx, id)
		if err != nil {
			return err
		}
		if canon.EqualVorgang(stored, v) {
			return storage.ErrNotModified
		}

		if err := s.deleteVorgangRows(ctx, tx, id); err != nil {
			return err
		}
		_, err = s.insertVorgang(ctx, tx, v, by)
		return err
	})
	return created, err
}

// GetVorgang reads a full vorgang by api_id.
func (s *SQLiteStorage) GetVorgang(ctx context.Context, apiID string) (*types.Vorgang, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM vorgang WHERE api_id = ?`, apiID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up vorgang %s: %w", apiID, err)
	}
	return s.loadVorgang(ctx, s.db, id)
}

// DeleteVorgang removes a vorgang and everything hanging off it. Shared
// documents survive; only the associations go.
func (s *SQLiteStorage) DeleteVorgang(ctx context.Context, apiID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM vorgang WHERE api_id = ?`, apiID).Scan(&id)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up vorgang %s: %w", apiID, err)
		}
		return s.deleteVorgangRows(ctx, tx, id)
	})
}

// deleteVorgangRows deletes the vorgang row; stations, associations,
// lobby-register entries and provenance cascade.
func (s *SQLiteStorage) deleteVorgangRows(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM vorgang WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete vorgang: %w", err)
	}
	return nil
}

// loadVorgang reads a full vorgang by surrogate id.
func (s *SQLiteStorage) loadVorgang(ctx context.Context, q queryer, id int64) (*types.Vorgang, error) {
	var v types.Vorgang
	var typ string
	var kurztitel sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT vg.api_id, vg.titel, vg.kurztitel, vg.wahlperiode, vg.verfassungsaendernd, t.value
		FROM vorgang vg JOIN vorgangstyp t ON t.id = vg.typ
		WHERE vg.id = ?`, id).Scan(
		&v.APIID, &v.Titel, &kurztitel, &v.Wahlperiode, &v.Verfassungsaendernd, &typ)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vorgang %d: %w", id, err)
	}
	v.Typ = types.Vorgangstyp(typ)
	if kurztitel.Valid {
		v.Kurztitel = &kurztitel.String
	}

	if v.Links, err = loadStringRel(ctx, q, `
		SELECT link FROM rel_vorgang_links WHERE vg_id = ? ORDER BY link`, id); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT ri.identifikator, it.value
		FROM rel_vorgang_ident ri JOIN vg_ident_typ it ON it.id = ri.typ
		WHERE ri.vg_id = ? ORDER BY it.value, ri.identifikator`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load vorgang identifiers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ident types.VgIdent
		var typ string
		if err := rows.Scan(&ident.ID, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan vorgang identifier: %w", err)
		}
		ident.Typ = types.VgIdentTyp(typ)
		v.IDs = append(v.IDs, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := q.QueryContext(ctx, `
		SELECT a.person, a.organisation, a.fachgebiet, a.lobbyregister
		FROM rel_vorgang_init r JOIN autor a ON a.id = r.autor_id
		WHERE r.vg_id = ? ORDER BY a.organisation, a.person`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load vorgang initiatoren: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		a, err := scanAutor(arows)
		if err != nil {
			return nil, err
		}
		v.Initiatoren = append(v.Initiatoren, a)
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}

	if v.Lobbyregister, err = s.loadLobbyregister(ctx, q, id); err != nil {
		return nil, err
	}
	if v.Stationen, err = s.loadStations(ctx, q, id); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLiteStorage) loadLobbyregister(ctx context.Context, q queryer, vgID int64) ([]types.Lobbyeintrag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT l.id, a.person, a.organisation, a.fachgebiet, a.lobbyregister,
		       l.intention, l.interne_id, l.link
		FROM lobbyregistereintrag l JOIN autor a ON a.id = l.autor_id
		WHERE l.vg_id = ? ORDER BY l.interne_id, l.id`, vgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lobbyregister: %w", err)
	}
	defer rows.Close()

	type entry struct {
		id int64
		e  types.Lobbyeintrag
	}
	var loaded []entry
	for rows.Next() {
		var en entry
		var person, fachgebiet string
		var lobby sql.NullString
		if err := rows.Scan(&en.id, &person, &en.e.Organisation.Organisation, &fachgebiet,
			&lobby, &en.e.Intention, &en.e.InterneID, &en.e.Link); err != nil {
			return nil, fmt.Errorf("failed to scan lobbyregistereintrag: %w", err)
		}
		en.e.Organisation.Person = strNull(person)
		en.e.Organisation.Fachgebiet = strNull(fachgebiet)
		if lobby.Valid {
			en.e.Organisation.Lobbyregister = &lobby.String
		}
		loaded = append(loaded, en)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []types.Lobbyeintrag
	for _, en := range loaded {
		if en.e.BetroffeneDrucksachen, err = loadStringRel(ctx, q, `
			SELECT drucksnr FROM rel_lobbyreg_drucksnr WHERE lobbyreg_id = ? ORDER BY drucksnr`, en.id); err != nil {
			return nil, err
		}
		out = append(out, en.e)
	}
	return out, nil
}
