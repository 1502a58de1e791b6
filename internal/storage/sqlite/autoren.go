package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/parlatrack/parlatrack/internal/notify"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// autorRefs lists every table referencing autor(id).
var autorRefs = []refTable{
	{table: "rel_vorgang_init", col: "autor_id", identCols: []string{"vg_id"}},
	{table: "rel_dok_autor", col: "autor_id", identCols: []string{"dok_id"}},
	{table: "rel_sitzung_experten", col: "autor_id", identCols: []string{"sid"}},
	{table: "lobbyregistereintrag", col: "autor_id"},
}

func sameAutorKey(a, b types.Autor) bool {
	return nullStr(a.Person) == nullStr(b.Person) &&
		a.Organisation == b.Organisation &&
		nullStr(a.Fachgebiet) == nullStr(b.Fachgebiet)
}

// findAutorID resolves the identifying tuple to a surrogate id.
func findAutorID(ctx context.Context, tx *sql.Tx, a types.Autor) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM autor WHERE person = ? AND organisation = ? AND fachgebiet = ?`,
		nullStr(a.Person), a.Organisation, nullStr(a.Fachgebiet)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up autor: %w", err)
	}
	return id, true, nil
}

// autorID resolves a to its surrogate id, inserting it when absent. The
// lobbyregister column is not part of the key; a fresh non-empty value
// overrides the stored one.
func (s *SQLiteStorage) autorID(ctx context.Context, tx *sql.Tx, a types.Autor) (int64, error) {
	id, ok, err := findAutorID(ctx, tx, a)
	if err != nil {
		return 0, err
	}
	if ok {
		if a.Lobbyregister != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE autor SET lobbyregister = ? WHERE id = ?`, *a.Lobbyregister, id); err != nil {
				return 0, fmt.Errorf("failed to update autor lobbyregister: %w", err)
			}
		}
		return id, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO autor (person, organisation, fachgebiet, lobbyregister) VALUES (?, ?, ?, ?)`,
		nullStr(a.Person), a.Organisation, nullStr(a.Fachgebiet), a.Lobbyregister)
	if err != nil {
		return 0, fmt.Errorf("failed to insert autor: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted autor id: %w", err)
	}
	return id, nil
}

func scanAutor(rows *sql.Rows) (types.Autor, error) {
	var a types.Autor
	var person, fachgebiet string
	var lobby sql.NullString
	if err := rows.Scan(&person, &a.Organisation, &fachgebiet, &lobby); err != nil {
		return a, fmt.Errorf("failed to scan autor: %w", err)
	}
	a.Person = strNull(person)
	a.Fachgebiet = strNull(fachgebiet)
	if lobby.Valid {
		a.Lobbyregister = &lobby.String
	}
	return a, nil
}

// AutorenList returns all authors, ordered by organisation then person.
func (s *SQLiteStorage) AutorenList(ctx context.Context) ([]types.Autor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person, organisation, fachgebiet, lobbyregister FROM autor
		 ORDER BY organisation, person, fachgebiet`)
	if err != nil {
		return nil, fmt.Errorf("failed to list autoren: %w", err)
	}
	defer rows.Close()

	var out []types.Autor
	for rows.Next() {
		a, err := scanAutor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AutorenDelete removes one author identified by its tuple. Referenced
// authors cannot be deleted.
func (s *SQLiteStorage) AutorenDelete(ctx context.Context, a types.Autor) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, ok, err := findAutorID(ctx, tx, a)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		for _, ref := range autorRefs {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM `+ref.table+` WHERE `+ref.col+` = ?`, id).Scan(&n); err != nil {
				return fmt.Errorf("failed to count autor references in %s: %w", ref.table, err)
			}
			if n > 0 {
				return storage.ErrStillReferenced
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM autor WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete autor: %w", err)
		}
		return nil
	})
}

// AutorenPut implements the replacement protocol for the author vocabulary.
func (s *SQLiteStorage) AutorenPut(ctx context.Context, objects []types.Autor, replacing []storage.Replacing[types.Autor]) error {
	if err := validateReplacing(objects, replacing, sameAutorKey); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		modified, err := replacementNeeded(objects, replacing, func(a types.Autor) (bool, error) {
			_, ok, err := findAutorID(ctx, tx, a)
			return ok, err
		})
		if err != nil {
			return err
		}
		if !modified {
			return storage.ErrNotModified
		}

		ids := make([]int64, len(objects))
		for i, a := range objects {
			_, existed, err := findAutorID(ctx, tx, a)
			if err != nil {
				return err
			}
			id, err := s.autorID(ctx, tx, a)
			if err != nil {
				return err
			}
			ids[i] = id
			if !existed {
				s.sink.Notify(notify.Event{
					Kind: notify.KindEnumAdded,
					Body: fmt.Sprintf("new autor %q / %q", a.Organisation, nullStr(a.Person)),
				})
			}
		}

		if len(replacing) == 0 {
			return nil
		}

		var pairs []replacePair
		var oldIDs []int64
		for _, r := range replacing {
			for _, v := range r.Values {
				oldID, ok, err := findAutorID(ctx, tx, v)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				pairs = append(pairs, replacePair{newID: ids[r.ReplacedBy], oldID: oldID})
				oldIDs = append(oldIDs, oldID)
			}
		}
		if len(pairs) == 0 {
			return nil
		}
		if err := replaceReferences(ctx, tx, autorRefs, pairs); err != nil {
			return err
		}
		for _, id := range oldIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM autor WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete replaced autor: %w", err)
			}
		}
		return nil
	})
}
