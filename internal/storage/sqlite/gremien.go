package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/parlatrack/parlatrack/internal/notify"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// gremiumRefs lists every table referencing gremium(id). Neither column is
// part of a composite unique key, so gremium replacement needs no conflict
// pass of its own; the parlament replacement reuses the list to repoint
// children of pruned gremium rows.
var gremiumRefs = []refTable{
	{table: "station", col: "gr_id"},
	{table: "sitzung", col: "gr_id"},
}

func sameGremiumKey(a, b types.Gremium) bool {
	return a.Name == b.Name && a.Parlament == b.Parlament && a.Wahlperiode == b.Wahlperiode
}

func findGremiumID(ctx context.Context, tx *sql.Tx, g types.Gremium) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT g.id FROM gremium g JOIN parlament p ON p.id = g.parl
		 WHERE g.name = ? AND p.value = ? AND g.wp = ?`,
		g.Name, string(g.Parlament), g.Wahlperiode).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up gremium: %w", err)
	}
	return id, true, nil
}

// gremiumID resolves g to its surrogate id, inserting it when absent. A
// fresh non-empty link overrides the stored one.
func (s *SQLiteStorage) gremiumID(ctx context.Context, tx *sql.Tx, g types.Gremium) (int64, error) {
	id, ok, err := findGremiumID(ctx, tx, g)
	if err != nil {
		return 0, err
	}
	if ok {
		if g.Link != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE gremium SET link = ? WHERE id = ?`, *g.Link, id); err != nil {
				return 0, fmt.Errorf("failed to update gremium link: %w", err)
			}
		}
		return id, nil
	}

	parlID, err := s.enumValueID(ctx, tx, "parlament", string(g.Parlament))
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO gremium (name, parl, wp, link) VALUES (?, ?, ?, ?)`,
		g.Name, parlID, g.Wahlperiode, g.Link)
	if err != nil {
		return 0, fmt.Errorf("failed to insert gremium: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted gremium id: %w", err)
	}
	return id, nil
}

// GremienList returns all committees, ordered by parliament, period, name.
func (s *SQLiteStorage) GremienList(ctx context.Context) ([]types.Gremium, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.name, p.value, g.wp, g.link
		 FROM gremium g JOIN parlament p ON p.id = g.parl
		 ORDER BY p.value, g.wp, g.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gremien: %w", err)
	}
	defer rows.Close()

	var out []types.Gremium
	for rows.Next() {
		var g types.Gremium
		var parl string
		var link sql.NullString
		if err := rows.Scan(&g.Name, &parl, &g.Wahlperiode, &link); err != nil {
			return nil, fmt.Errorf("failed to scan gremium: %w", err)
		}
		g.Parlament = types.Parlament(parl)
		if link.Valid {
			g.Link = &link.String
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GremienDelete removes one committee identified by its tuple. Referenced
// committees cannot be deleted.
func (s *SQLiteStorage) GremienDelete(ctx context.Context, g types.Gremium) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, ok, err := findGremiumID(ctx, tx, g)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		for _, ref := range gremiumRefs {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM `+ref.table+` WHERE `+ref.col+` = ?`, id).Scan(&n); err != nil {
				return fmt.Errorf("failed to count gremium references in %s: %w", ref.table, err)
			}
			if n > 0 {
				return storage.ErrStillReferenced
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM gremium WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete gremium: %w", err)
		}
		return nil
	})
}

// GremienPut implements the replacement protocol for the committee
// vocabulary.
func (s *SQLiteStorage) GremienPut(ctx context.Context, objects []types.Gremium, replacing []storage.Replacing[types.Gremium]) error {
	if err := validateReplacing(objects, replacing, sameGremiumKey); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		modified, err := replacementNeeded(objects, replacing, func(g types.Gremium) (bool, error) {
			_, ok, err := findGremiumID(ctx, tx, g)
			return ok, err
		})
		if err != nil {
			return err
		}
		if !modified {
			return storage.ErrNotModified
		}

		ids := make([]int64, len(objects))
		for i, g := range objects {
			_, existed, err := findGremiumID(ctx, tx, g)
			if err != nil {
				return err
			}
			id, err := s.gremiumID(ctx, tx, g)
			if err != nil {
				return err
			}
			ids[i] = id
			if !existed {
				s.sink.Notify(notify.Event{
					Kind: notify.KindEnumAdded,
					Body: fmt.Sprintf("new gremium %q (%s, wp %d)", g.Name, g.Parlament, g.Wahlperiode),
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
				oldID, ok, err := findGremiumID(ctx, tx, v)
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
		if err := replaceReferences(ctx, tx, gremiumRefs, pairs); err != nil {
			return err
		}
		for _, id := range oldIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM gremium WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete replaced gremium: %w", err)
			}
		}
		return nil
	})
}
