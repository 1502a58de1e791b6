package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/parlatrack/parlatrack/internal/canon"
	"github.com/parlatrack/parlatrack/internal/notify"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// enumTable maps the public vocabulary name to its table.
var enumTables = map[types.EnumName]string{
	types.EnumSchlagworte:     "schlagwort",
	types.EnumStationstypen:   "stationstyp",
	types.EnumParlamente:      "parlament",
	types.EnumVorgangstypen:   "vorgangstyp",
	types.EnumDokumententypen: "dokumententyp",
	types.EnumVgIdTypen:       "vg_ident_typ",
}

// refTable describes one table referencing a vocabulary. identCols names
// the columns that, together with col, form a composite unique key; nil
// means col takes part in no such key and the conflict-resolution pass is
// skipped for this table.
type refTable struct {
	table     string
	col       string
	identCols []string
	// childRefs names tables pointing at this table's rows by id. Before the
	// conflict pass prunes a duplicate row, these references are repointed at
	// the surviving row so no child is orphaned.
	childRefs []refTable
}

// enumRefs lists, per vocabulary table, every referring table/column.
var enumRefs = map[string][]refTable{
	"schlagwort": {
		{table: "rel_station_schlagwort", col: "sw_id", identCols: []string{"stat_id"}},
		{table: "rel_dok_schlagwort", col: "sw_id", identCols: []string{"dok_id"}},
	},
	"parlament": {
		{table: "gremium", col: "parl", identCols: []string{"name", "wp"}, childRefs: gremiumRefs},
		{table: "station", col: "parl"},
	},
	"vorgangstyp": {
		{table: "vorgang", col: "typ"},
	},
	"stationstyp": {
		{table: "station", col: "typ"},
	},
	"dokumententyp": {
		{table: "dokument", col: "typ"},
	},
	"vg_ident_typ": {
		{table: "rel_vorgang_ident", col: "typ", identCols: []string{"vg_id", "identifikator"}},
	},
}

// builtinVocabularies returns the seed values of the guarded vocabularies.
func builtinVocabularies() map[string][]string {
	out := make(map[string][]string)
	for _, p := range types.Parlamente() {
		out["parlament"] = append(out["parlament"], string(p))
	}
	for _, v := range types.Vorgangstypen() {
		out["vorgangstyp"] = append(out["vorgangstyp"], string(v))
	}
	for _, v := range types.Stationstypen() {
		out["stationstyp"] = append(out["stationstyp"], string(v))
	}
	for _, v := range types.Doktypen() {
		out["dokumententyp"] = append(out["dokumententyp"], string(v))
	}
	for _, v := range types.VgIdentTypen() {
		out["vg_ident_typ"] = append(out["vg_ident_typ"], string(v))
	}
	return out
}

// enumValueID resolves value to its surrogate id, inserting it when absent.
// Newly inserted values are reported; a new value whose similarity to an
// existing one reaches the configured threshold is flagged as a likely
// near-duplicate.
func (s *SQLiteStorage) enumValueID(ctx context.Context, tx *sql.Tx, table, value string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM `+table+` WHERE value = ?`, value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up %s value: %w", table, err)
	}

	near, err := s.nearestValue(ctx, tx, table, value)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (value) VALUES (?)`, value)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s value %q: %w", table, value, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted %s id: %w", table, err)
	}

	body := fmt.Sprintf("new %s value %q", table, value)
	if near != "" {
		body += fmt.Sprintf(" (similar to existing %q)", near)
	}
	s.sink.Notify(notify.Event{Kind: notify.KindEnumAdded, Body: body})
	return id, nil
}

// nearestValue returns an existing vocabulary value whose similarity to
// value reaches the threshold, or "".
func (s *SQLiteStorage) nearestValue(ctx context.Context, tx *sql.Tx, table, value string) (string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT value FROM `+table)
	if err != nil {
		return "", fmt.Errorf("failed to scan %s for near-duplicates: %w", table, err)
	}
	defer rows.Close()

	threshold := s.simil()
	best := ""
	bestSim := 0.0
	for rows.Next() {
		var existing string
		if err := rows.Scan(&existing); err != nil {
			return "", fmt.Errorf("failed to scan %s value: %w", table, err)
		}
		if sim := canon.Similarity(existing, value); sim >= threshold && sim > bestSim {
			best, bestSim = existing, sim
		}
	}
	return best, rows.Err()
}

// EnumList returns the sorted values of a vocabulary.
func (s *SQLiteStorage) EnumList(ctx context.Context, name types.EnumName) ([]string, error) {
	table, ok := enumTables[name]
	if !ok {
		return nil, &storage.ValidationError{Err: fmt.Errorf("unknown enumeration %q", name)}
	}
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM `+table+` ORDER BY value`)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s value: %w", table, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// EnumDelete removes a single vocabulary value. Values still referenced by
// any row cannot be deleted.
func (s *SQLiteStorage) EnumDelete(ctx context.Context, name types.EnumName, value string) error {
	table, ok := enumTables[name]
	if !ok {
		return &storage.ValidationError{Err: fmt.Errorf("unknown enumeration %q", name)}
	}
	if name == types.EnumSchlagworte {
		value = canon.NormalizeSchlagwort(value)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE value = ?`, value).Scan(&id)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up %s value: %w", table, err)
		}
		for _, ref := range enumRefs[table] {
			var n int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM `+ref.table+` WHERE `+ref.col+` = ?`, id).Scan(&n)
			if err != nil {
				return fmt.Errorf("failed to count references in %s: %w", ref.table, err)
			}
			if n > 0 {
				return storage.ErrStillReferenced
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s value: %w", table, err)
		}
		return nil
	})
}

// EnumPut implements the enumeration-replacement protocol for controlled
// vocabularies: upsert objects, rewrite references per the replacing
// directives, delete the replaced values.
func (s *SQLiteStorage) EnumPut(ctx context.Context, name types.EnumName, objects []string, replacing []storage.Replacing[string]) error {
	table, ok := enumTables[name]
	if !ok {
		return &storage.ValidationError{Err: fmt.Errorf("unknown enumeration %q", name)}
	}
	if name == types.EnumSchlagworte {
		norm := make([]string, len(objects))
		for i, o := range objects {
			norm[i] = canon.NormalizeSchlagwort(o)
		}
		objects = norm
		for i := range replacing {
			vals := make([]string, len(replacing[i].Values))
			for j, v := range replacing[i].Values {
				vals[j] = canon.NormalizeSchlagwort(v)
			}
			replacing[i].Values = vals
		}
	}
	if err := validateReplacing(objects, replacing, func(a, b string) bool { return a == b }); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists := func(v string) (int64, bool, error) {
			var id int64
			err := tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE value = ?`, v).Scan(&id)
			if err == sql.ErrNoRows {
				return 0, false, nil
			}
			if err != nil {
				return 0, false, fmt.Errorf("failed to look up %s value: %w", table, err)
			}
			return id, true, nil
		}

		modified, err := replacementNeeded(objects, replacing,
			func(v string) (bool, error) { _, ok, err := exists(v); return ok, err })
		if err != nil {
			return err
		}
		if !modified {
			return storage.ErrNotModified
		}

		ids := make([]int64, len(objects))
		for i, o := range objects {
			id, err := s.enumValueID(ctx, tx, table, o)
			if err != nil {
				return err
			}
			ids[i] = id
		}

		if len(replacing) == 0 {
			return nil
		}

		var pairs []replacePair
		var oldIDs []int64
		for _, r := range replacing {
			for _, v := range r.Values {
				oldID, ok, err := exists(v)
				if err != nil {
					return err
				}
				if !ok {
					continue // nothing refers to a value that never existed
				}
				pairs = append(pairs, replacePair{newID: ids[r.ReplacedBy], oldID: oldID})
				oldIDs = append(oldIDs, oldID)
			}
		}
		if len(pairs) == 0 {
			return nil
		}
		if err := replaceReferences(ctx, tx, enumRefs[table], pairs); err != nil {
			return err
		}
		for _, id := range oldIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete replaced %s value: %w", table, err)
			}
		}
		return nil
	})
}

// validateReplacing enforces the protocol's structural rules: indexes in
// range, no value that is both replaced and introduced.
func validateReplacing[T any](objects []T, replacing []storage.Replacing[T], eq func(a, b T) bool) error {
	for _, r := range replacing {
		if r.ReplacedBy < 0 || r.ReplacedBy >= len(objects) {
			return &storage.ValidationError{
				Err: fmt.Errorf("replaced_by index %d out of range (have %d objects)", r.ReplacedBy, len(objects)),
			}
		}
		for _, v := range r.Values {
			for _, o := range objects {
				if eq(v, o) {
					return &storage.ValidationError{
						Err: fmt.Errorf("replacement value equals a new object (circular replacement)"),
					}
				}
			}
		}
	}
	return nil
}

// replacementNeeded implements the NotModified short-circuit: the operation
// is a no-op iff every object already exists and no replaced value exists.
func replacementNeeded[T any](objects []T, replacing []storage.Replacing[T], exists func(T) (bool, error)) (bool, error) {
	for _, o := range objects {
		ok, err := exists(o)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}
	for _, r := range replacing {
		for _, v := range r.Values {
			ok, err := exists(v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// sortedEnumNames returns the vocabulary names, for deterministic seeding.
func sortedEnumNames() []types.EnumName {
	names := make([]types.EnumName, 0, len(enumTables))
	for n := range enumTables {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
