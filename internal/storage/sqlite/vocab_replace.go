package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// replacePair is one (new id, old id) rewrite of a vocabulary reference.
type replacePair struct {
	newID int64
	oldID int64
}

// replaceReferences rewrites every reference to the old ids so it points at
// the corresponding new id, across all referring tables. Tables whose
// reference column takes part in a composite unique key get the
// conflict-resolution pass first, so the bulk UPDATE cannot trip the
// uniqueness constraint.
func replaceReferences(ctx context.Context, tx *sql.Tx, refs []refTable, pairs []replacePair) error {
	if len(pairs) == 0 {
		return nil
	}
	for _, ref := range refs {
		if ref.identCols != nil {
			if err := resolveConflicts(ctx, tx, ref, pairs); err != nil {
				return err
			}
		}
		for _, p := range pairs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE `+ref.table+` SET `+ref.col+` = ? WHERE `+ref.col+` = ?`,
				p.newID, p.oldID); err != nil {
				return fmt.Errorf("failed to rewrite %s.%s: %w", ref.table, ref.col, err)
			}
		}
	}
	return nil
}

// resolveConflicts prunes the minimum set of rows so that rewriting ref.col
// per pairs leaves (identCols, col) unique, repointing child references at
// the surviving row first.
//
// Rows whose col appears in the pair list (as old or new) are classified by
// (identCols, target), where target is what col will be after the rewrite.
// A class holds at most one row per distinct original col value (the
// pre-existing unique key guarantees that), so any class with more than one
// row mixes origins and is in conflict. Within a conflicting class exactly
// one row survives: lowest original col value, then lowest rowid.
func resolveConflicts(ctx context.Context, tx *sql.Tx, ref refTable, pairs []replacePair) error {
	valuesSQL := strings.TrimSuffix(strings.Repeat("(?, ?),", len(pairs)), ",")
	args := make([]any, 0, len(pairs)*2)
	for _, p := range pairs {
		args = append(args, p.newID, p.oldID)
	}

	identSel := ""
	partition := "target"
	for i, c := range ref.identCols {
		identSel += fmt.Sprintf("t.%s AS k%d, ", c, i)
		partition = fmt.Sprintf("k%d, ", i) + partition
	}

	query := fmt.Sprintf(`
		WITH pairs (new_id, old_id) AS (VALUES %s),
		affected AS (
			SELECT t.rowid AS rid,
			       %sCOALESCE(p.new_id, t.%s) AS target,
			       t.%s AS orig
			FROM %s t
			LEFT JOIN pairs p ON p.old_id = t.%s
			WHERE t.%s IN (SELECT old_id FROM pairs UNION SELECT new_id FROM pairs)
		),
		ranked AS (
			SELECT rid,
			       ROW_NUMBER() OVER w AS rn,
			       FIRST_VALUE(rid) OVER w AS keep
			FROM affected
			WINDOW w AS (PARTITION BY %s ORDER BY orig ASC, rid ASC)
		)
		SELECT rid, keep FROM ranked WHERE rn > 1`,
		valuesSQL, identSel, ref.col, ref.col, ref.table, ref.col, ref.col, partition)

	type pruned struct{ rid, keep int64 }
	var prunes []pruned
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("conflict resolution on %s failed: %w", ref.table, err)
	}
	for rows.Next() {
		var p pruned
		if err := rows.Scan(&p.rid, &p.keep); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan conflict row: %w", err)
		}
		prunes = append(prunes, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("conflict resolution on %s failed: %w", ref.table, err)
	}

	for _, p := range prunes {
		for _, child := range ref.childRefs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE `+child.table+` SET `+child.col+` = ? WHERE `+child.col+` = ?`,
				p.keep, p.rid); err != nil {
				return fmt.Errorf("failed to repoint %s.%s: %w", child.table, child.col, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+ref.table+` WHERE rowid = ?`, p.rid); err != nil {
			return fmt.Errorf("failed to prune duplicate %s row: %w", ref.table, err)
		}
	}
	return nil
}
