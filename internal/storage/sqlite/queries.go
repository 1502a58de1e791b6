package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/parlatrack/parlatrack/internal/types"
)

// ListVorgaenge returns one page of vorgaenge matching f plus the total
// count of matches before paging.
func (s *SQLiteStorage) ListVorgaenge(ctx context.Context, f types.VorgangFilter) ([]*types.Vorgang, int, error) {
	var conds []string
	var args []any

	if f.Wahlperiode != nil {
		conds = append(conds, "vg.wahlperiode = ?")
		args = append(args, *f.Wahlperiode)
	}
	if f.Typ != nil {
		conds = append(conds, "vt.value = ?")
		args = append(args, string(*f.Typ))
	}
	if f.Parlament != nil {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM station st JOIN parlament p ON p.id = st.parl
			WHERE st.vg_id = vg.id AND p.value = ?)`)
		args = append(args, string(*f.Parlament))
	}
	if f.InitiatorPerson != nil || f.InitiatorOrg != nil || f.InitiatorFachgebiet != nil {
		sub := `EXISTS (
			SELECT 1 FROM rel_vorgang_init ri JOIN autor a ON a.id = ri.autor_id
			WHERE ri.vg_id = vg.id`
		if f.InitiatorPerson != nil {
			sub += " AND a.person = ?"
			args = append(args, *f.InitiatorPerson)
		}
		if f.InitiatorOrg != nil {
			sub += " AND a.organisation = ?"
			args = append(args, *f.InitiatorOrg)
		}
		if f.InitiatorFachgebiet != nil {
			sub += " AND a.fachgebiet = ?"
			args = append(args, *f.InitiatorFachgebiet)
		}
		conds = append(conds, sub+")")
	}
	if f.Since != nil {
		conds = append(conds, "(SELECT MAX(zp_start) FROM station WHERE vg_id = vg.id) >= ?")
		args = append(args, canonTS(*f.Since))
	}
	if f.Until != nil {
		conds = append(conds, "(SELECT MAX(zp_start) FROM station WHERE vg_id = vg.id) <= ?")
		args = append(args, canonTS(*f.Until))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	base := ` FROM vorgang vg JOIN vorgangstyp vt ON vt.id = vg.typ` + where

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vorgaenge: %w", err)
	}

	query := "SELECT vg.id" + base + " ORDER BY vg.id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vorgaenge: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, 0, fmt.Errorf("failed to scan vorgang id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	out := make([]*types.Vorgang, 0, len(ids))
	for _, id := range ids {
		v, err := s.loadVorgang(ctx, s.db, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, nil
}

// ListSitzungen returns one page of sessions matching f plus the total count
// of matches before paging.
func (s *SQLiteStorage) ListSitzungen(ctx context.Context, f types.SitzungFilter) ([]*types.Sitzung, int, error) {
	var conds []string
	var args []any

	if f.Parlament != nil {
		conds = append(conds, "pl.value = ?")
		args = append(args, string(*f.Parlament))
	}
	if f.Wahlperiode != nil {
		conds = append(conds, "g.wp = ?")
		args = append(args, *f.Wahlperiode)
	}
	if f.Since != nil {
		conds = append(conds, "sz.termin >= ?")
		args = append(args, canonTS(*f.Since))
	}
	if f.Until != nil {
		conds = append(conds, "sz.termin <= ?")
		args = append(args, canonTS(*f.Until))
	}
	if f.GremiumLike != nil {
		conds = append(conds, "LOWER(g.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(*f.GremiumLike)+"%")
	}
	if f.VorgangAPIID != nil {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM top t
			JOIN tops_doks td ON td.top_id = t.id
			JOIN (
				SELECT stat_id, dok_id FROM rel_station_dokument
				UNION SELECT stat_id, dok_id FROM rel_station_stln
			) rs ON rs.dok_id = td.dok_id
			JOIN station st ON st.id = rs.stat_id
			JOIN vorgang vg ON vg.id = st.vg_id
			WHERE t.sid = sz.id AND vg.api_id = ?)`)
		args = append(args, *f.VorgangAPIID)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	base := ` FROM sitzung sz
		JOIN gremium g ON g.id = sz.gr_id
		JOIN parlament pl ON pl.id = g.parl` + where

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sitzungen: %w", err)
	}

	query := "SELECT sz.id" + base + " ORDER BY sz.termin, sz.id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sitzungen: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, 0, fmt.Errorf("failed to scan sitzung id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	out := make([]*types.Sitzung, 0, len(ids))
	for _, id := range ids {
		sz, err := s.loadSitzung(ctx, s.db, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sz)
	}
	return out, total, nil
}
