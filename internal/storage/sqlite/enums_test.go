package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

func TestEnumPutReplacesReferences(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	v := testVorgang("b18bde64-c0ff-eeee-ff0c-deadbeefe001")
	v.Stationen[0].Schlagworte = []string{"alpha", "beta"}
	if _, err := s.ApplyVorgang(ctx, v, testCollector); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// Both keywords collapse onto gamma. The station referenced both, so the
	// conflict pass must leave exactly one association.
	err := s.EnumPut(ctx, types.EnumSchlagworte, []string{"gamma"},
		[]storage.Replacing[string]{{ReplacedBy: 0, Values: []string{"alpha", "beta"}}})
	if err != nil {
		t.Fatalf("enum put failed: %v", err)
	}

	got, err := s.GetVorgang(ctx, v.APIID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	sw := got.Stationen[0].Schlagworte
	if len(sw) != 1 || sw[0] != "gamma" {
		t.Fatalf("expected [gamma], got %v", sw)
	}

	values, err := s.EnumList(ctx, types.EnumSchlagworte)
	if err != nil {
		t.Fatalf("enum list failed: %v", err)
	}
	for _, val := range values {
		if val == "alpha" || val == "beta" {
			t.Errorf("replaced value %q still present", val)
		}
	}
}

func TestEnumPutNotModified(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	if err := s.EnumPut(ctx, types.EnumSchlagworte, []string{"klima"}, nil); err != nil {
		t.Fatalf("first put failed: %v", err)
	}
	err := s.EnumPut(ctx, types.EnumSchlagworte, []string{"klima"}, nil)
	if !errors.Is(err, storage.ErrNotModified) {
		t.Fatalf("expected ErrNotModified, got %v", err)
	}

	// Replacing a value that never existed is equally a no-op.
	err = s.EnumPut(ctx, types.EnumSchlagworte, []string{"klima"},
		[]storage.Replacing[string]{{ReplacedBy: 0, Values: []string{"nie-gesehen"}}})
	if !errors.Is(err, storage.ErrNotModified) {
		t.Fatalf("expected ErrNotModified for absent replaced value, got %v", err)
	}
}

func TestEnumPutRejectsCircularReplacement(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	err := s.EnumPut(ctx, types.EnumSchlagworte, []string{"klima"},
		[]storage.Replacing[string]{{ReplacedBy: 0, Values: []string{"klima"}}})
	var vErr *storage.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	err = s.EnumPut(ctx, types.EnumSchlagworte, []string{"klima"},
		[]storage.Replacing[string]{{ReplacedBy: 3, Values: []string{"alt"}}})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for out-of-range index, got %v", err)
	}
}

func TestEnumDeleteStillReferenced(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	v := testVorgang("b18bde64-c0ff-eeee-ff0c-deadbeefe002")
	v.Stationen[0].Schlagworte = []string{"umwelt"}
	if _, err := s.ApplyVorgang(ctx, v, testCollector); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if err := s.EnumDelete(ctx, types.EnumSchlagworte, "umwelt"); !errors.Is(err, storage.ErrStillReferenced) {
		t.Fatalf("expected ErrStillReferenced, got %v", err)
	}

	if err := s.EnumPut(ctx, types.EnumSchlagworte, []string{"verkehr"}, nil); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.EnumDelete(ctx, types.EnumSchlagworte, "verkehr"); err != nil {
		t.Fatalf("delete of unreferenced value failed: %v", err)
	}
	if err := s.EnumDelete(ctx, types.EnumSchlagworte, "verkehr"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnumUnknownName(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	var vErr *storage.ValidationError
	if _, err := s.EnumList(ctx, "farben"); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := s.EnumPut(ctx, "farben", []string{"rot"}, nil); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEnumListSeeded(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	values, err := s.EnumList(ctx, types.EnumParlamente)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(values) != len(types.Parlamente()) {
		t.Fatalf("expected %d seeded parliaments, got %d", len(types.Parlamente()), len(values))
	}
}

func TestGremienReplaceRewritesStations(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	old := types.Gremium{Name: "Ausschuss für Digitales", Parlament: types.ParlamentBT, Wahlperiode: 20}
	v := testVorgang("b18bde64-c0ff-eeee-ff0c-deadbeefe003")
	g := old
	v.Stationen[0].Gremium = &g
	if _, err := s.ApplyVorgang(ctx, v, testCollector); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	fresh := types.Gremium{Name: "Digitalausschuss", Parlament: types.ParlamentBT, Wahlperiode: 20}
	err := s.GremienPut(ctx, []types.Gremium{fresh},
		[]storage.Replacing[types.Gremium]{{ReplacedBy: 0, Values: []types.Gremium{old}}})
	if err != nil {
		t.Fatalf("gremien put failed: %v", err)
	}

	got, err := s.GetVorgang(ctx, v.APIID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Stationen[0].Gremium == nil || got.Stationen[0].Gremium.Name != fresh.Name {
		t.Fatalf("station not rewritten to new gremium: %+v", got.Stationen[0].Gremium)
	}

	list, err := s.GremienList(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, have := range list {
		if have.Name == old.Name {
			t.Errorf("replaced gremium still present")
		}
	}
}

func TestParlamentReplaceMergesGremien(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	// The same committee tuple exists on both sides of the merge; after the
	// replacement only one gremium row may remain and every reference must
	// point at it.
	a := testVorgang("b18bde64-c0ff-eeee-ff0c-deadbeefe005")
	a.IDs = []types.VgIdent{{ID: "20/801", Typ: types.VgIdentTypInitdrucks}}
	a.Stationen[0].Dokumente[0].Dokument.Hash = "merge-gr-a"
	a.Stationen[0].Parlament = types.ParlamentBY
	a.Stationen[0].Gremium = &types.Gremium{Name: "Haushaltsausschuss", Parlament: types.ParlamentBY, Wahlperiode: 20}

	b := testVorgang("b18bde64-c0ff-eeee-ff0c-deadbeefe006")
	b.IDs = []types.VgIdent{{ID: "20/802", Typ: types.VgIdentTypInitdrucks}}
	b.Stationen[0].Dokumente[0].Dokument.Hash = "merge-gr-b"
	b.Stationen[0].Gremium = &types.Gremium{Name: "Haushaltsausschuss", Parlament: types.ParlamentBT, Wahlperiode: 20}

	for _, v := range []*types.Vorgang{a, b} {
		if _, err := s.ApplyVorgang(ctx, v, testCollector); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	}

	sz := &types.Sitzung{
		APIID:   "c0ffee00-2222-4333-8444-5555666677aa",
		Termin:  testStart,
		Gremium: types.Gremium{Name: "Haushaltsausschuss", Parlament: types.ParlamentBY, Wahlperiode: 20},
		Nummer:  3,
		Public:  true,
	}
	if _, err := s.PutSitzung(ctx, sz, testCollector); err != nil {
		t.Fatalf("put sitzung failed: %v", err)
	}

	err := s.EnumPut(ctx, types.EnumParlamente, []string{"BT"},
		[]storage.Replacing[string]{{ReplacedBy: 0, Values: []string{"BY"}}})
	if err != nil {
		t.Fatalf("enum put failed: %v", err)
	}

	for _, apiID := range []string{a.APIID, b.APIID} {
		got, err := s.GetVorgang(ctx, apiID)
		if err != nil {
			t.Fatalf("get %s failed: %v", apiID, err)
		}
		st := got.Stationen[0]
		if st.Parlament != types.ParlamentBT {
			t.Errorf("%s: station parlament = %s, want BT", apiID, st.Parlament)
		}
		if st.Gremium == nil || st.Gremium.Parlament != types.ParlamentBT {
			t.Errorf("%s: station gremium not repointed: %+v", apiID, st.Gremium)
		}
	}

	gotSz, err := s.GetSitzung(ctx, sz.APIID)
	if err != nil {
		t.Fatalf("get sitzung failed: %v", err)
	}
	if gotSz.Gremium.Parlament != types.ParlamentBT {
		t.Errorf("sitzung gremium not repointed: %+v", gotSz.Gremium)
	}

	if n := countRows(t, s, "gremium"); n != 1 {
		t.Errorf("expected the duplicate gremium to be pruned, have %d rows", n)
	}
	values, err := s.EnumList(ctx, types.EnumParlamente)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, val := range values {
		if val == "BY" {
			t.Errorf("replaced parlament still present")
		}
	}
}

func TestAutorenPutAndDelete(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	a := types.Autor{Organisation: "Bundesregierung"}
	v := testVorgang("b18bde64-c0ff-eeee-ff0c-deadbeefe004")
	v.Initiatoren = []types.Autor{a}
	if _, err := s.ApplyVorgang(ctx, v, testCollector); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if err := s.AutorenDelete(ctx, a); !errors.Is(err, storage.ErrStillReferenced) {
		t.Fatalf("expected ErrStillReferenced, got %v", err)
	}

	b := types.Autor{Person: strptr("Max Beispiel"), Organisation: "Bundestag"}
	if err := s.AutorenPut(ctx, []types.Autor{b}, nil); err != nil {
		t.Fatalf("autoren put failed: %v", err)
	}
	if err := s.AutorenPut(ctx, []types.Autor{b}, nil); !errors.Is(err, storage.ErrNotModified) {
		t.Fatalf("expected ErrNotModified, got %v", err)
	}
	if err := s.AutorenDelete(ctx, b); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}
