package canon

import (
	"reflect"
	"testing"
	"time"

	"github.com/parlatrack/parlatrack/internal/types"
)

func strptr(s string) *string { return &s }

func TestNormalizeSchlagworte(t *testing.T) {
	got := NormalizeSchlagworte([]string{"  Umwelt", "umwelt", "UMWELT ", "Verkehr", ""})
	want := []string{"umwelt", "verkehr"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalized = %v, want %v", got, want)
	}

	if NormalizeSchlagworte(nil) != nil {
		t.Fatal("nil input should stay nil")
	}
	if NormalizeSchlagworte([]string{"  ", ""}) != nil {
		t.Fatal("all-blank input should normalize to nil")
	}
}

func baseVorgang() *types.Vorgang {
	start := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return &types.Vorgang{
		APIID:       "0b5200c7-68dd-4b85-9919-9b9d83e16e21",
		Titel:       "Gesetz über die Ante",
		Wahlperiode: 20,
		Typ:         types.VorgangstypGGEinspruch,
		IDs: []types.VgIdent{
			{ID: "20/123", Typ: types.VgIdentTypInitdrucks},
			{ID: "20-777", Typ: types.VgIdentTypVorgnr},
		},
		Links:       []string{"https://example.org/b", "https://example.org/a"},
		Initiatoren: []types.Autor{{Organisation: "Bundesregierung"}},
		Stationen: []types.Station{{
			APIID:       "a3a0d2c9-1111-4222-8333-444455556666",
			Typ:         types.StationstypParlInitiativ,
			ZPStart:     start,
			Parlament:   types.ParlamentBT,
			Schlagworte: []string{"Umwelt", "Verkehr"},
		}},
	}
}

func TestEqualVorgangIgnoresOrderAndSubMillisecond(t *testing.T) {
	a := baseVorgang()
	b := baseVorgang()

	// Reorder order-independent collections.
	b.IDs[0], b.IDs[1] = b.IDs[1], b.IDs[0]
	b.Links[0], b.Links[1] = b.Links[1], b.Links[0]
	b.Stationen[0].Schlagworte = []string{" verkehr", "UMWELT"}

	// Shift the station timestamp below millisecond resolution and into
	// another zone.
	loc := time.FixedZone("CET", 3600)
	b.Stationen[0].ZPStart = a.Stationen[0].ZPStart.In(loc).Add(400 * time.Microsecond)

	if !EqualVorgang(a, b) {
		t.Fatal("reordered collections and sub-ms time shifts should compare equal")
	}
}

func TestEqualVorgangDetectsChanges(t *testing.T) {
	a := baseVorgang()

	b := baseVorgang()
	b.Titel = "Gesetz über die Ante (Neufassung)"
	if EqualVorgang(a, b) {
		t.Fatal("changed titel should compare unequal")
	}

	c := baseVorgang()
	c.Kurztitel = strptr("Antengesetz")
	if EqualVorgang(a, c) {
		t.Fatal("set optional should not equal unset optional")
	}

	d := baseVorgang()
	d.Stationen[0].ZPStart = d.Stationen[0].ZPStart.Add(2 * time.Millisecond)
	if EqualVorgang(a, d) {
		t.Fatal("a whole-millisecond shift is a real change")
	}
}

func TestNormalizeVorgangLeavesInputAlone(t *testing.T) {
	v := baseVorgang()
	firstLink := v.Links[0]
	NormalizeVorgang(v)
	if v.Links[0] != firstLink {
		t.Fatal("normalization must not mutate the input")
	}
}

func baseSitzung() *types.Sitzung {
	termin := time.Date(2025, 5, 6, 14, 0, 0, 0, time.UTC)
	return &types.Sitzung{
		APIID:  "c0ffee00-2222-4333-8444-555566667777",
		Termin: termin,
		Gremium: types.Gremium{
			Name:        "Ausschuss für Inneres",
			Parlament:   types.ParlamentBT,
			Wahlperiode: 20,
		},
		Nummer: 12,
		Public: true,
		Tops: []types.Top{{
			Nummer:    1,
			Titel:     "Beratung",
			Dokumente: []types.DokRef{{Referenz: "d0000000-aaaa-4bbb-8ccc-dddd00000001"}},
		}},
	}
}

func TestEqualSitzungCollapsesEmbeddedDokumente(t *testing.T) {
	a := baseSitzung()

	b := baseSitzung()
	b.Tops[0].Dokumente = []types.DokRef{{Dokument: &types.Dokument{
		APIID:         "d0000000-aaaa-4bbb-8ccc-dddd00000001",
		Typ:           types.DoktypDrucksache,
		Titel:         "Drucksache 20/123",
		Volltext:      "...",
		Link:          "https://example.org/d",
		Hash:          "aaaa0001",
		ZPReferenz:    a.Termin,
		ZPModifiziert: a.Termin,
	}}}

	if !EqualSitzung(a, b) {
		t.Fatal("embedded document should collapse to its api_id reference")
	}
}

func TestEqualSitzungIgnoresDerivedVorgangIDs(t *testing.T) {
	a := baseSitzung()
	b := baseSitzung()
	b.Tops[0].VorgangIDs = []string{"0b5200c7-68dd-4b85-9919-9b9d83e16e21"}
	if !EqualSitzung(a, b) {
		t.Fatal("derived vorgang_id list is not part of identity")
	}
}

func TestSetEqual(t *testing.T) {
	eq := func(x, y int) bool { return x == y }
	if !SetEqual([]int{1, 2, 3}, []int{3, 1, 2, 2}, eq) {
		t.Fatal("order and multiplicity should not matter")
	}
	if SetEqual([]int{1, 2}, []int{1}, eq) {
		t.Fatal("missing element should break set equality")
	}
	if !SetEqual(nil, []int{}, eq) {
		t.Fatal("nil and empty are the same set")
	}
}

func TestUnionStrings(t *testing.T) {
	got := UnionStrings([]string{"b", "a"}, []string{"c", "a"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("union = %v, want %v", got, want)
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("Umwelt", "umwelt"); s != 1 {
		t.Fatalf("case-insensitive equal strings: similarity = %v, want 1", s)
	}
	if s := Similarity("", ""); s != 1 {
		t.Fatalf("two empty strings: similarity = %v, want 1", s)
	}
	if s := Similarity("umwelt", "unwelt"); s < 0.8 {
		t.Fatalf("one-letter typo: similarity = %v, want >= 0.8", s)
	}
	if s := Similarity("umwelt", "xyz"); s > 0.2 {
		t.Fatalf("unrelated strings: similarity = %v, want <= 0.2", s)
	}
	if d := Distance("kitten", "sitting"); d != 3 {
		t.Fatalf("distance = %d, want 3", d)
	}
}
