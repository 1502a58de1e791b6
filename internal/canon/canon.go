// Package canon produces canonical forms of domain entities and decides
// structural equality on them. The PUT-by-id path uses it to detect
// unchanged payloads, the merge path uses its normalization and set helpers.
//
// Canonical rules:
//   - timestamps are compared at millisecond resolution, in UTC
//   - order-independent sub-collections are sorted by a stable key
//   - schlagworte are trimmed and lowercased
//   - for Sitzung, embedded documents collapse to their api_id
//   - a set optional field is never equal to an unset one
package canon

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/parlatrack/parlatrack/internal/types"
)

// NormalizeSchlagwort maps a keyword to its canonical form: trimmed,
// lowercased.
func NormalizeSchlagwort(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSchlagworte canonicalizes, dedupes and sorts a keyword list.
func NormalizeSchlagworte(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := NormalizeSchlagwort(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func canonTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func canonTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := canonTime(*t)
	return &c
}

func sortedStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// AutorKey is the stable sort key of an Autor: its identifying tuple.
func AutorKey(a types.Autor) string {
	var person, fach string
	if a.Person != nil {
		person = *a.Person
	}
	if a.Fachgebiet != nil {
		fach = *a.Fachgebiet
	}
	return a.Organisation + "\x00" + person + "\x00" + fach
}

func sortedAutoren(in []types.Autor) []types.Autor {
	if len(in) == 0 {
		return nil
	}
	out := append([]types.Autor(nil), in...)
	sort.Slice(out, func(i, j int) bool { return AutorKey(out[i]) < AutorKey(out[j]) })
	return out
}

func sortedIdents(in []types.VgIdent) []types.VgIdent {
	if len(in) == 0 {
		return nil
	}
	out := append([]types.VgIdent(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Typ != out[j].Typ {
			return out[i].Typ < out[j].Typ
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// dokRefKey sorts references and embedded documents into one order: by
// api_id where available, else by content hash.
func dokRefKey(r types.DokRef) string {
	if id := r.APIID(); id != "" {
		return "i\x00" + id
	}
	if r.Dokument != nil {
		return "h\x00" + r.Dokument.Hash
	}
	return ""
}

func normalizeDokument(d *types.Dokument) *types.Dokument {
	out := *d
	out.ZPReferenz = canonTime(d.ZPReferenz)
	out.ZPModifiziert = canonTime(d.ZPModifiziert)
	out.ZPErstellt = canonTimePtr(d.ZPErstellt)
	out.Schlagworte = NormalizeSchlagworte(d.Schlagworte)
	out.Autoren = sortedAutoren(d.Autoren)
	return &out
}

func normalizeDokRefs(in []types.DokRef, collapse bool) []types.DokRef {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.DokRef, 0, len(in))
	for _, r := range in {
		if r.Dokument != nil {
			if collapse && r.Dokument.APIID != "" {
				out = append(out, types.DokRef{Referenz: r.Dokument.APIID})
				continue
			}
			out = append(out, types.DokRef{Dokument: normalizeDokument(r.Dokument)})
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return dokRefKey(out[i]) < dokRefKey(out[j]) })
	return out
}

func normalizeStation(s *types.Station, collapse bool) types.Station {
	out := *s
	out.ZPStart = canonTime(s.ZPStart)
	out.ZPModifiziert = canonTimePtr(s.ZPModifiziert)
	out.Schlagworte = NormalizeSchlagworte(s.Schlagworte)
	out.AdditionalLinks = sortedStrings(s.AdditionalLinks)
	out.Dokumente = normalizeDokRefs(s.Dokumente, collapse)
	out.Stellungnahmen = normalizeDokRefs(s.Stellungnahmen, collapse)
	return out
}

func sortedLobby(in []types.Lobbyeintrag) []types.Lobbyeintrag {
	if len(in) == 0 {
		return nil
	}
	out := append([]types.Lobbyeintrag(nil), in...)
	for i := range out {
		out[i].BetroffeneDrucksachen = sortedStrings(out[i].BetroffeneDrucksachen)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InterneID != out[j].InterneID {
			return out[i].InterneID < out[j].InterneID
		}
		return AutorKey(out[i].Organisation) < AutorKey(out[j].Organisation)
	})
	return out
}

// NormalizeVorgang returns a deep canonical copy of v. The input is not
// modified.
func NormalizeVorgang(v *types.Vorgang) *types.Vorgang {
	out := *v
	out.IDs = sortedIdents(v.IDs)
	out.Links = sortedStrings(v.Links)
	out.Initiatoren = sortedAutoren(v.Initiatoren)
	out.Lobbyregister = sortedLobby(v.Lobbyregister)
	if len(v.Stationen) > 0 {
		st := make([]types.Station, len(v.Stationen))
		for i := range v.Stationen {
			st[i] = normalizeStation(&v.Stationen[i], false)
		}
		sort.Slice(st, func(i, j int) bool { return st[i].APIID < st[j].APIID })
		out.Stationen = st
	} else {
		out.Stationen = nil
	}
	return &out
}

// NormalizeSitzung returns a deep canonical copy of s. Embedded documents
// collapse to api_id references: two sessions are equal iff their document
// api_ids are, regardless of how much of the body was inlined.
func NormalizeSitzung(s *types.Sitzung) *types.Sitzung {
	out := *s
	out.Termin = canonTime(s.Termin)
	out.Dokumente = normalizeDokRefs(s.Dokumente, true)
	out.Experten = sortedAutoren(s.Experten)
	if len(s.Tops) > 0 {
		tops := make([]types.Top, len(s.Tops))
		for i, t := range s.Tops {
			tops[i] = t
			tops[i].Dokumente = normalizeDokRefs(t.Dokumente, true)
			tops[i].VorgangIDs = nil // derived, not part of identity
		}
		sort.Slice(tops, func(i, j int) bool { return tops[i].Nummer < tops[j].Nummer })
		out.Tops = tops
	} else {
		out.Tops = nil
	}
	return &out
}

// CanonicalJSON renders the canonical byte form of an already-normalized
// value. Struct field order is fixed, times are RFC 3339 at millisecond
// precision, absent optionals are omitted, so byte equality is structural
// equality.
func CanonicalJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All domain types marshal without error; a failure here is a bug.
		panic(err)
	}
	return b
}

// EqualVorgang reports canonical structural equality of two Vorgangs.
func EqualVorgang(a, b *types.Vorgang) bool {
	return bytes.Equal(CanonicalJSON(NormalizeVorgang(a)), CanonicalJSON(NormalizeVorgang(b)))
}

// EqualSitzung reports canonical structural equality of two Sitzungen.
func EqualSitzung(a, b *types.Sitzung) bool {
	return bytes.Equal(CanonicalJSON(NormalizeSitzung(a)), CanonicalJSON(NormalizeSitzung(b)))
}
