package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// collectorFrom derives the provenance identity of a push. The scraper name
// is self-reported via the X-Scraper-Id header.
func collectorFrom(r *http.Request, claims auth.Claims) storage.Collector {
	return storage.Collector{
		KeyID:   claims.KeyID,
		Scraper: r.Header.Get("X-Scraper-Id"),
	}
}

func (s *Server) handleListVorgaenge(w http.ResponseWriter, r *http.Request) {
	page, err := parsePagination(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	dates, err := parseDateRange(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	f := types.VorgangFilter{
		Since:  dates.Since,
		Until:  dates.Until,
		Offset: page.offset(),
		Limit:  page.PerPage,
	}
	q := r.URL.Query()
	if raw := q.Get("wp"); raw != "" {
		wp, err := parseIntParam("wp", raw)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		f.Wahlperiode = &wp
	}
	if raw := q.Get("vgtyp"); raw != "" {
		typ := types.Vorgangstyp(raw)
		f.Typ = &typ
	}
	if raw := q.Get("p"); raw != "" {
		p := types.Parlament(raw)
		f.Parlament = &p
	}
	if raw := q.Get("initiator_person"); raw != "" {
		f.InitiatorPerson = &raw
	}
	if raw := q.Get("initiator_org"); raw != "" {
		f.InitiatorOrg = &raw
	}
	if raw := q.Get("initiator_fach"); raw != "" {
		f.InitiatorFachgebiet = &raw
	}

	list, total, err := s.store.ListVorgaenge(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if total == 0 {
		s.respondEmptyList(w, r)
		return
	}
	writePaginationHeaders(w, r, page, total)
	if list == nil {
		list = []*types.Vorgang{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetVorgang(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.GetVorgang(r.Context(), chi.URLParam(r, "vorgang_id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}

// handleApplyVorgang is the collector push path: candidate resolution plus
// insert-or-merge. Collector and admin keys may push; keyadder keys exist
// for key management only.
func (s *Server) handleApplyVorgang(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		s.respondError(w, r, auth.ErrKeyMissing)
		return
	}
	if claims.Scope != auth.ScopeCollector && claims.Scope != auth.ScopeAdmin {
		s.respondError(w, r, auth.ErrScopeInsufficient)
		return
	}
	var v types.Vorgang
	if err := decodeJSON(r, &v); err != nil {
		s.respondError(w, r, err)
		return
	}
	apiID, err := s.store.ApplyVorgang(r.Context(), &v, collectorFrom(r, claims))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"api_id": apiID})
}

// handlePutVorgang is PUT-by-id, reserved for editing keys.
func (s *Server) handlePutVorgang(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireEdit(w, r)
	if !ok {
		return
	}
	var v types.Vorgang
	if err := decodeJSON(r, &v); err != nil {
		s.respondError(w, r, err)
		return
	}
	v.APIID = chi.URLParam(r, "vorgang_id")
	created, err := s.store.PutVorgang(r.Context(), &v, collectorFrom(r, claims))
	if errors.Is(err, storage.ErrNotModified) {
		// An identical payload is acknowledged, not a failed precondition.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if created {
		s.respondJSON(w, http.StatusCreated, nil)
		return
	}
	s.respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleDeleteVorgang(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	if err := s.store.DeleteVorgang(r.Context(), chi.URLParam(r, "vorgang_id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
