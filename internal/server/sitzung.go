package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

func (s *Server) handleListSitzungen(w http.ResponseWriter, r *http.Request) {
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

	f := types.SitzungFilter{
		Since:  dates.Since,
		Until:  dates.Until,
		Offset: page.offset(),
		Limit:  page.PerPage,
	}
	q := r.URL.Query()
	if raw := q.Get("p"); raw != "" {
		p := types.Parlament(raw)
		f.Parlament = &p
	}
	if raw := q.Get("wp"); raw != "" {
		wp, err := parseIntParam("wp", raw)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		f.Wahlperiode = &wp
	}
	if raw := q.Get("gr"); raw != "" {
		f.GremiumLike = &raw
	}
	if raw := q.Get("vgid"); raw != "" {
		f.VorgangAPIID = &raw
	}

	list, total, err := s.store.ListSitzungen(r.Context(), f)
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
		list = []*types.Sitzung{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSitzung(w http.ResponseWriter, r *http.Request) {
	sz, err := s.store.GetSitzung(r.Context(), chi.URLParam(r, "sitzung_id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sz)
}

func (s *Server) handlePutSitzung(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireEdit(w, r)
	if !ok {
		return
	}
	var sz types.Sitzung
	if err := decodeJSON(r, &sz); err != nil {
		s.respondError(w, r, err)
		return
	}
	sz.APIID = chi.URLParam(r, "sitzung_id")
	created, err := s.store.PutSitzung(r.Context(), &sz, collectorFrom(r, claims))
	if errors.Is(err, storage.ErrNotModified) {
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

func (s *Server) handleDeleteSitzung(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	if err := s.store.DeleteSitzung(r.Context(), chi.URLParam(r, "sitzung_id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// kalenderParams parses the {parlament}/{datum} path pair.
func kalenderParams(r *http.Request) (types.Parlament, time.Time, error) {
	p := types.Parlament(chi.URLParam(r, "parlament"))
	if !p.IsValid() {
		return "", time.Time{}, &storage.ValidationError{Err: fmt.Errorf("unknown parlament %q", string(p))}
	}
	day, err := time.Parse("2006-01-02", chi.URLParam(r, "datum"))
	if err != nil {
		return "", time.Time{}, &storage.ValidationError{Err: fmt.Errorf("invalid datum, want YYYY-MM-DD")}
	}
	return p, day, nil
}

func (s *Server) handleGetKalender(w http.ResponseWriter, r *http.Request) {
	p, day, err := kalenderParams(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	list, err := s.store.GetKalender(r.Context(), p, day)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []*types.Sitzung{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

// handlePutKalender replaces a (parlament, day) slice of the calendar.
// Collector keys may only write today and future days plus a one-day grace
// window; rewriting older history needs an editing key.
func (s *Server) handlePutKalender(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		s.respondError(w, r, auth.ErrKeyMissing)
		return
	}
	p, day, err := kalenderParams(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !claims.CanEdit() {
		yesterday := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
		if day.Before(yesterday) {
			s.respondError(w, r, auth.ErrScopeInsufficient)
			return
		}
	}

	var sessions []types.Sitzung
	if err := decodeJSON(r, &sessions); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.ReplaceKalender(r.Context(), p, day, sessions, collectorFrom(r, claims)); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nil)
}
