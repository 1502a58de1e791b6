package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/types"
)

// enumPutRequest is the wire form of the replacement protocol.
type enumPutRequest[T any] struct {
	Objects   []T                    `json:"objects"`
	Replacing []storage.Replacing[T] `json:"replacing,omitempty"`
}

func enumName(r *http.Request) (types.EnumName, error) {
	name := types.EnumName(chi.URLParam(r, "name"))
	if !name.IsValid() {
		return "", &storage.ValidationError{Err: fmt.Errorf("unknown enumeration %q", string(name))}
	}
	return name, nil
}

func (s *Server) handleEnumList(w http.ResponseWriter, r *http.Request) {
	name, err := enumName(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	values, err := s.store.EnumList(r.Context(), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if values == nil {
		values = []string{}
	}
	s.respondJSON(w, http.StatusOK, values)
}

func (s *Server) handleEnumPut(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	name, err := enumName(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req enumPutRequest[string]
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.EnumPut(r.Context(), name, req.Objects, req.Replacing); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleEnumDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	name, err := enumName(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	value, err := url.PathUnescape(chi.URLParam(r, "value"))
	if err != nil {
		s.respondError(w, r, &storage.ValidationError{Err: fmt.Errorf("invalid value encoding")})
		return
	}
	if err := s.store.EnumDelete(r.Context(), name, value); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAutorenList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.AutorenList(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []types.Autor{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleAutorenPut(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	var req enumPutRequest[types.Autor]
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.AutorenPut(r.Context(), req.Objects, req.Replacing); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nil)
}

// handleAutorenDelete removes one author, identified by query parameters
// since the identifying tuple does not fit a path segment.
func (s *Server) handleAutorenDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	q := r.URL.Query()
	a := types.Autor{Organisation: q.Get("organisation")}
	if a.Organisation == "" {
		s.respondError(w, r, &storage.ValidationError{Err: fmt.Errorf("organisation is required")})
		return
	}
	if p := q.Get("person"); p != "" {
		a.Person = &p
	}
	if f := q.Get("fachgebiet"); f != "" {
		a.Fachgebiet = &f
	}
	if err := s.store.AutorenDelete(r.Context(), a); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGremienList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.GremienList(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []types.Gremium{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGremienPut(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	var req enumPutRequest[types.Gremium]
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.GremienPut(r.Context(), req.Objects, req.Replacing); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGremienDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	q := r.URL.Query()
	g := types.Gremium{
		Name:      q.Get("name"),
		Parlament: types.Parlament(q.Get("parlament")),
	}
	if g.Name == "" || !g.Parlament.IsValid() {
		s.respondError(w, r, &storage.ValidationError{Err: fmt.Errorf("name and parlament are required")})
		return
	}
	if raw := q.Get("wp"); raw != "" {
		wp, err := parseIntParam("wp", raw)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		g.Wahlperiode = wp
	}
	if err := s.store.GremienDelete(r.Context(), g); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
