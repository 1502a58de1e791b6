package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/storage"
)

// errRangeUnsatisfiable marks a requested date range that cannot match
// anything; callers map it to 416.
var errRangeUnsatisfiable = errors.New("requested range not satisfiable")

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

// respondError maps the storage and auth error taxonomy to HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var ambErr *storage.AmbiguousError
	var valErr *storage.ValidationError
	var incErr *storage.IncompleteError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ambErr):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrStillReferenced):
		status = http.StatusConflict
	case errors.As(err, &valErr), errors.As(err, &incErr):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrNotModified):
		w.WriteHeader(http.StatusNotModified)
		return
	case errors.Is(err, errRangeUnsatisfiable):
		status = http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, auth.ErrScopeInsufficient):
		status = http.StatusForbidden
	case errors.Is(err, auth.ErrKeyMissing),
		errors.Is(err, auth.ErrKeyUnknown),
		errors.Is(err, auth.ErrKeyExpired),
		errors.Is(err, auth.ErrKeyDeleted):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respondJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	s.respondJSON(w, status, errorBody{Error: err.Error()})
}

// respondEmptyList answers a listing whose filter matched nothing: 304 when
// the client asked conditionally via If-Modified-Since, 204 otherwise.
func (s *Server) respondEmptyList(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("If-Modified-Since") != "" {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads the request body into v; malformed JSON maps to 400.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &storage.ValidationError{Err: err}
	}
	return nil
}
