package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parlatrack/parlatrack/internal/auth"
)

type createKeyRequest struct {
	Scope     auth.Scope `json:"scope"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type createKeyResponse struct {
	Key    string `json:"api_key"`
	Keytag string `json:"keytag"`
}

// handleCreateKey mints a new API key. Reserved for keyadder and admin keys.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireEdit(w, r)
	if !ok {
		return
	}
	var req createKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	// A keyadder must not escalate to admin.
	if claims.Scope != auth.ScopeAdmin && req.Scope == auth.ScopeAdmin {
		s.respondError(w, r, auth.ErrScopeInsufficient)
		return
	}
	key, err := s.store.CreateKey(r.Context(), req.Scope, claims.KeyID, req.ExpiresAt)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, createKeyResponse{Key: key, Keytag: auth.Keytag(key)})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireEdit(w, r); !ok {
		return
	}
	if err := s.store.RevokeKey(r.Context(), chi.URLParam(r, "keytag")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
