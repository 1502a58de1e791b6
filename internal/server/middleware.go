package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parlatrack/parlatrack/internal/auth"
)

type ctxKey int

const claimsKey ctxKey = iota

// claimsFrom returns the authenticated claims, if any.
func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

// authenticate resolves the X-API-Key header to claims and stores them in
// the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.store.ValidateKey(r.Context(), r.Header.Get("X-API-Key"))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireEdit aborts the request unless the claims allow object editing.
func (s *Server) requireEdit(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		s.respondError(w, r, auth.ErrKeyMissing)
		return claims, false
	}
	if !claims.CanEdit() {
		s.respondError(w, r, auth.ErrScopeInsufficient)
		return claims, false
	}
	return claims, true
}

// rateLimit applies the global token bucket.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the status code for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)))
	})
}
