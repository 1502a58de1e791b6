// Package server exposes the store over HTTP: collector push, object
// editing, retrieval with pagination, vocabularies, the calendar and key
// management. Versions v1 and v2 of the API serve the same handlers.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/parlatrack/parlatrack/internal/storage"
)

// Server wires the HTTP routes to the storage layer.
type Server struct {
	log     *zap.Logger
	store   storage.Storage
	limiter *rate.Limiter
	router  chi.Router
}

// Options tune a Server. Zero values select defaults.
type Options struct {
	// RateCount is the burst size of the global token bucket; RateInterval
	// the refill interval for one token. Zero disables rate limiting.
	RateCount    int
	RateInterval time.Duration
}

// New builds the server and its route tree.
func New(log *zap.Logger, store storage.Storage, opts Options) *Server {
	s := &Server{log: log, store: store}
	if opts.RateCount > 0 && opts.RateInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.RateInterval/time.Duration(opts.RateCount)), opts.RateCount)
	}

	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Total-Count", "X-Total-Pages", "X-Page", "X-Per-Page", "Link"},
	}))
	r.Use(s.rateLimit)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	api := s.apiRoutes()
	r.Mount("/api/v1", api)
	r.Mount("/api/v2", api)

	s.router = r
	return s
}

func (s *Server) apiRoutes() chi.Router {
	r := chi.NewRouter()

	// Retrieval is open.
	r.Get("/vorgang", s.handleListVorgaenge)
	r.Get("/vorgang/{vorgang_id}", s.handleGetVorgang)
	r.Get("/sitzung", s.handleListSitzungen)
	r.Get("/sitzung/{sitzung_id}", s.handleGetSitzung)
	r.Get("/kalender/{parlament}/{datum}", s.handleGetKalender)
	r.Get("/enumeration/{name}", s.handleEnumList)
	r.Get("/autoren", s.handleAutorenList)
	r.Get("/gremien", s.handleGremienList)

	// Everything that writes needs a key.
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Put("/vorgang", s.handleApplyVorgang)
		r.Put("/vorgang/{vorgang_id}", s.handlePutVorgang)
		r.Delete("/vorgang/{vorgang_id}", s.handleDeleteVorgang)
		r.Put("/sitzung/{sitzung_id}", s.handlePutSitzung)
		r.Delete("/sitzung/{sitzung_id}", s.handleDeleteSitzung)
		r.Put("/kalender/{parlament}/{datum}", s.handlePutKalender)
		r.Put("/enumeration/{name}", s.handleEnumPut)
		r.Delete("/enumeration/{name}/{value}", s.handleEnumDelete)
		r.Put("/autoren", s.handleAutorenPut)
		r.Delete("/autoren", s.handleAutorenDelete)
		r.Put("/gremien", s.handleGremienPut)
		r.Delete("/gremien", s.handleGremienDelete)
		r.Post("/auth", s.handleCreateKey)
		r.Delete("/auth/{keytag}", s.handleRevokeKey)
	})

	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
