// Package server exposes the dashboards and the chat agent over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Dashboard serves the fixed-shape listings. *db.DB implements it.
type Dashboard interface {
	ListInventory(ctx context.Context) ([]db.Product, error)
	ListOrders(ctx context.Context) ([]db.Order, error)
	ListExpiry(ctx context.Context) ([]db.ExpiryBatch, error)
}

// Chatter runs one chat turn in a session. *session.Manager implements it.
type Chatter interface {
	Chat(ctx context.Context, id, message string) (string, *agent.Result, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Dashboard Dashboard
	Chat      Chatter
	// Ping reports database health for /health. Optional.
	Ping func(ctx context.Context) error
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	logger zerolog.Logger
	router chi.Router
}

const shutdownTimeout = 10 * time.Second

// New builds the router.
func New(deps Deps, logger zerolog.Logger) *Server {
	s := &Server{deps: deps, logger: logger.With().Str("component", "server").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Get("/inventory", s.handleInventory)
	r.Get("/orders", s.handleOrders)
	r.Get("/expiry", s.handleExpiry)
	r.Post("/chat", s.handleChat)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.logger.Info()
		if status >= http.StatusInternalServerError {
			ev = s.logger.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// cors allows any origin. Preflight requests are answered here, before
// routing, so they never reach the 405 handler.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
