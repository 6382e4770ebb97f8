// Package web provides the HTTP server, JSON API and live stream for table
// sessions.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/JonMunkholm/rowgrid/internal/config"
	"github.com/JonMunkholm/rowgrid/internal/core"
	mw "github.com/JonMunkholm/rowgrid/internal/web/middleware"
)

// Server is the HTTP server for table sessions.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	writes   *core.WriteLimiter
	router   *chi.Mux
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a new Server instance. writes may be nil, in which case
// a limiter is built from cfg.Writes.
func NewServer(service *core.Service, cfg *config.Config, writes *core.WriteLimiter) *Server {
	if writes == nil {
		writes = core.NewWriteLimiter(cfg.Writes.MaxConcurrent, cfg.Writes.MaxWaitTime)
	}
	s := &Server{
		service: service,
		cfg:     cfg,
		writes:  writes,
		router:  chi.NewRouter(),
		logger:  slog.Default(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
		s.router.Use(limiter.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	timeout := middleware.Timeout(s.cfg.Server.RequestTimeout)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		r.Use(mw.Authenticate)

		r.With(timeout).Get("/", s.handleIndex)

		r.Route("/api", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/tables", s.handleListTables)
				r.Put("/tables/{tableID}/favorite", s.handleToggleFavorite)
				r.Post("/tables/{tableID}/sessions", s.handleOpenSession)
				r.Get("/writes", s.handleWriteStatus)
				r.Get("/field-types", s.handleFieldTypes)
			})

			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				// The stream outlives the request timeout.
				r.Get("/stream", s.handleStream)

				r.Group(func(r chi.Router) {
					r.Use(timeout)
					r.Get("/", s.handleSnapshot)
					r.Delete("/", s.handleCloseSession)
					r.Post("/scroll", s.handleScroll)
					r.Post("/reload", s.handleReload)
				})

				r.Group(func(r chi.Router) {
					r.Use(timeout)
					r.Use(s.limitWrites)

					// Rows
					r.Post("/rows", s.handleAddRow)
					r.Patch("/rows", s.handleUpdateRow)
					r.Delete("/rows", s.handleDeleteRows)
					r.Put("/rows/field", s.handleUpdateField)

					// Filters and sorting
					r.Put("/filters/table", s.handleSetTableFilters)
					r.Put("/filters/user", s.handleSetUserFilters)
					r.Delete("/filters/user", s.handleClearUserFilters)
					r.Put("/orders", s.handleSetOrders)

					// Columns
					r.Put("/hidden-fields", s.handleSetHiddenFields)
					r.Put("/columns", s.handleReorderColumns)
					r.Post("/columns", s.handleAddColumn)
					r.Put("/columns/{columnKey}/index", s.handleMoveColumn)
					r.Delete("/columns/{columnKey}", s.handleRemoveColumn)

					// Clipboard
					r.Post("/clipboard/copy", s.handleCopy)
					r.Post("/clipboard/cut", s.handleCut)
					r.Post("/clipboard/paste", s.handlePaste)
				})
			})
		})
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("starting server", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, then waits for in-flight writes.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if active := s.writes.ActiveCount(); active > 0 {
		s.logger.Info("waiting for writes to complete", "active", active)
	}
	return s.writes.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// limitWrites holds a write slot for the duration of a mutating request.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.writes.Acquire(r.Context()); err != nil {
			s.respondError(w, r, err)
			return
		}
		defer s.writes.Release()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness and the number of open sessions.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// handleWriteStatus reports write slot usage.
func (s *Server) handleWriteStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.writes.Status())
}
