package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/rowgrid/internal/core"
	"github.com/JonMunkholm/rowgrid/internal/web/views"
)

// handleIndex renders the table listing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	listing, err := s.service.ListTables(r.Context(), user, r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Layout("Tables", views.TableList(user, listing)).Render(r.Context(), w); err != nil {
		s.logger.Error("render index", "error", err)
	}
}

// handleListTables returns the tables visible to the caller, grouped by section.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	listing, err := s.service.ListTables(r.Context(), user, strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, listing)
}

// handleToggleFavorite adds or removes a table from the caller's favourites.
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}

	favorites, err := s.service.ToggleFavorite(r.Context(), user, chi.URLParam(r, "tableID"), req.Favorite)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"favorites": favorites})
}

// openSessionResponse is returned when a table is opened.
type openSessionResponse struct {
	SessionID string             `json:"sessionId"`
	Table     core.TableSettings `json:"table"`
	Snapshot  core.Snapshot      `json:"snapshot"`
}

// handleOpenSession opens a table for the caller.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	session, err := s.service.OpenSession(r.Context(), user, chi.URLParam(r, "tableID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+session.ID())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, openSessionResponse{
		SessionID: session.ID(),
		Table:     session.Table(),
		Snapshot:  session.Snapshot(),
	})
}

// handleSnapshot returns the session's current state.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(*core.Session) error { return nil })
}

// handleCloseSession disposes of the session.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.CloseSession(session.ID()); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReload re-reads settings and schema and restarts the listener.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(session *core.Session) error {
		return session.Refresh(r.Context())
	})
}

// handleScroll feeds a viewport position to the pager.
func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var pos core.ScrollPosition
	if err := decodeBody(r, &pos, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	advanced := session.Scroll(pos)
	writeJSON(w, map[string]any{"advanced": advanced, "page": session.Page()})
}
