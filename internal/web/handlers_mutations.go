package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// handleAddRow creates a row with the column initial values overlaid by the
// posted fields.
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields map[string]any `json:"fields"`
	}
	if err := decodeBody(r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	row, err := session.AddRow(r.Context(), req.Fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, row)
}

// handleUpdateRow merges fields into a row and removes deleteFields.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string         `json:"path"`
		Fields       map[string]any `json:"fields"`
		DeleteFields []string       `json:"deleteFields"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.respondError(w, r, badRequest("missing row path"))
		return
	}

	s.withSession(w, r, func(session *core.Session) error {
		return session.UpdateRow(r.Context(), req.Path, req.Fields, req.DeleteFields)
	})
}

// handleUpdateField sets or deletes a single cell.
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path   string `json:"path"`
		Field  string `json:"field"`
		Value  any    `json:"value"`
		Delete bool   `json:"delete"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Path == "" || req.Field == "" {
		s.respondError(w, r, badRequest("path and field are required"))
		return
	}

	s.withSession(w, r, func(session *core.Session) error {
		return session.UpdateField(r.Context(), req.Path, req.Field, req.Value, req.Delete)
	})
}

// handleDeleteRows deletes the listed rows. Every row is attempted.
func (s *Server) handleDeleteRows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Paths) == 0 {
		s.respondError(w, r, badRequest("no rows selected"))
		return
	}

	s.withSession(w, r, func(session *core.Session) error {
		return session.DeleteRows(r.Context(), req.Paths...)
	})
}
