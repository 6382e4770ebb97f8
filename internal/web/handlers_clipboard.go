package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// clipboardRequest targets one cell. Text and Denied carry the browser's
// clipboard state for paste.
type clipboardRequest struct {
	Path   string `json:"path"`
	Column string `json:"column"`
	Text   string `json:"text"`
	Denied bool   `json:"denied"`
}

// clipboardResponse returns the text to place on the browser clipboard.
type clipboardResponse struct {
	Text     string         `json:"text"`
	Snapshot *core.Snapshot `json:"snapshot,omitempty"`
}

// clipboardAction matches the method expressions of the session's
// clipboard operations.
type clipboardAction func(session *core.Session, ctx context.Context, cb core.Clipboard, path, column string) error

// handleCopy writes the cell value to the response clipboard.
func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	s.clipboard(w, r, false, (*core.Session).Copy)
}

// handleCut copies the cell value and clears the cell.
func (s *Server) handleCut(w http.ResponseWriter, r *http.Request) {
	s.clipboard(w, r, true, (*core.Session).Cut)
}

// handlePaste parses the posted clipboard text into the target cell.
func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	s.clipboard(w, r, true, (*core.Session).Paste)
}

func (s *Server) clipboard(w http.ResponseWriter, r *http.Request, withSnapshot bool, action clipboardAction) {
	var req clipboardRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Path == "" || req.Column == "" {
		s.respondError(w, r, badRequest("path and column are required"))
		return
	}
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cb := &core.MemoryClipboard{Text: req.Text, Denied: req.Denied}
	if err := action(session, r.Context(), cb, req.Path, req.Column); err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := clipboardResponse{Text: cb.Text}
	if withSnapshot {
		snap := session.Snapshot()
		resp.Snapshot = &snap
	}
	writeJSON(w, resp)
}
