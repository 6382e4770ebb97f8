package web

// This file contains shared utilities used across handlers.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// MaxBodySize is the maximum accepted request body (1MB).
const MaxBodySize = 1 << 20

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return badRequest("invalid request body")
	}
	return nil
}

// requestUser returns the authenticated caller.
func requestUser(r *http.Request) (core.User, error) {
	user, ok := core.UserFromContext(r.Context())
	if !ok {
		return core.User{}, core.ErrPermissionDenied
	}
	return user, nil
}

// session resolves the {sessionID} route parameter for the caller.
func (s *Server) session(r *http.Request) (*core.Session, error) {
	user, err := requestUser(r)
	if err != nil {
		return nil, err
	}
	return s.service.Session(chi.URLParam(r, "sessionID"), user)
}

// withSession resolves the session and calls fn, responding with the error
// fn returns or the session snapshot.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*core.Session) error) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := fn(session); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, session.Snapshot())
}
