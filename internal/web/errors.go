package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the error with statusFor
//  4. Error is mapped via core.MapError to get a user-friendly message
//  5. Technical error is logged with the request id for correlation
//  6. User message is rendered as JSON or as an HTML fragment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/rowgrid/internal/core"
	"github.com/JonMunkholm/rowgrid/internal/logging"
	"github.com/JonMunkholm/rowgrid/internal/web/views"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error        string             `json:"error"`
	Message      string             `json:"message"`
	Action       string             `json:"action,omitempty"`
	Code         string             `json:"code"`
	Notification *core.Notification `json:"notification,omitempty"`
}

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

// badRequest wraps msg so it maps to 400.
func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var invalid *core.ValidationError
	var unsupported *core.UnsupportedFieldError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTableNotFound),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrColumnNotFound),
		errors.Is(err, core.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, core.ErrPermissionDenied),
		errors.Is(err, core.ErrReadOnlyTable),
		errors.Is(err, core.ErrFiltersForbidden),
		errors.Is(err, core.ErrClipboardPermission):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTooManyWrites):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate response
// based on the request type (JSON or HTML).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	userMsg := core.MapError(err)

	var requestErr *requestError
	if errors.As(err, &requestErr) {
		userMsg = core.UserMessage{Message: requestErr.msg, Code: "REQ001"}
	}

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if statusCode == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	if wantsJSON(r) {
		n := core.NotificationFor(err)
		n.Message = userMsg.Message
		n.Code = userMsg.Code
		respondErrorJSON(w, userMsg, &n, statusCode)
		return
	}
	respondErrorHTML(w, r, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, n *core.Notification, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:        msg.Message,
		Message:      msg.Message,
		Action:       msg.Action,
		Code:         msg.Code,
		Notification: n,
	})
}

// respondErrorHTML renders the error alert fragment.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error alert", "error", err)
	}
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
