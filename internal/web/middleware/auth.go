package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/rowgrid/internal/config"
	"github.com/JonMunkholm/rowgrid/internal/core"
)

// Identity headers set by the authenticating gateway in front of the server.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRoles = "X-User-Roles"
)

// APIKeyAuth returns middleware that validates X-API-Key header against configured keys.
// If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeJSONError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			if !isValidAPIKey(apiKey, cfg.APIKeys) {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeJSONError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isValidAPIKey checks if the provided key matches any configured key.
// Uses constant-time comparison and checks ALL keys.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

// Authenticate builds the caller's core.User from the identity headers and
// stores it in the request context. Requests without a user id are rejected.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromHeaders(r.Header)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing user identity", "AUTH_MISSING_USER")
			return
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithUser(r.Context(), user)))
	})
}

// UserFromHeaders parses the identity headers. Roles are comma separated.
func UserFromHeaders(h http.Header) (core.User, bool) {
	uid := strings.TrimSpace(h.Get(HeaderUserID))
	if uid == "" {
		return core.User{}, false
	}
	var roles []string
	for _, role := range strings.Split(h.Get(HeaderUserRoles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, strings.ToUpper(role))
		}
	}
	return core.User{
		UID:         uid,
		Email:       strings.TrimSpace(h.Get(HeaderUserEmail)),
		DisplayName: strings.TrimSpace(h.Get(HeaderUserName)),
		Roles:       roles,
	}, true
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
