// Package config provides centralized configuration management for the server.
// It loads configuration from environment variables with defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Backend  BackendConfig
	Table    TableConfig
	Writes   WriteConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default so the event stream stays open.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig selects the document store.
type DatabaseConfig struct {
	// Driver is postgres or memory (default: postgres)
	Driver string `env:"DOCSTORE_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for postgres.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// PollInterval re-runs listeners periodically; 0 disables polling.
	PollInterval time.Duration `env:"DOCSTORE_POLL_INTERVAL" default:"0s"`
}

// RedisConfig enables cross-instance change notification.
type RedisConfig struct {
	// URL is a redis:// URL. Empty keeps notifications in-process.
	URL string `env:"REDIS_URL"`

	Channel string `env:"REDIS_CHANNEL" default:"rowgrid:changes"`
}

// BackendConfig points at the optional backend service used for auditing.
type BackendConfig struct {
	// URL is the backend base URL. Empty disables auditing.
	URL string `env:"BACKEND_URL"`

	Token string `env:"BACKEND_TOKEN"`

	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"10s"`

	// MinVersion is the oldest backend that supports audit calls.
	MinVersion string `env:"BACKEND_MIN_VERSION" default:"1.1.1"`
}

// TableConfig holds grid paging settings.
type TableConfig struct {
	PageSize int `env:"TABLE_PAGE_SIZE" default:"30"`

	// ScrollThreshold is the distance from the bottom, in pixels, that
	// loads the next page (default: 300)
	ScrollThreshold float64 `env:"TABLE_SCROLL_THRESHOLD" default:"300"`

	// PageThrottle limits page advances to one per window (default: 500ms)
	PageThrottle time.Duration `env:"TABLE_PAGE_THROTTLE" default:"500ms"`
}

// WriteConfig bounds concurrent document writes.
type WriteConfig struct {
	MaxConcurrent int           `env:"WRITE_MAX_CONCURRENT" default:"32"`
	MaxWaitTime   time.Duration `env:"WRITE_MAX_WAIT_TIME" default:"5s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the sustained rate per IP (default: 600)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"600"`

	// Burst is the number of requests allowed at once (default: 50)
	Burst int `env:"RATE_LIMIT_BURST" default:"50"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// AllowedOrigins restricts websocket origins; empty allows same-host only.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
