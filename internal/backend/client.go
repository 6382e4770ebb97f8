// Package backend is the HTTP client for the external functions service that
// receives audit notifications.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// DefaultTimeout bounds a single backend request when the caller's context
// has no deadline.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

// ErrNoVersion is returned when the version route answers without a version.
var ErrNoVersion = errors.New("backend did not report a version")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Route  string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s: status %d", e.Route, e.Status)
	}
	return fmt.Sprintf("backend %s: status %d: %s", e.Route, e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	URL        string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls backend routes over HTTP with a bearer token.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

var _ core.Backend = (*Client)(nil)

// New creates a Client for the service at opts.URL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, errors.New("backend URL is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("backend URL %q must use http or https", opts.URL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: base,
		token:   opts.Token,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}, nil
}

// Run calls route with body encoded as JSON and returns the raw response.
// A nil body sends no payload.
func (c *Client) Run(ctx context.Context, route core.Route, body any) ([]byte, error) {
	method := route.Method
	if method == "" {
		method = http.MethodPost
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", route.Path, err)
		}
		payload = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route.Path, payload)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", route.Path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", route.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", route.Path, err)
	}

	c.logger.Debug("backend call",
		"route", route.Path,
		"method", method,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Route:  route.Path,
			Status: resp.StatusCode,
			Body:   errorMessage(data),
		}
	}
	return data, nil
}

// Version asks the service which version it runs.
func (c *Client) Version(ctx context.Context) (string, error) {
	data, err := c.Run(ctx, core.RouteVersion, nil)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("backend %s: invalid JSON response", core.RouteVersion.Path)
	}
	version := gjson.GetBytes(data, "version").String()
	if version == "" {
		return "", ErrNoVersion
	}
	return version, nil
}

// errorMessage pulls a short description out of an error response.
func errorMessage(data []byte) string {
	if gjson.ValidBytes(data) {
		for _, path := range []string{"error.message", "error", "message"} {
			if v := gjson.GetBytes(data, path); v.Type == gjson.String {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
