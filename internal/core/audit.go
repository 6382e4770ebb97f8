package core

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"
)

// AuditChangeType is the kind of row mutation being audited.
type AuditChangeType string

const (
	AuditAddRow     AuditChangeType = "ADD_ROW"
	AuditUpdateCell AuditChangeType = "UPDATE_CELL"
	AuditDeleteRow  AuditChangeType = "DELETE_ROW"
)

// MinAuditVersion is the first backend version exposing the audit route.
const MinAuditVersion = "1.1.1"

// AuditTimeout bounds a single detached audit call.
var AuditTimeout = 10 * time.Second

// Route is a backend function endpoint.
type Route struct {
	Path   string
	Method string
}

var (
	RouteAuditChange = Route{Path: "/auditChange", Method: "POST"}
	RouteVersion     = Route{Path: "/version", Method: "GET"}
)

// Backend is the external functions service.
type Backend interface {
	Run(ctx context.Context, route Route, body any) ([]byte, error)
	Version(ctx context.Context) (string, error)
}

// AuditRef identifies the audited row.
type AuditRef struct {
	RowPath        string `json:"rowPath"`
	RowID          string `json:"rowId"`
	TableID        string `json:"tableId"`
	CollectionPath string `json:"collectionPath"`
}

// AuditChangeRequest is the body posted to the audit route.
type AuditChangeRequest struct {
	Type AuditChangeType `json:"type"`
	Ref  AuditRef        `json:"ref"`
	Data map[string]any  `json:"data,omitempty"`
}

// AuditOptions configures an Auditor.
type AuditOptions struct {
	MinVersion string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Auditor sends best-effort change notifications for one table.
// Calls never block the caller and never return errors.
type Auditor struct {
	backend    Backend
	table      TableSettings
	minVersion string
	timeout    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	version string

	wg sync.WaitGroup
}

// NewAuditor creates an auditor for table. A nil backend disables auditing.
func NewAuditor(backend Backend, table TableSettings, opts AuditOptions) *Auditor {
	if opts.MinVersion == "" {
		opts.MinVersion = MinAuditVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = AuditTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Auditor{
		backend:    backend,
		table:      table,
		minVersion: opts.MinVersion,
		timeout:    opts.Timeout,
		logger:     opts.Logger.With("table_id", table.ID),
	}
}

// Configured reports whether the table is set up for auditing. It does not
// contact the backend.
func (a *Auditor) Configured() bool {
	return a != nil && a.backend != nil &&
		a.table.ID != "" && a.table.Collection != "" && a.table.Audit
}

// AuditChange records a row mutation on a detached goroutine. It is a no-op
// when the table is not configured for auditing or the backend is too old.
func (a *Auditor) AuditChange(ctx context.Context, changeType AuditChangeType, rowID string, data map[string]any) {
	if !a.Configured() {
		return
	}

	req := AuditChangeRequest{
		Type: changeType,
		Ref: AuditRef{
			RowPath:        a.table.Collection,
			RowID:          rowID,
			TableID:        a.table.ID,
			CollectionPath: a.table.Collection,
		},
		Data: data,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if !a.Compatible(callCtx) {
			a.logger.Debug("audit skipped: backend version not compatible",
				"min_version", a.minVersion)
			return
		}
		if _, err := a.backend.Run(callCtx, RouteAuditChange, req); err != nil {
			a.logger.Warn("audit change failed",
				"type", changeType,
				"row_id", rowID,
				"error", err)
		}
	}()
}

// Compatible reports whether the backend version is at least the minimum.
// A successfully fetched version is cached.
func (a *Auditor) Compatible(ctx context.Context) bool {
	a.mu.Lock()
	version := a.version
	a.mu.Unlock()

	if version == "" {
		v, err := a.backend.Version(ctx)
		if err != nil {
			a.logger.Debug("backend version unavailable", "error", err)
			return false
		}
		version = v
		a.mu.Lock()
		a.version = v
		a.mu.Unlock()
	}
	return VersionAtLeast(version, a.minVersion)
}

// Wait blocks until in-flight audit calls finish.
func (a *Auditor) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}

// VersionAtLeast compares two semantic versions with or without a "v" prefix.
// An invalid version is never compatible.
func VersionAtLeast(version, min string) bool {
	v, m := canonicalVersion(version), canonicalVersion(min)
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(v, m) >= 0
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
