package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path          TEXT PRIMARY KEY,
	collection    TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	id            TEXT NOT NULL,
	data          JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
CREATE INDEX IF NOT EXISTS documents_collection_id_idx ON documents (collection_id);
CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);
`

// PostgresStore keeps documents in a single JSONB table.
type PostgresStore struct {
	pool      *pgxpool.Pool
	notifier  Notifier
	listeners *listenerSet
	logger    *slog.Logger
}

// NewPostgresStore wraps pool. Change messages go through notifier; poll,
// when positive, also re-runs every listener on a fixed interval to pick up
// writes made by other processes without a shared notifier.
func NewPostgresStore(pool *pgxpool.Pool, notifier Notifier, poll time.Duration, logger *slog.Logger) *PostgresStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		pool:      pool,
		notifier:  notifier,
		listeners: newListenerSet(notifier, poll, logger),
		logger:    logger,
	}
}

// Migrate creates the documents table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate documents: %w", mapPgError(err))
	}
	return nil
}

func (s *PostgresStore) GetDoc(ctx context.Context, path string) (map[string]any, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}
	var raw []byte
	err := s.pool.QueryRow(ctx, "SELECT data FROM documents WHERE path = $1", path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, mapPgError(err))
	}
	return decodeData(raw)
}

func (s *PostgresStore) SetDoc(ctx context.Context, path string, data map[string]any, deleteFields []string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	update, err := normalizeDoc(data)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPgError(err))
	}
	defer tx.Rollback(ctx) // No-op if already committed

	var (
		raw      []byte
		existing map[string]any
	)
	err = tx.QueryRow(ctx, "SELECT data FROM documents WHERE path = $1 FOR UPDATE", path).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("set %s: %w", path, mapPgError(err))
	default:
		if existing, err = decodeData(raw); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}

	merged, err := json.Marshal(mergeDoc(existing, update, deleteFields))
	if err != nil {
		return fmt.Errorf("set %s: encode: %w", path, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO documents (path, collection, collection_id, id, data)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		path, collection, collectionID(collection), id, string(merged))
	if err != nil {
		return fmt.Errorf("set %s: %w", path, mapPgError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set %s: commit: %w", path, mapPgError(err))
	}

	s.publish(ctx, collection)
	return nil
}

func (s *PostgresStore) DeleteDoc(ctx context.Context, path string) error {
	collection, _, err := splitPath(path)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM documents WHERE path = $1", path); err != nil {
		return fmt.Errorf("delete %s: %w", path, mapPgError(err))
	}
	s.publish(ctx, collection)
	return nil
}

// publish announces a committed write. A failed publish only delays
// listeners until the next poll, so it is logged rather than returned.
func (s *PostgresStore) publish(ctx context.Context, collection string) {
	if err := s.notifier.Publish(ctx, collection); err != nil {
		s.logger.Warn("publish change failed", "collection", collection, "error", err)
	}
}

func (s *PostgresStore) Listen(ctx context.Context, q core.Query, onSnapshot func([]core.Row), onError func(error)) (core.Unsubscribe, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("listen: empty collection")
	}
	if _, _, err := buildQuery(q); err != nil {
		return nil, fmt.Errorf("listen %s: %w", q.Collection, err)
	}
	return s.listeners.listen(ctx, q, s.Query, onSnapshot, onError), nil
}

// Query runs q once.
func (s *PostgresStore) Query(ctx context.Context, q core.Query) ([]core.Row, error) {
	sql, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, mapPgError(err))
	}
	defer rows.Close()

	var out []core.Row
	for rows.Next() {
		var (
			path, id string
			raw      []byte
		)
		if err := rows.Scan(&path, &id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, core.Row{Ref: core.RowRef{Path: path, ID: id}, Fields: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, mapPgError(err))
	}
	return out, nil
}

// Close stops listeners and the notifier. The pool is owned by the caller.
func (s *PostgresStore) Close() error {
	s.listeners.close()
	return s.notifier.Close()
}

func decodeData(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}

// mapPgError translates Postgres privilege errors to core.ErrPermissionDenied.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %s", core.ErrPermissionDenied, pgErr.Message)
	}
	return err
}
