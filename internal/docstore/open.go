package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a store.
type Options struct {
	Driver string
	// Pool is required for the postgres driver.
	Pool *pgxpool.Pool
	// RedisURL enables cross-process change notification.
	RedisURL     string
	RedisChannel string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Open creates the store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var notifier Notifier
	if opts.RedisURL != "" {
		rn, err := NewRedisNotifier(ctx, opts.RedisURL, opts.RedisChannel, logger)
		if err != nil {
			return nil, err
		}
		notifier = rn
	} else {
		notifier = NewLocalNotifier()
	}

	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(notifier, logger), nil
	case DriverPostgres, "":
		if opts.Pool == nil {
			notifier.Close()
			return nil, fmt.Errorf("postgres driver requires a connection pool")
		}
		store := NewPostgresStore(opts.Pool, notifier, opts.PollInterval, logger)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		notifier.Close()
		return nil, fmt.Errorf("unknown document store driver %q", opts.Driver)
	}
}
