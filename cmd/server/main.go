package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/rowgrid/internal/backend"
	"github.com/JonMunkholm/rowgrid/internal/config"
	"github.com/JonMunkholm/rowgrid/internal/core"
	_ "github.com/JonMunkholm/rowgrid/internal/core/fields" // Register all field types
	"github.com/JonMunkholm/rowgrid/internal/docstore"
	"github.com/JonMunkholm/rowgrid/internal/logging"
	"github.com/JonMunkholm/rowgrid/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"docstore_driver", cfg.Database.Driver,
		"redis_enabled", cfg.Redis.URL != "",
		"backend_enabled", cfg.Backend.URL != "",
		"write_max_concurrent", cfg.Writes.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.Database.Driver == docstore.DriverPostgres {
		pool, err = connectPostgres(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	store, err := docstore.Open(ctx, docstore.Options{
		Driver:       cfg.Database.Driver,
		Pool:         pool,
		RedisURL:     cfg.Redis.URL,
		RedisChannel: cfg.Redis.Channel,
		PollInterval: cfg.Database.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}

	// A nil backend disables auditing.
	var functions core.Backend
	if cfg.Backend.URL != "" {
		client, err := backend.New(backend.Options{
			URL:     cfg.Backend.URL,
			Token:   cfg.Backend.Token,
			Timeout: cfg.Backend.Timeout,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create backend client", "error", err)
			os.Exit(1)
		}
		functions = client
	}

	service := core.NewService(store, functions, core.SessionOptions{
		PageSize: cfg.Table.PageSize,
		Pager: core.PagerOptions{
			Threshold: cfg.Table.ScrollThreshold,
			Throttle:  cfg.Table.PageThrottle,
			AfterFunc: time.AfterFunc,
		},
		Audit: core.AuditOptions{
			MinVersion: cfg.Backend.MinVersion,
			Timeout:    cfg.Backend.Timeout,
		},
		Logger: logger,
	})

	logger.Info("field types registered", "count", core.FieldCount())

	writes := core.NewWriteLimiter(cfg.Writes.MaxConcurrent, cfg.Writes.MaxWaitTime)
	server := web.NewServer(service, cfg, writes)

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		gracefulShutdown(shutdownCtx, logger, server, service, store)
		close(shutdownDone)
	}()

	if err := serve(server.Start, shutdownDone); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type closer interface {
	Close() error
}

// gracefulShutdown stops accepting requests and waits for in-flight writes,
// then closes sessions (joining pending audit calls) and the store.
func gracefulShutdown(ctx context.Context, logger *slog.Logger, server shutdowner, service, store closer) {
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("writes did not complete in time", "error", err)
	}
	if err := service.Close(); err != nil {
		logger.Error("close sessions", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("close document store", "error", err)
	}
}

// serve runs start and, once it returns cleanly, blocks until the shutdown
// sequence has finished.
func serve(start func() error, shutdownDone <-chan struct{}) error {
	if err := start(); err != nil {
		return err
	}
	<-shutdownDone
	return nil
}

// connectPostgres builds the pool from the database config and verifies the
// connection.
func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
