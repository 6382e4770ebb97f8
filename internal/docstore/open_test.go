package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"memory", Options{Driver: DriverMemory}, false},
		{"postgres without pool", Options{Driver: DriverPostgres}, true},
		{"default driver without pool", Options{}, true},
		{"unknown driver", Options{Driver: "sqlite"}, true},
		{"bad redis url", Options{Driver: DriverMemory, RedisURL: "not a url"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(context.Background(), tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				if err := store.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}
		})
	}
}

func TestLocalNotifier(t *testing.T) {
	n := NewLocalNotifier()
	ctx := context.Background()

	events, stop := n.Subscribe(ctx)
	n.Publish(ctx, "orders")
	if got := <-events; got != "orders" {
		t.Errorf("event = %q, want orders", got)
	}

	stop()
	stop()
	n.Publish(ctx, "orders")
	select {
	case got := <-events:
		t.Errorf("event after stop = %q, want none", got)
	default:
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMapPgError(t *testing.T) {
	denied := fmt.Errorf("set orders/a: %w", &pgconn.PgError{Code: "42501", Message: "permission denied for table documents"})
	if err := mapPgError(denied); !errors.Is(err, core.ErrPermissionDenied) {
		t.Errorf("mapPgError(42501) = %v, want ErrPermissionDenied", err)
	}

	other := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	if err := mapPgError(other); errors.Is(err, core.ErrPermissionDenied) || err != error(other) {
		t.Errorf("mapPgError(23505) = %v, want unchanged", err)
	}
}

func TestDecodeData(t *testing.T) {
	data, err := decodeData(nil)
	if err != nil || len(data) != 0 {
		t.Errorf("decodeData(nil) = %v, %v, want empty map", data, err)
	}
	data, err = decodeData([]byte(`{"price":3,"tags":["a"]}`))
	if err != nil {
		t.Fatalf("decodeData() error = %v", err)
	}
	if data["price"] != 3.0 {
		t.Errorf("price = %v, want 3", data["price"])
	}
	if _, err := decodeData([]byte(`{`)); err == nil {
		t.Error("decodeData(invalid) error = nil, want error")
	}
}
