package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// Driver selects the backing store of the cache.
type Driver string

const (
	// DriverDuckDB keeps the cache in a local DuckDB file.
	DriverDuckDB Driver = "duckdb"
	// DriverPostgres keeps the cache in a PostgreSQL table.
	DriverPostgres Driver = "postgres"
)

// Options holds what is needed to open any of the supported stores.
type Options struct {
	Driver   Driver       // Driver to use, duckdb when empty
	Path     string       // Path of the DuckDB file
	Host     string       // PostgreSQL host
	Port     string       // PostgreSQL port
	User     string       // PostgreSQL user
	Password string       // PostgreSQL password
	Name     string       // PostgreSQL database name
	Logger   *slog.Logger // Logger for the store
}

// Open opens the store selected by opts.Driver. The store is created if absent and
// stays open until Close.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverDuckDB, "":
		path := opts.Path
		if path == "" {
			path = DefaultPath
		}
		store, err := OpenDuckStore(ctx, path, opts.Logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		pool, err := NewDatabase(ctx, opts.Host, opts.Port, opts.User, opts.Password, opts.Name)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool, opts.Logger)
		if err = store.CreateSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", opts.Driver)
	}
}
