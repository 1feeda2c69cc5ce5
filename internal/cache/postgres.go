package cache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"

	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database is the subset of pgxpool.Pool used by PostgresStore.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore keeps the cache in a PostgreSQL table, letting several hosts share
// the avoided requests. Each statement is its own transaction.
type PostgresStore struct {
	db  Database
	log *slog.Logger
}

// NewDatabase connects a pgx pool to the given PostgreSQL server.
func NewDatabase(ctx context.Context, host, port, user, password, name string) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, net.JoinHostPort(host, port), name)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresStore creates a new instance of PostgresStore with the provided Database.
func NewPostgresStore(db Database, log *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

// CreateSchema creates the cache table if it does not exist.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS geocode_cache (
			place_key TEXT PRIMARY KEY,
			latitude  DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 1,
			h3_cell   BIGINT NOT NULL DEFAULT 0
		);
	`

	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}

	return nil
}

// Lookup retrieves the cached coordinates of a normalized place.
// It returns ErrNotFound if the key has never been stored.
func (s *PostgresStore) Lookup(ctx context.Context, key string) (*models.CacheEntry, error) {
	query := `
		SELECT place_key, latitude, longitude, hit_count, h3_cell
		FROM geocode_cache
		WHERE place_key = $1;
	`

	var entry models.CacheEntry
	err := s.db.QueryRow(ctx, query, key).
		Scan(&entry.Key, &entry.Latitude, &entry.Longitude, &entry.HitCount, &entry.Cell)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up cache entry: %w", err)
	}

	return &entry, nil
}

// RecordHit increments the hit count of a cached place.
func (s *PostgresStore) RecordHit(ctx context.Context, key string) error {
	query := `
		UPDATE geocode_cache
		SET hit_count = hit_count + 1
		WHERE place_key = $1;
	`

	tag, err := s.db.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to record cache hit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	return nil
}

// Upsert stores the coordinates of a place, keeping the hit count of an existing entry.
func (s *PostgresStore) Upsert(ctx context.Context, key string, lat, lng float64) error {
	query := `
		INSERT INTO geocode_cache (place_key, latitude, longitude, hit_count, h3_cell)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (place_key) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			h3_cell = EXCLUDED.h3_cell;
	`

	if _, err := s.db.Exec(ctx, query, key, lat, lng, cellOf(lat, lng)); err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	s.log.DebugContext(ctx, "Cached geocode", "key", key, "lat", lat, "lng", lng)

	return nil
}

// Size returns the number of cached places.
func (s *PostgresStore) Size(ctx context.Context) (int, error) {
	var size int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM geocode_cache;`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}

	return size, nil
}

// All iterates over every cached place. Each call runs a fresh query.
func (s *PostgresStore) All(ctx context.Context) iter.Seq2[models.CacheEntry, error] {
	return func(yield func(models.CacheEntry, error) bool) {
		rows, err := s.db.Query(ctx, `
			SELECT place_key, latitude, longitude, hit_count, h3_cell
			FROM geocode_cache;
		`)
		if err != nil {
			yield(models.CacheEntry{}, fmt.Errorf("failed to query cache entries: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var entry models.CacheEntry
			if err = rows.Scan(&entry.Key, &entry.Latitude, &entry.Longitude, &entry.HitCount, &entry.Cell); err != nil {
				yield(models.CacheEntry{}, fmt.Errorf("failed to scan cache entry: %w", err))
				return
			}
			if !yield(entry, nil) {
				return
			}
		}

		if err = rows.Err(); err != nil {
			yield(models.CacheEntry{}, fmt.Errorf("failed to read row: %w", err))
		}
	}
}

// Ping checks the connection to PostgreSQL.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
