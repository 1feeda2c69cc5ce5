package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/UnknownOlympus/geotweet/internal/models"
)

// DefaultPath is the cache file used when none is configured.
const DefaultPath = "geocode.cache.duckdb"

const duckSchema = `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		place_key VARCHAR PRIMARY KEY,
		latitude  DOUBLE  NOT NULL,
		longitude DOUBLE  NOT NULL,
		hit_count INTEGER NOT NULL DEFAULT 1,
		h3_cell   BIGINT  NOT NULL DEFAULT 0
	);
`

// DuckStore keeps the cache in an embedded DuckDB file. Statements run in autocommit
// mode, so each mutation is committed to the file before the call returns.
type DuckStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewDuckStore wraps an open DuckDB handle. CreateSchema must be called before use.
func NewDuckStore(db *sql.DB, log *slog.Logger) *DuckStore {
	return &DuckStore{db: db, log: log}
}

// OpenDuckStore opens (creating if absent) the DuckDB file at path and prepares the schema.
// An empty path opens an in-memory database.
func OpenDuckStore(ctx context.Context, path string, log *slog.Logger) (*DuckStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb cache %q: %w", path, err)
	}

	store := NewDuckStore(db, log)
	if err = store.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.DebugContext(ctx, "Opened duckdb geocode cache", "path", path)

	return store, nil
}

// CreateSchema creates the cache table if it does not exist.
func (s *DuckStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, duckSchema); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}

	return nil
}

// Lookup returns the entry stored under key, or ErrNotFound.
func (s *DuckStore) Lookup(ctx context.Context, key string) (*models.CacheEntry, error) {
	query := `
		SELECT place_key, latitude, longitude, hit_count, h3_cell
		FROM geocode_cache
		WHERE place_key = ?;
	`

	var entry models.CacheEntry
	err := s.db.QueryRowContext(ctx, query, key).
		Scan(&entry.Key, &entry.Latitude, &entry.Longitude, &entry.HitCount, &entry.Cell)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up cache entry: %w", err)
	}

	return &entry, nil
}

// RecordHit increments the hit count of key, or returns ErrNotFound.
func (s *DuckStore) RecordHit(ctx context.Context, key string) error {
	query := `
		UPDATE geocode_cache
		SET hit_count = hit_count + 1
		WHERE place_key = ?;
	`

	res, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to record cache hit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record cache hit: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	return nil
}

// Upsert stores the coordinates of key, keeping the hit count of an existing entry.
func (s *DuckStore) Upsert(ctx context.Context, key string, lat, lng float64) error {
	query := `
		INSERT INTO geocode_cache (place_key, latitude, longitude, hit_count, h3_cell)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (place_key) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			h3_cell = excluded.h3_cell;
	`

	if _, err := s.db.ExecContext(ctx, query, key, lat, lng, cellOf(lat, lng)); err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	s.log.DebugContext(ctx, "Cached geocode", "key", key, "lat", lat, "lng", lng)

	return nil
}

// Size returns the number of cached places.
func (s *DuckStore) Size(ctx context.Context) (int, error) {
	var size int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM geocode_cache;`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}

	return size, nil
}

// All iterates over every cached place. Each call runs a fresh query.
func (s *DuckStore) All(ctx context.Context) iter.Seq2[models.CacheEntry, error] {
	return func(yield func(models.CacheEntry, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
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

// Ping checks that the DuckDB handle is usable.
func (s *DuckStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the DuckDB handle.
func (s *DuckStore) Close() error {
	return s.db.Close()
}
