package cache

import (
	"context"
	"errors"
	"iter"

	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/uber/h3-go/v4"
)

// CellResolution is the H3 resolution recorded for every cached coordinate pair.
const CellResolution = 7

// ErrNotFound is returned when a key has no cache entry.
var ErrNotFound = errors.New("cache entry not found")

// Store is a durable mapping from a normalized place string to its coordinates and hit count.
// Every mutating call is durable before it returns.
type Store interface {
	// Lookup returns the entry for key or ErrNotFound.
	Lookup(ctx context.Context, key string) (*models.CacheEntry, error)
	// RecordHit increments the hit count of an existing entry or returns ErrNotFound.
	RecordHit(ctx context.Context, key string) error
	// Upsert inserts key with a hit count of 1, or overwrites the coordinates of an
	// existing entry keeping its hit count.
	Upsert(ctx context.Context, key string, lat, lng float64) error
	// Size returns the number of entries.
	Size(ctx context.Context) (int, error)
	// All iterates over every entry. Each call starts a fresh pass.
	All(ctx context.Context) iter.Seq2[models.CacheEntry, error]
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases the backing store.
	Close() error
}

// cellOf returns the H3 cell of a point, or 0 when the point is not a valid coordinate.
func cellOf(lat, lng float64) int64 {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), CellResolution)
	if err != nil {
		return 0
	}

	return int64(cell)
}
