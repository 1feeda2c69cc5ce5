package cache_test

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/geotweet/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	defer filet.CleanUp(t)
	ctx := t.Context()

	t.Run("duckdb store", func(t *testing.T) {
		opts := cache.Options{
			Driver: cache.DriverDuckDB,
			Path:   filepath.Join(filet.TmpDir(t, ""), "cache.duckdb"),
			Logger: slog.Default(),
		}

		store, err := cache.Open(ctx, opts)

		require.NoError(t, err)
		defer store.Close()
		_, ok := store.(*cache.DuckStore)
		assert.True(t, ok, "expected store to be *DuckStore")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		store, err := cache.Open(ctx, cache.Options{Driver: "redis", Logger: slog.Default()})

		require.Error(t, err)
		require.Nil(t, store)
		assert.Contains(t, err.Error(), "unsupported cache driver: redis")
	})
}
