package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/quota"
)

// Upper bounds of the first two hit-count buckets; the third bucket holds everything above.
const (
	lowHits    = 5
	mediumHits = 10
)

// Stats is a snapshot of the diagnostic counters of a Geocoder and of its cache.
type Stats struct {
	Quota quota.Snapshot

	HasGeocode          int
	HasLocation         int
	Nowhere             int
	InlineParseFailures int
	CacheHits           int
	CacheMisses         int

	CacheSize     int
	HitBuckets    [3]int // entries with ≤5, 6–10 and >10 hits
	MaxPlace      string
	MaxPlaceHits  int
	DistinctCells int
}

// Stats collects the counters and walks the cache once.
func (g *Geocoder) Stats(ctx context.Context) (Stats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := Stats{
		Quota:               g.guard.Snapshot(),
		HasGeocode:          g.counters.hasGeocode,
		HasLocation:         g.counters.hasLocation,
		Nowhere:             g.counters.nowhere,
		InlineParseFailures: g.counters.inlineParseFailures,
		CacheHits:           g.counters.cacheHits,
		CacheMisses:         g.counters.cacheMisses,
	}

	cells := make(map[int64]struct{})
	for entry, err := range g.store.All(ctx) {
		if err != nil {
			return Stats{}, fmt.Errorf("failed to walk cache: %w", err)
		}

		stats.CacheSize++
		switch {
		case entry.HitCount <= lowHits:
			stats.HitBuckets[0]++
		case entry.HitCount <= mediumHits:
			stats.HitBuckets[1]++
		default:
			stats.HitBuckets[2]++
		}
		if entry.HitCount > stats.MaxPlaceHits {
			stats.MaxPlace, stats.MaxPlaceHits = entry.Key, entry.HitCount
		}
		if entry.Cell != 0 {
			cells[entry.Cell] = struct{}{}
		}
	}
	stats.DistinctCells = len(cells)

	return stats, nil
}

// String renders the human-readable summary.
func (s Stats) String() string {
	var b strings.Builder

	exceeded := "no"
	if s.Quota.Exceeded {
		exceeded = s.Quota.ExceededAt.Format(time.RFC3339)
	}

	b.WriteString("\n--STATS--\n")
	fmt.Fprintf(&b, "geo requests:       %d\n", s.Quota.RequestsSent)
	fmt.Fprintf(&b, "geo requests ok:    %d\n", s.Quota.RequestsSucceeded)
	fmt.Fprintf(&b, "geo quota exceeded: %s\n", exceeded)
	fmt.Fprintf(&b, "geo throttle:       %s\n", s.Quota.Interval)
	fmt.Fprintf(&b, "has none:           %d\n", s.Nowhere)
	fmt.Fprintf(&b, "has geocode:        %d\n", s.HasGeocode)
	fmt.Fprintf(&b, "has location:       %d\n", s.HasLocation)
	fmt.Fprintf(&b, "inline parse fails: %d\n", s.InlineParseFailures)

	b.WriteString("\n--CACHE--\n")
	fmt.Fprintf(&b, "size:               %d\n", s.CacheSize)
	fmt.Fprintf(&b, "hits/misses:        %d/%d\n", s.CacheHits, s.CacheMisses)
	fmt.Fprintf(&b, "counts:             %v\n", s.HitBuckets)
	fmt.Fprintf(&b, "max place:          (%q, %d)\n", s.MaxPlace, s.MaxPlaceHits)
	fmt.Fprintf(&b, "h3 cells:           %d\n", s.DistinctCells)

	return b.String()
}
