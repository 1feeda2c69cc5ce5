package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/cache"
	"github.com/UnknownOlympus/geotweet/internal/geo"
	"github.com/UnknownOlympus/geotweet/internal/geocoding"
	"github.com/UnknownOlympus/geotweet/internal/metrics"
	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/UnknownOlympus/geotweet/internal/quota"
)

// ErrMalformedInlineCoordinate is returned when a "device: lat,lng" profile location does
// not hold a usable coordinate pair. Resolve swallows it and treats the string as an address.
var ErrMalformedInlineCoordinate = errors.New("malformed inline coordinate")

// counters are the per-branch diagnostic counts of a Geocoder.
type counters struct {
	hasGeocode          int
	hasLocation         int
	nowhere             int
	inlineParseFailures int
	cacheHits           int
	cacheMisses         int
}

// Geocoder resolves records and places through a throttled, quota-aware upstream and a
// persistent address cache. All public methods share one lock, so throttle wait, dispatch
// and cache mutation happen atomically with respect to other callers.
type Geocoder struct {
	mu sync.Mutex

	log          *slog.Logger       // Logger for logging service activities
	store        cache.Store        // Address cache
	provider     geocoding.Provider // Geocoding provider for external geocoding services
	providerName string             // Name of the provider for metrics labeling
	guard        *quota.Guard       // Throttle and quota bookkeeping of the upstream
	metrics      *metrics.Metrics   // Metrics for tracking service performance

	counters counters
}

// NewGeocoder creates a new Geocoder.
// It takes a logger, the address cache, a geocoding provider with its name for metrics,
// the guard every upstream request goes through and the metrics to report to.
func NewGeocoder(
	log *slog.Logger,
	store cache.Store,
	provider geocoding.Provider,
	providerName string,
	guard *quota.Guard,
	metrics *metrics.Metrics,
) *Geocoder {
	return &Geocoder{
		log:          log,
		store:        store,
		provider:     provider,
		providerName: providerName,
		guard:        guard,
		metrics:      metrics,
	}
}

// Forward returns the coordinates of address.
func (g *Geocoder) Forward(ctx context.Context, address string) (models.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	place, err := g.geocode(ctx, address)
	if err != nil {
		return models.Coordinates{}, err
	}

	return place.Location, nil
}

// Reverse returns the address of a point.
func (g *Geocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	place, err := g.reverse(ctx, lat, lng)
	if err != nil {
		return "", err
	}

	return place.Address, nil
}

// RegionBox returns the center of address and the viewport the upstream associates with it.
// The size of the box depends on whether address is a street, a town or a country.
func (g *Geocoder) RegionBox(ctx context.Context, address string) (models.Region, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.regionBox(ctx, address)
}

// RegionCircle returns the center of address and a radius of half the diagonal of its viewport.
func (g *Geocoder) RegionCircle(ctx context.Context, address string) (geo.Circle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, err := g.regionBox(ctx, address)
	if err != nil {
		return geo.Circle{}, err
	}

	return geo.CircleFromViewport(region.Center, region.Viewport), nil
}

// Resolve locates a record. The first applicable source wins:
//  1. coordinates embedded in the record, reverse geocoded to an address;
//  2. a "device: lat,lng" or "device: lat lng" profile location, reverse geocoded;
//  3. any other profile location, looked up in the cache or forward geocoded and cached;
//  4. nothing, which yields nil coordinates.
//
// A profile location that looks like inline coordinates but does not parse falls through to 3.
//
// Unlike a plain "any non-empty location is geocoded" rule, a location with no letters or
// digits (such as "   " or "!!!") resolves to nowhere: it normalizes to an empty cache key,
// and geocoding it would make every such string share one cache entry.
func (g *Geocoder) Resolve(ctx context.Context, rec models.Record) (models.ResolvedLocation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec.Coordinates != nil {
		coords := *rec.Coordinates
		place, err := g.reverse(ctx, coords.Latitude, coords.Longitude)
		if err != nil {
			return models.ResolvedLocation{}, err
		}
		g.counters.hasGeocode++
		g.resolved(models.SourceEmbedded)

		return models.ResolvedLocation{Place: place.Address, Coordinates: &coords, Source: models.SourceEmbedded}, nil
	}

	location := rec.UserLocation
	if strings.Contains(location, ":") {
		coords, err := parseInlineCoordinates(location)
		if err == nil {
			place, err := g.reverse(ctx, coords.Latitude, coords.Longitude)
			if err != nil {
				return models.ResolvedLocation{}, err
			}
			g.counters.hasLocation++
			g.resolved(models.SourceInline)

			return models.ResolvedLocation{Place: place.Address, Coordinates: &coords, Source: models.SourceInline}, nil
		}

		g.counters.inlineParseFailures++
		g.metrics.InlineParseFailures.Inc()
		g.log.DebugContext(ctx, "Profile location is not an inline coordinate", "location", location, "error", err)
	}

	key := cache.Normalize(location)
	if key == "" {
		g.counters.nowhere++
		g.resolved(models.SourceNowhere)

		return models.ResolvedLocation{Place: location, Source: models.SourceNowhere}, nil
	}

	coords, cached, err := g.lookupOrGeocode(ctx, key, location)
	if err != nil {
		return models.ResolvedLocation{}, err
	}
	g.counters.hasLocation++
	g.resolved(models.SourceProfile)

	return models.ResolvedLocation{
		Place:       location,
		Coordinates: &coords,
		Source:      models.SourceProfile,
		Cached:      cached,
	}, nil
}

// lookupOrGeocode returns the cached coordinates of key, recording the hit, or forward
// geocodes location and caches the result.
func (g *Geocoder) lookupOrGeocode(ctx context.Context, key, location string) (models.Coordinates, bool, error) {
	entry, err := g.store.Lookup(ctx, key)
	switch {
	case err == nil:
		if err = g.store.RecordHit(ctx, key); err != nil {
			return models.Coordinates{}, false, fmt.Errorf("failed to record cache hit for %q: %w", key, err)
		}
		g.counters.cacheHits++
		g.metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
		g.log.DebugContext(ctx, "Cache hit", "key", key, "hits", entry.HitCount+1)

		return models.Coordinates{Latitude: entry.Latitude, Longitude: entry.Longitude}, true, nil
	case errors.Is(err, cache.ErrNotFound):
		g.counters.cacheMisses++
		g.metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
	default:
		return models.Coordinates{}, false, fmt.Errorf("failed to look up %q in cache: %w", key, err)
	}

	place, err := g.geocode(ctx, location)
	if err != nil {
		return models.Coordinates{}, false, err
	}

	if err = g.store.Upsert(ctx, key, place.Location.Latitude, place.Location.Longitude); err != nil {
		return models.Coordinates{}, false, fmt.Errorf("failed to cache %q: %w", key, err)
	}

	return place.Location, false, nil
}

func (g *Geocoder) regionBox(ctx context.Context, address string) (models.Region, error) {
	place, err := g.geocode(ctx, address)
	if err != nil {
		return models.Region{}, err
	}

	return models.Region{Center: place.Location, Viewport: place.Viewport}, nil
}

func (g *Geocoder) geocode(ctx context.Context, address string) (*models.Place, error) {
	return g.dispatch(ctx, func(ctx context.Context) (*models.Place, error) {
		return g.provider.Geocode(ctx, address)
	})
}

func (g *Geocoder) reverse(ctx context.Context, lat, lng float64) (*models.Place, error) {
	return g.dispatch(ctx, func(ctx context.Context) (*models.Place, error) {
		return g.provider.ReverseGeocode(ctx, lat, lng)
	})
}

// dispatch sends one logical request through the guard, timing every attempt.
// Errors come back from the guard unchanged.
func (g *Geocoder) dispatch(
	ctx context.Context,
	request func(context.Context) (*models.Place, error),
) (*models.Place, error) {
	var place *models.Place

	err := g.guard.Do(ctx, func(ctx context.Context) error {
		startTime := time.Now()
		result, err := request(ctx)
		duration := time.Since(startTime).Seconds()
		g.metrics.RequestSeconds.WithLabelValues(g.providerName).Observe(duration)

		switch {
		case err == nil:
			g.metrics.UpstreamRequests.WithLabelValues(metrics.OutcomeOK).Inc()
		case errors.Is(err, geocoding.ErrRateLimited):
			g.metrics.UpstreamRequests.WithLabelValues(metrics.OutcomeRateLimited).Inc()
		default:
			g.metrics.UpstreamRequests.WithLabelValues(metrics.OutcomeError).Inc()
		}

		place = result
		return err
	})

	snapshot := g.guard.Snapshot()
	g.metrics.ThrottleInterval.Set(snapshot.Interval.Seconds())
	if snapshot.Exceeded {
		g.metrics.QuotaExceeded.Set(1)
	}

	if err != nil {
		g.log.DebugContext(ctx, "Upstream request failed", "provider", g.providerName, "error", err)
		return nil, err
	}

	return place, nil
}

func (g *Geocoder) resolved(source models.Source) {
	g.metrics.Resolutions.WithLabelValues(string(source)).Inc()
}

// parseInlineCoordinates reads the "lat,lng" or "lat lng" pair after the first colon of a
// profile location such as "iPhone: 40.7,-74.0".
func parseInlineCoordinates(location string) (models.Coordinates, error) {
	_, pair, found := strings.Cut(location, ":")
	if !found {
		return models.Coordinates{}, fmt.Errorf("%w: no colon in %q", ErrMalformedInlineCoordinate, location)
	}
	pair = strings.TrimSpace(pair)

	latText, lngText, found := strings.Cut(pair, ",")
	if !found {
		latText, lngText, found = strings.Cut(pair, " ")
	}
	if !found {
		return models.Coordinates{}, fmt.Errorf("%w: no coordinate pair in %q", ErrMalformedInlineCoordinate, location)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrMalformedInlineCoordinate, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngText), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrMalformedInlineCoordinate, err)
	}

	const maxLat, maxLng = 90, 180
	if math.IsNaN(lat) || math.IsNaN(lng) || math.Abs(lat) > maxLat || math.Abs(lng) > maxLng {
		return models.Coordinates{}, fmt.Errorf("%w: %v,%v out of range", ErrMalformedInlineCoordinate, lat, lng)
	}

	return models.Coordinates{Latitude: lat, Longitude: lng}, nil
}
