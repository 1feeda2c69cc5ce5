package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/geotweet/internal/models"
	"googlemaps.github.io/maps"
)

// googleStatusOverQueryLimit is sent both for bursts and for a spent daily quota.
const googleStatusOverQueryLimit = "OVER_QUERY_LIMIT"

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

// GoogleAPIClient is the part of *maps.Client used by GoogleProvider.
type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// ErrGoogleEmptyResponse is returned when the Google Maps API responds with an empty result.
var ErrGoogleEmptyResponse = fmt.Errorf("get empty response from Google Maps API: %w", ErrEmptyResponse)

// NewGoogleProvider wraps a Google Maps client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode takes a context and an address string as input, and returns the place Google
// Maps resolves it to: formatted address, location and viewport.
// OVER_QUERY_LIMIT answers are reported as ErrRateLimited.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (*models.Place, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	req := maps.GeocodingRequest{Address: address}
	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, gp.wrapError(opGeocode, address, err)
	}

	return gp.firstPlace(opGeocode, address, geocodeResponse)
}

// ReverseGeocode returns the address Google Maps associates with a point.
func (gp *GoogleProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*models.Place, error) {
	gp.log.DebugContext(ctx, "Reverse geocoding using Google Maps", "lat", lat, "lng", lng)

	req := maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: lat, Lng: lng}}
	geocodeResponse, err := gp.client.ReverseGeocode(ctx, &req)
	if err != nil {
		return nil, gp.wrapError(opReverse, latLngQuery(lat, lng), err)
	}

	return gp.firstPlace(opReverse, latLngQuery(lat, lng), geocodeResponse)
}

func (gp *GoogleProvider) firstPlace(op, query string, results []maps.GeocodingResult) (*models.Place, error) {
	if len(results) == 0 {
		return nil, &UpstreamError{Provider: string(ProviderTypeGoogle), Op: op, Query: query, Err: ErrGoogleEmptyResponse}
	}

	result := results[0]
	geometry := result.Geometry

	return &models.Place{
		Address: result.FormattedAddress,
		Location: models.Coordinates{
			Latitude:  geometry.Location.Lat,
			Longitude: geometry.Location.Lng,
		},
		Viewport: models.Viewport{
			SouthWest: models.Coordinates{Latitude: geometry.Viewport.SouthWest.Lat, Longitude: geometry.Viewport.SouthWest.Lng},
			NorthEast: models.Coordinates{Latitude: geometry.Viewport.NorthEast.Lat, Longitude: geometry.Viewport.NorthEast.Lng},
		},
	}, nil
}

// wrapError turns a maps client error into an UpstreamError. The client reports
// non-OK statuses as "maps: STATUS - message" and ZERO_RESULTS as an empty slice.
func (gp *GoogleProvider) wrapError(op, query string, err error) error {
	status := googleStatus(err)
	cause := err

	if status == googleStatusOverQueryLimit {
		cause = fmt.Errorf("%w: %w", ErrRateLimited, err)
	}

	return &UpstreamError{Provider: string(ProviderTypeGoogle), Op: op, Query: query, Status: status, Err: cause}
}

func googleStatus(err error) string {
	msg, found := strings.CutPrefix(err.Error(), "maps: ")
	if !found {
		return ""
	}
	status, _, _ := strings.Cut(msg, " - ")
	if strings.ContainsFunc(status, func(r rune) bool { return (r < 'A' || r > 'Z') && r != '_' }) {
		return ""
	}

	return status
}
