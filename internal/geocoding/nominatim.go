package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/models"
)

const (
	// NominatimBaseURL is the public Nominatim endpoint.
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	// nominatimUserAgent MUST include valid contact info per Nominatim usage policy:
	// https://operations.osmfoundation.org/policies/nominatim/
	nominatimUserAgent = "GeoTweet/1.0 (https://github.com/UnknownOlympus/geotweet)"
	// DefaultRequestTimeout bounds a single upstream HTTP exchange.
	DefaultRequestTimeout = 3 * time.Second
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use).
type NominatimProvider struct {
	client  HTTPClient   // HTTP client for making requests
	baseURL string       // Base URL for the Nominatim API
	log     *slog.Logger // Logger for logging operations
	// userAgent is required by Nominatim usage policy
	userAgent string
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// nominatimPlace is a single place in a Nominatim answer. Search returns a list of them,
// reverse returns one object or an error object.
type nominatimPlace struct {
	Lat         string   `json:"lat"`          // Latitude as string
	Lon         string   `json:"lon"`          // Longitude as string
	DisplayName string   `json:"display_name"` // Full formatted address
	BoundingBox []string `json:"boundingbox"`  // [south, north, west, east] as strings
	Error       string   `json:"error"`        // Set by reverse when nothing is found
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = fmt.Errorf("nominatim API returned empty response: %w", ErrEmptyResponse)
	ErrNominatimInvalidCoords = fmt.Errorf("nominatim API returned invalid coordinates: %w", ErrMalformedResponse)
)

// NewNominatimProvider creates a new Nominatim geocoding provider.
// Uses the public Nominatim API endpoint by default.
func NewNominatimProvider(log *slog.Logger, timeout time.Duration) *NominatimProvider {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout}, NominatimBaseURL, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client
// and endpoint. Useful for testing and for self-hosted instances.
func NewNominatimProviderWithClient(client HTTPClient, baseURL string, log *slog.Logger) *NominatimProvider {
	if baseURL == "" {
		baseURL = NominatimBaseURL
	}

	return &NominatimProvider{
		client:    client,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		log:       log,
		userAgent: nominatimUserAgent,
	}
}

// Geocode converts an address to a place using the Nominatim API.
// It respects Nominatim's usage policy by including a User-Agent header.
// Every call is exactly one HTTP request; pacing is left to the caller.
func (np *NominatimProvider) Geocode(ctx context.Context, address string) (*models.Place, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address)

	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1") // Only need the top result

	body, err := np.get(ctx, "/search", opGeocode, address, query)
	if err != nil {
		return nil, err
	}

	var results []nominatimPlace
	if err = json.Unmarshal(body, &results); err != nil {
		return nil, np.error(opGeocode, address, "",
			fmt.Errorf("failed to decode nominatim response: %w: %w", ErrMalformedResponse, err))
	}

	if len(results) == 0 {
		return nil, np.error(opGeocode, address, "", ErrNominatimEmptyResponse)
	}

	np.log.DebugContext(ctx, "Nominatim found result", "lat", results[0].Lat, "lon", results[0].Lon)

	return np.toPlace(opGeocode, address, results[0])
}

// ReverseGeocode returns the address Nominatim associates with a point.
func (np *NominatimProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*models.Place, error) {
	np.log.DebugContext(ctx, "Reverse geocoding using Nominatim", "lat", lat, "lng", lng)

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("format", "json")

	body, err := np.get(ctx, "/reverse", opReverse, latLngQuery(lat, lng), query)
	if err != nil {
		return nil, err
	}

	var result nominatimPlace
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, np.error(opReverse, latLngQuery(lat, lng), "",
			fmt.Errorf("failed to decode nominatim response: %w: %w", ErrMalformedResponse, err))
	}
	if result.Error != "" {
		return nil, np.error(opReverse, latLngQuery(lat, lng), "", fmt.Errorf("%w: %s", ErrNominatimEmptyResponse, result.Error))
	}

	return np.toPlace(opReverse, latLngQuery(lat, lng), result)
}

// get sends a GET request to path and returns the body of a 200 answer.
func (np *NominatimProvider) get(ctx context.Context, path, op, subject string, query url.Values) ([]byte, error) {
	reqURL := np.baseURL + path + "?" + query.Encode()

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set required headers per Nominatim usage policy
	req.Header.Set("User-Agent", np.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, np.error(op, subject, "", fmt.Errorf("failed to execute geocoding request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, np.error(op, subject, strconv.Itoa(resp.StatusCode), fmt.Errorf("failed to read response body: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		np.log.DebugContext(ctx, "Nominatim raw response", "body", string(body))
		return body, nil
	case http.StatusTooManyRequests:
		return nil, np.error(op, subject, strconv.Itoa(resp.StatusCode), ErrRateLimited)
	default:
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, np.error(op, subject, strconv.Itoa(resp.StatusCode),
			fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body)))
	}
}

func (np *NominatimProvider) toPlace(op, subject string, result nominatimPlace) (*models.Place, error) {
	lat, err := strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return nil, np.error(op, subject, "", fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, result.Lat))
	}
	lon, err := strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return nil, np.error(op, subject, "", fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, result.Lon))
	}

	location := models.Coordinates{Latitude: lat, Longitude: lon}
	place := &models.Place{
		Address:  result.DisplayName,
		Location: location,
		Viewport: models.Viewport{SouthWest: location, NorthEast: location},
	}

	const bboxLength = 4
	if len(result.BoundingBox) != bboxLength {
		return place, nil
	}

	bbox := make([]float64, bboxLength)
	for i, raw := range result.BoundingBox {
		if bbox[i], err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, np.error(op, subject, "", fmt.Errorf("%w: invalid bounding box: %v", ErrMalformedResponse, result.BoundingBox))
		}
	}
	place.Viewport = models.Viewport{
		SouthWest: models.Coordinates{Latitude: bbox[0], Longitude: bbox[2]},
		NorthEast: models.Coordinates{Latitude: bbox[1], Longitude: bbox[3]},
	}

	return place, nil
}

func (np *NominatimProvider) error(op, subject, status string, err error) *UpstreamError {
	return &UpstreamError{Provider: string(ProviderTypeNominatim), Op: op, Query: subject, Status: status, Err: err}
}
