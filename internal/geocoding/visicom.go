package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/models"
	"golang.org/x/time/rate"
)

// VisicomBaseURL -- Visicom API base URL.
const VisicomBaseURL = "https://api.visicom.ua/data-api/5.0/uk/geocode.json"

// DefaultVisicomRateLimit is used when no request rate is configured.
const DefaultVisicomRateLimit = 5

// VisicomProvider implements geocoding using Visicom API.
type VisicomProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Visicom API
	apiKey  string        // API key with geocoding access
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// Common errors for Visicom provider.
var (
	ErrVisicomEmptyResponse = fmt.Errorf("visicom API returned empty response: %w", ErrEmptyResponse)
	ErrVisicomEmptyAddress  = errors.New("visicom provider got empty address")
	ErrVisicomInvalidCoords = fmt.Errorf("visicom API returned invalid coordinates: %w", ErrMalformedResponse)
	ErrVisicomUnathorized   = errors.New("visicom API unathorized (invalid API key)")
)

// Visicom API response (simplified to the single feature returned with limit=1).
type visicomResponse struct {
	Properties struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"properties"`
	BBox     []float64 `json:"bbox"` // [west, south, east, north]
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geo_centroid"`
}

// NewVisicomProvider creates a new Visicom geocoding provider.
func NewVisicomProvider(apiKey string, rateLimit int, timeout time.Duration, log *slog.Logger) *VisicomProvider {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if rateLimit <= 0 {
		rateLimit = DefaultVisicomRateLimit
	}

	return &VisicomProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: VisicomBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
	}
}

// NewVisicomProviderWithClient allows injecting custom HTTP client.
func NewVisicomProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *VisicomProvider {
	return &VisicomProvider{
		client:  client,
		baseURL: VisicomBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts address into a place using Visicom API.
func (vp *VisicomProvider) Geocode(ctx context.Context, address string) (*models.Place, error) {
	vp.log.DebugContext(ctx, "Geocoding using Visicom", "address", address)

	if address == "" {
		return nil, ErrVisicomEmptyAddress
	}

	query := url.Values{}
	query.Set("text", address)

	return vp.request(ctx, opGeocode, address, query)
}

// ReverseGeocode returns the Visicom feature nearest to a point.
func (vp *VisicomProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*models.Place, error) {
	vp.log.DebugContext(ctx, "Reverse geocoding using Visicom", "lat", lat, "lng", lng)

	query := url.Values{}
	query.Set("near", strconv.FormatFloat(lng, 'f', -1, 64)+","+strconv.FormatFloat(lat, 'f', -1, 64))

	return vp.request(ctx, opReverse, latLngQuery(lat, lng), query)
}

func (vp *VisicomProvider) request(ctx context.Context, op, subject string, query url.Values) (*models.Place, error) {
	const coordsListLength = 2

	// Rate limit
	if err := vp.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(vp.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query.Set("limit", "1")
	query.Set("key", vp.apiKey)
	reqURL.RawQuery = query.Encode()

	vp.log.DebugContext(ctx, "Visicom request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		reqURL.String(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Headers
	req.Header.Set("Accept", "application/json")

	resp, err := vp.client.Do(req)
	if err != nil {
		return nil, vp.error(op, subject, "", fmt.Errorf("failed to execute geocoding request: %w", err))
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, vp.error(op, subject, status, ErrVisicomUnathorized)
	case http.StatusTooManyRequests:
		return nil, vp.error(op, subject, status, ErrRateLimited)
	default:
		body, _ := io.ReadAll(resp.Body)
		vp.log.ErrorContext(ctx, "Visicom API error", "status", resp.StatusCode, "body", string(body))
		return nil, vp.error(op, subject, status,
			fmt.Errorf("visicom API returned status %d: %s", resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, vp.error(op, subject, status, fmt.Errorf("failed to read response body: %w", err))
	}

	vp.log.DebugContext(ctx, "Visicom raw response", "body", string(body))

	var result visicomResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, vp.error(op, subject, status,
			fmt.Errorf("failed to decode visicom response: %w: %w", ErrMalformedResponse, err))
	}

	coords := result.Geometry.Coordinates
	if len(coords) == 0 {
		return nil, vp.error(op, subject, status, ErrVisicomEmptyResponse)
	}

	if len(coords) != coordsListLength {
		return nil, vp.error(op, subject, status, ErrVisicomInvalidCoords)
	}

	lon := coords[0]
	lat := coords[1]

	vp.log.InfoContext(ctx, "Visicom found result", "query", subject, "lat", lat, "lon", lon)

	location := models.Coordinates{Latitude: lat, Longitude: lon}
	place := &models.Place{
		Address:  result.Properties.Name,
		Location: location,
		Viewport: models.Viewport{SouthWest: location, NorthEast: location},
	}
	if result.Properties.Address != "" {
		place.Address = result.Properties.Address + ", " + result.Properties.Name
	}

	const bboxLength = 4
	if len(result.BBox) == bboxLength {
		place.Viewport = models.Viewport{
			SouthWest: models.Coordinates{Latitude: result.BBox[1], Longitude: result.BBox[0]},
			NorthEast: models.Coordinates{Latitude: result.BBox[3], Longitude: result.BBox[2]},
		}
	}

	return place, nil
}

func (vp *VisicomProvider) error(op, subject, status string, err error) *UpstreamError {
	return &UpstreamError{Provider: string(ProviderTypeVisicom), Op: op, Query: subject, Status: status, Err: err}
}
