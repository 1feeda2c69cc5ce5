package geocoding_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/UnknownOlympus/geotweet/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient is a mock implementation of HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func TestNominatimProvider_Geocode(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("successful geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				// Verify request parameters
				assert.Equal(t, "GET", req.Method)
				assert.Contains(t, req.URL.String(), "nominatim.openstreetmap.org")
				assert.Equal(t, "1600 Amphitheatre Parkway, Mountain View, CA", req.URL.Query().Get("q"))
				assert.Equal(t, "json", req.URL.Query().Get("format"))
				assert.Equal(t, "1", req.URL.Query().Get("limit"))
				assert.Equal(
					t,
					"GeoTweet/1.0 (https://github.com/UnknownOlympus/geotweet)",
					req.Header.Get("User-Agent"),
				)

				// Return mock response
				responseBody := `[{"lat":"37.4224764","lon":"-122.0842499",` +
					`"display_name":"Google Building 41, Mountain View, California, United States",` +
					`"boundingbox":["37.4219","37.4230","-122.0848","-122.0837"]}]`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		place, err := provider.Geocode(ctx, "1600 Amphitheatre Parkway, Mountain View, CA")

		require.NoError(t, err)
		require.NotNil(t, place)
		assert.Equal(t, "Google Building 41, Mountain View, California, United States", place.Address)
		assert.InEpsilon(t, 37.4224764, place.Location.Latitude, 0.0001)
		assert.InEpsilon(t, -122.0842499, place.Location.Longitude, 0.0001)
		assert.InEpsilon(t, 37.4219, place.Viewport.SouthWest.Latitude, 0.0001)
		assert.InEpsilon(t, -122.0848, place.Viewport.SouthWest.Longitude, 0.0001)
		assert.InEpsilon(t, 37.4230, place.Viewport.NorthEast.Latitude, 0.0001)
		assert.InEpsilon(t, -122.0837, place.Viewport.NorthEast.Longitude, 0.0001)
	})

	t.Run("empty response from API", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				responseBody := `[]`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(ctx, "invalid address")

		require.Error(t, err)
		require.Nil(t, coords)
		assert.ErrorIs(t, err, geocoding.ErrNominatimEmptyResponse)
	})

	t.Run("too many requests is rate limited", func(t *testing.T) {
		requestCount := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				requestCount++
				responseBody := `{"error":"Rate limit exceeded"}`
				return &http.Response{
					StatusCode: http.StatusTooManyRequests,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(ctx, "some street, some city")

		require.Error(t, err)
		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrRateLimited)
		assert.Equal(t, 1, requestCount, "rate limit is a single request")

		var upstreamErr *geocoding.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, "429", upstreamErr.Status)
	})

	t.Run("HTTP error status", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusInternalServerError,
					Body:       io.NopCloser(bytes.NewBufferString(`oops`)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(ctx, "some address")

		require.Error(t, err)
		require.Nil(t, coords)
		require.NotErrorIs(t, err, geocoding.ErrRateLimited)
		assert.Contains(t, err.Error(), "nominatim API returned status 500")
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				responseBody := `invalid json`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(ctx, "some address")

		require.Error(t, err)
		require.Nil(t, coords)
		assert.Contains(t, err.Error(), "failed to decode nominatim response")
	})

	t.Run("invalid latitude in response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				responseBody := `[{"lat":"invalid","lon":"-122.0842499"}]`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(ctx, "some address")

		require.Error(t, err)
		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		require.ErrorIs(t, err, geocoding.ErrMalformedResponse)
		assert.Contains(t, err.Error(), "invalid latitude")
	})

	t.Run("invalid longitude in response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				responseBody := `[{"lat":"37.4224764","lon":"invalid"}]`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(ctx, "some address")

		require.Error(t, err)
		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		assert.Contains(t, err.Error(), "invalid longitude")
	})

	t.Run("HTTP client returns error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(ctx, "some address")

		require.Error(t, err)
		require.Nil(t, coords)
		assert.Contains(t, err.Error(), "failed to execute geocoding request")
	})

	t.Run("context cancellation", func(t *testing.T) {
		newCtx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, req.Context().Err()
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		coords, err := provider.Geocode(newCtx, "some address")

		require.Error(t, err)
		require.Nil(t, coords)
	})
}

func TestNominatimProvider_OneRequestPerCall(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("partial address is sent once as given", func(t *testing.T) {
		var queries []string
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				queries = append(queries, req.URL.Query().Get("q"))
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(`[]`)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		place, err := provider.Geocode(ctx, "с. Грабовець, вул. Польова, 3")

		require.Nil(t, place)
		require.ErrorIs(t, err, geocoding.ErrNominatimEmptyResponse)
		assert.Equal(t, []string{"с. Грабовець, вул. Польова, 3"}, queries)

		var upstreamErr *geocoding.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, "с. Грабовець, вул. Польова, 3", upstreamErr.Query)
	})

	t.Run("result without bounding box", func(t *testing.T) {
		requestCount := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				requestCount++
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(`[{"lat":"49.1234","lon":"24.5678"}]`)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		place, err := provider.Geocode(ctx, "с. Грабовець")

		require.NoError(t, err)
		assert.InEpsilon(t, 49.1234, place.Location.Latitude, 0.0001)
		assert.InEpsilon(t, 24.5678, place.Location.Longitude, 0.0001)
		assert.Equal(t, place.Location, place.Viewport.SouthWest, "missing bounding box collapses to the point")
		assert.Equal(t, 1, requestCount)
	})
}

func TestNominatimProvider_ReverseGeocode(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()

	t.Run("successful reverse geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "/reverse", req.URL.Path)
				assert.Equal(t, "http://nominatim.local", req.URL.Scheme+"://"+req.URL.Host)
				assert.Equal(t, "50.4501", req.URL.Query().Get("lat"))
				assert.Equal(t, "30.5234", req.URL.Query().Get("lon"))

				responseBody := `{"lat":"50.4500","lon":"30.5233","display_name":"Хрещатик, Київ, Україна",` +
					`"boundingbox":["50.44","50.46","30.51","30.53"]}`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "http://nominatim.local/", logger)
		place, err := provider.ReverseGeocode(ctx, 50.4501, 30.5234)

		require.NoError(t, err)
		assert.Equal(t, "Хрещатик, Київ, Україна", place.Address)
		assert.InEpsilon(t, 50.44, place.Viewport.SouthWest.Latitude, 0.0001)
		assert.InEpsilon(t, 30.53, place.Viewport.NorthEast.Longitude, 0.0001)
	})

	t.Run("nothing found", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(`{"error":"Unable to geocode"}`)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		place, err := provider.ReverseGeocode(ctx, 0, 0)

		require.Nil(t, place)
		require.ErrorIs(t, err, geocoding.ErrEmptyResponse)
		assert.Contains(t, err.Error(), "Unable to geocode")
	})

	t.Run("malformed bounding box", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				responseBody := `{"lat":"1","lon":"2","boundingbox":["a","b","c","d"]}`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, "", logger)
		place, err := provider.ReverseGeocode(ctx, 1, 2)

		require.Nil(t, place)
		require.ErrorIs(t, err, geocoding.ErrMalformedResponse)
	})
}

func TestNewNominatimProvider(t *testing.T) {
	logger := slog.Default()

	provider := geocoding.NewNominatimProvider(logger, 0)

	require.NotNil(t, provider)
}
