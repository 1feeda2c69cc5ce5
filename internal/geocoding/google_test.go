package geocoding_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/geotweet/internal/geocoding"
	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/UnknownOlympus/geotweet/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGeocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address)

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		require.NotErrorIs(t, err, geocoding.ErrRateLimited)
		mockClient.AssertExpectations(t)
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		place, err := provider.Geocode(ctx, address)

		require.Nil(t, place)
		require.ErrorIs(t, err, geocoding.ErrEmptyResponse)
		require.ErrorIs(t, err, geocoding.ErrGoogleEmptyResponse)
		mockClient.AssertExpectations(t)
	})

	t.Run("over query limit is rate limited", func(t *testing.T) {
		address := "Paris"
		req := &maps.GeocodingRequest{Address: address}
		apiErr := errors.New("maps: OVER_QUERY_LIMIT - You have exceeded your daily request quota for this API.")

		mockClient.On("Geocode", ctx, req).Return(nil, apiErr).Once()

		_, err := provider.Geocode(ctx, address)

		require.ErrorIs(t, err, geocoding.ErrRateLimited)
		require.ErrorIs(t, err, apiErr)

		var upstreamErr *geocoding.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, "OVER_QUERY_LIMIT", upstreamErr.Status)
		assert.Equal(t, "google", upstreamErr.Provider)
		assert.Equal(t, "Paris", upstreamErr.Query)
		mockClient.AssertExpectations(t)
	})

	t.Run("other statuses are kept but not rate limited", func(t *testing.T) {
		address := "Paris"
		req := &maps.GeocodingRequest{Address: address}
		apiErr := errors.New("maps: REQUEST_DENIED - The provided API key is invalid.")

		mockClient.On("Geocode", ctx, req).Return(nil, apiErr).Once()

		_, err := provider.Geocode(ctx, address)

		require.NotErrorIs(t, err, geocoding.ErrRateLimited)

		var upstreamErr *geocoding.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, "REQUEST_DENIED", upstreamErr.Status)
		mockClient.AssertExpectations(t)
	})

	t.Run("successfull geocoding", func(t *testing.T) {
		address := "1600 Amphitheatre Parkway, Mountain View, CA"
		req := &maps.GeocodingRequest{Address: address}
		mockReponse := []maps.GeocodingResult{
			{
				FormattedAddress: "Google Building 40, 1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
				Geometry: maps.AddressGeometry{
					Location: maps.LatLng{Lat: 37.42, Lng: -122.08},
					Viewport: maps.LatLngBounds{
						NorthEast: maps.LatLng{Lat: 37.43, Lng: -122.07},
						SouthWest: maps.LatLng{Lat: 37.41, Lng: -122.09},
					},
				},
			},
		}

		mockClient.On("Geocode", ctx, req).Return(mockReponse, nil).Once()

		place, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.NotNil(t, place)
		assert.Equal(t, mockReponse[0].FormattedAddress, place.Address)
		assert.InEpsilon(t, 37.42, place.Location.Latitude, 0.01)
		assert.InEpsilon(t, -122.08, place.Location.Longitude, 0.01)
		assert.Equal(t, models.Viewport{
			SouthWest: models.Coordinates{Latitude: 37.41, Longitude: -122.09},
			NorthEast: models.Coordinates{Latitude: 37.43, Longitude: -122.07},
		}, place.Viewport)
		mockClient.AssertExpectations(t)
	})
}

func TestReverseGeocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("successful reverse geocoding", func(t *testing.T) {
		req := &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: 48.8584, Lng: 2.2945}}
		mockClient.On("ReverseGeocode", ctx, req).Return([]maps.GeocodingResult{
			{
				FormattedAddress: "Champ de Mars, 5 Av. Anatole France, 75007 Paris, France",
				Geometry:         maps.AddressGeometry{Location: maps.LatLng{Lat: 48.8584, Lng: 2.2945}},
			},
		}, nil).Once()

		place, err := provider.ReverseGeocode(ctx, 48.8584, 2.2945)

		require.NoError(t, err)
		assert.Equal(t, "Champ de Mars, 5 Av. Anatole France, 75007 Paris, France", place.Address)
		mockClient.AssertExpectations(t)
	})

	t.Run("rate limited", func(t *testing.T) {
		req := &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: 1, Lng: 2}}
		mockClient.On("ReverseGeocode", ctx, req).
			Return(nil, errors.New("maps: OVER_QUERY_LIMIT - ")).Once()

		place, err := provider.ReverseGeocode(ctx, 1, 2)

		require.Nil(t, place)
		require.ErrorIs(t, err, geocoding.ErrRateLimited)
		assert.Contains(t, err.Error(), "google reverse \"1.000000,2.000000\"")
		mockClient.AssertExpectations(t)
	})
}
