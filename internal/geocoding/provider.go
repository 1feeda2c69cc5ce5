package geocoding

import (
	"context"

	"github.com/UnknownOlympus/geotweet/internal/models"
)

// Provider is an upstream geocoding service.
// Geocode resolves a free-form address to a place, ReverseGeocode resolves a point to the
// nearest addressable place. Rate-limit rejections wrap ErrRateLimited.
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Place, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (*models.Place, error)
}
