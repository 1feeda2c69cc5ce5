package geo

import (
	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Circle is a bounding circle around a place, as accepted by circle-based search APIs.
type Circle struct {
	Center   models.Coordinates `json:"center"`
	RadiusKm float64            `json:"radius_km"`
}

// Distance returns the haversine great-circle distance in kilometers between two points.
// NaN inputs yield NaN.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)

	return a.Distance(b).Radians() * EarthRadiusKm
}

// CircleFromViewport approximates a viewport by a circle centered on center whose
// radius is half the distance between the viewport's corners.
func CircleFromViewport(center models.Coordinates, viewport models.Viewport) Circle {
	sw, ne := viewport.SouthWest, viewport.NorthEast

	return Circle{
		Center:   center,
		RadiusKm: Distance(sw.Latitude, sw.Longitude, ne.Latitude, ne.Longitude) / 2,
	}
}
