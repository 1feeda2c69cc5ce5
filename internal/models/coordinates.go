package models

import "fmt"

// Coordinates represents a geographical point defined by its longitude and latitude.
type Coordinates struct {
	Longitude float64 `json:"lng"` // Longitude of the geographical point.
	Latitude  float64 `json:"lat"` // Latitude of the geographical point.
}

// String formats the point as "lat,lng", the order expected by search APIs.
func (c Coordinates) String() string {
	return fmt.Sprintf("%f,%f", c.Latitude, c.Longitude)
}

// Viewport is the bounding box an upstream service associates with a resolved place.
type Viewport struct {
	SouthWest Coordinates `json:"southwest"`
	NorthEast Coordinates `json:"northeast"`
}

// Place is a single upstream geocoding result.
type Place struct {
	Address  string      `json:"address"`
	Location Coordinates `json:"location"`
	Viewport Viewport    `json:"viewport"`
}

// Region is the center of a place together with its viewport.
type Region struct {
	Center   Coordinates `json:"center"`
	Viewport Viewport    `json:"viewport"`
}
