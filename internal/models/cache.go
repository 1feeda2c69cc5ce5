package models

// CacheEntry is the persisted coordinate pair for a normalized place name.
type CacheEntry struct {
	Key       string  // Key is the normalized place string.
	Latitude  float64 // Latitude of the place.
	Longitude float64 // Longitude of the place.
	HitCount  int     // HitCount is 1 on insert and grows on every cache hit.
	Cell      int64   // Cell is the H3 index of the coordinates.
}
