package models

import (
	"context"
	"time"
)

// Record is the part of a social-media status needed to locate it.
type Record struct {
	UserLocation string       // UserLocation is the free-form location from the user profile, possibly empty.
	Coordinates  *Coordinates // Coordinates are the point embedded in the status, if any.
}

// Status is the subset of a Twitter status payload read by the resolver.
// Embedded coordinates are GeoJSON ordered: [lng, lat].
type Status struct {
	ID   string `json:"id_str"`
	Text string `json:"text"`
	User struct {
		ScreenName string `json:"screen_name"`
		Location   string `json:"location"`
	} `json:"user"`
	Coordinates *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"coordinates"`
}

// Record extracts the resolver input from the status.
func (s Status) Record() Record {
	rec := Record{UserLocation: s.User.Location}
	if s.Coordinates != nil && len(s.Coordinates.Coordinates) == 2 {
		rec.Coordinates = &Coordinates{
			Longitude: s.Coordinates.Coordinates[0],
			Latitude:  s.Coordinates.Coordinates[1],
		}
	}

	return rec
}

// Source tells which branch of the resolver produced a location.
type Source string

const (
	SourceEmbedded Source = "embedded" // coordinates embedded in the status
	SourceInline   Source = "inline"   // "iPhone: lat,lng" style profile location
	SourceProfile  Source = "profile"  // free-form profile location
	SourceNowhere  Source = "nowhere"  // nothing to go on
)

// ResolvedLocation is the result of resolving a record. Coordinates is nil for SourceNowhere.
type ResolvedLocation struct {
	Place       string       `json:"place"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Source      Source       `json:"source"`
	Cached      bool         `json:"cached,omitempty"`
}

// GeoTagged is a status annotated with its resolved location, as published downstream.
type GeoTagged struct {
	StatusID   string           `json:"status_id"`
	ScreenName string           `json:"screen_name"`
	Text       string           `json:"text"`
	Location   string           `json:"location"`
	Resolved   ResolvedLocation `json:"resolved"`
	Error      string           `json:"error,omitempty"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

// FeedMessage is a status read from the feed together with its position in the feed.
// Commit acknowledges the message; it may be nil when the feed has no acknowledgements.
type FeedMessage struct {
	Status    Status
	Topic     string
	Partition int
	Offset    int64
	Commit    func(ctx context.Context) error
}
