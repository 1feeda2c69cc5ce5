package geocoding

import (
	"errors"
	"fmt"
)

// Errors shared by every provider. Provider specific errors wrap them.
var (
	// ErrRateLimited is the upstream's "over query limit" answer. It is sent both when
	// requests come too fast and when the daily quota is spent.
	ErrRateLimited = errors.New("upstream rate limit exceeded")
	// ErrEmptyResponse is returned when the upstream found nothing.
	ErrEmptyResponse = errors.New("upstream returned empty response")
	// ErrMalformedResponse is returned when the upstream payload does not match its schema.
	ErrMalformedResponse = errors.New("upstream returned malformed response")
)

// UpstreamError describes a failed upstream request. It keeps the status and the query
// so the failure can be diagnosed after it has bubbled up.
type UpstreamError struct {
	Provider string // Provider name, e.g. google
	Op       string // Op is geocode or reverse
	Query    string // Query is the address or "lat,lng" that was sent
	Status   string // Status reported by the upstream or the HTTP status code
	Err      error  // Err is the underlying cause
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s %s %q", e.Provider, e.Op, e.Query)
	if e.Status != "" {
		msg += ": status " + e.Status
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

const (
	opGeocode = "geocode"
	opReverse = "reverse"
)

func latLngQuery(lat, lng float64) string {
	return fmt.Sprintf("%f,%f", lat, lng)
}
