// Package traffic provides live road traffic flow around walking segments.
package traffic

import (
	"context"
	"errors"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// Sentinel errors for traffic operations.
var (
	// ErrProviderUnavailable indicates the traffic provider is down or its circuit is open.
	ErrProviderUnavailable = errors.New("traffic provider unavailable")
	// ErrNoFlowData indicates the provider has no road segment near the queried point.
	ErrNoFlowData = errors.New("no traffic flow data for location")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidBoundingBox indicates a box outside WGS84 ranges or inverted.
	ErrInvalidBoundingBox = errors.New("invalid bounding box")
)

// Provider fetches flow data for a point on the road network.
type Provider interface {
	FlowAt(ctx context.Context, point geo.Coordinate) (*Flow, error)

	// Name returns the provider name for logging.
	Name() string
}

// Flow is the traffic flow on the road segment nearest a point.
// Speeds are in km/h.
type Flow struct {
	CurrentSpeed  float64
	FreeFlowSpeed float64
	Confidence    float64
	RoadClosure   bool
	FetchedAt     time.Time
}

// Ratio returns current over free-flow speed. A non-positive free-flow
// speed is treated as 50 km/h.
func (f *Flow) Ratio() float64 {
	freeFlow := f.FreeFlowSpeed
	if freeFlow <= 0 {
		freeFlow = 50
	}
	return f.CurrentSpeed / freeFlow
}

// Error provides detailed error information from the traffic provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
