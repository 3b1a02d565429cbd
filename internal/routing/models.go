// Package routing fetches walking route alternatives from a routing provider.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetAlternatives returns up to req.MaxAlternatives walking routes, best first.
	GetAlternatives(ctx context.Context, req AlternativesRequest) (*AlternativesResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// AlternativesRequest asks for walking routes between two points.
type AlternativesRequest struct {
	Origin          geo.Coordinate
	Destination     geo.Coordinate
	MaxAlternatives int // total routes wanted, including the primary (default: 3)
}

// AlternativesResponse holds the provider's routes in provider order.
type AlternativesResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is a route as the provider shaped it. Geometry arrives in one of
// three forms: per-leg point lists, per-section point lists, or a single
// encoded polyline. Consumers pick the first form that is populated.
type Route struct {
	Legs            []Leg
	Sections        []Section
	EncodedPolyline string
	// PolylinePrecision is the encoding precision of EncodedPolyline (default: 5).
	PolylinePrecision int
	Summary           *Summary
}

// Leg is the part of a route between two waypoints.
type Leg struct {
	Points  []geo.Coordinate
	Summary *Summary
}

// Section is a typed stretch of a route carrying its own geometry.
type Section struct {
	Type   string
	Points []geo.Coordinate
}

// Summary carries route length and travel time.
type Summary struct {
	LengthInMeters      float64
	TravelTimeInSeconds float64
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
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

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
