package planner

import (
	"errors"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/safety"
)

// Planner errors.
var (
	// ErrInvalidInput indicates a missing or out-of-range origin or destination.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoRouteFound indicates the routing provider returned no alternatives.
	ErrNoRouteFound = errors.New("no route found")
	// ErrNoProcessableRoutes indicates every alternative failed extraction.
	ErrNoProcessableRoutes = errors.New("no processable routes")
	// ErrInvalidRoute indicates a route without usable geometry.
	ErrInvalidRoute = errors.New("invalid route")
)

// UnsafeThreshold is the ISC below which a segment is flagged as unsafe.
const UnsafeThreshold = 0.5

// Segment is the edge between two consecutive route points.
type Segment struct {
	Start  geo.Coordinate `json:"start"`
	End    geo.Coordinate `json:"end"`
	Center geo.Coordinate `json:"center"`
}

// NewSegment builds the segment from a to b.
func NewSegment(a, b geo.Coordinate) Segment {
	return Segment{Start: a, End: b, Center: geo.Midpoint(a, b)}
}

// ScoredSegment is a sampled segment with its safety score. With filters,
// ISC is the filtered value and BaseISC the calculator's.
type ScoredSegment struct {
	Segment
	Index     int              `json:"index"`
	ISC       float64          `json:"isc"`
	BaseISC   float64          `json:"baseIsc"`
	Breakdown safety.Breakdown `json:"breakdown"`
	Excluded  bool             `json:"excluded,omitempty"`
}

// UnsafeSegment flags a sampled segment with ISC below UnsafeThreshold.
type UnsafeSegment struct {
	SegmentIndex int            `json:"segment"`
	ISC          float64        `json:"isc"`
	Location     geo.Coordinate `json:"location"`
}

// ProcessedRoute is a route alternative with its safety aggregate and cost.
type ProcessedRoute struct {
	// Index is the position of the route in the provider response.
	Index             int
	Points            []geo.Coordinate
	DistanceMeters    float64
	TravelTimeSeconds float64
	Segments          []ScoredSegment
	AvgISC            float64
	Cost              float64
	UnsafeSegments    []UnsafeSegment
	ExcludedSegments  int
}

// Selection labels three of the processed routes. Slots may share a route.
type Selection struct {
	Shortest *ProcessedRoute
	Safest   *ProcessedRoute
	Balanced *ProcessedRoute
}

// Request is a route planning request.
type Request struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	// Alpha weighs safety against distance; nil means DefaultAlpha.
	Alpha   *float64
	Filters *safety.Filters
}

// Plan is the planner result.
type Plan struct {
	Selection   Selection
	Routes      []*ProcessedRoute
	Hour        int
	Alpha       float64
	GeneratedAt time.Time
}
