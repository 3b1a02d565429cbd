// Package planner turns provider route alternatives into scored routes and
// picks the shortest, safest and balanced options.
package planner

import (
	"fmt"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/routing"
	"github.com/safewalk/safewalk/pkg/polyline"
)

// MaxSampledSegments is the target number of scored segments per route.
const MaxSampledSegments = 50

// ExtractPoints returns the route geometry. Leg points win over section
// points, which win over the encoded polyline. Fewer than two points is
// ErrInvalidRoute.
func ExtractPoints(route routing.Route) ([]geo.Coordinate, error) {
	var points []geo.Coordinate
	for _, leg := range route.Legs {
		points = append(points, leg.Points...)
	}

	if len(points) == 0 {
		for _, section := range route.Sections {
			points = append(points, section.Points...)
		}
	}

	if len(points) == 0 && route.EncodedPolyline != "" {
		precision := route.PolylinePrecision
		if precision == 0 {
			precision = polyline.Precision5
		}
		pairs, err := polyline.DecodePrecision(route.EncodedPolyline, precision)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
		}
		points = make([]geo.Coordinate, len(pairs))
		for i, p := range pairs {
			points[i] = geo.Coordinate{Lat: p[0], Lon: p[1]}
		}
	}

	if len(points) < 2 {
		return nil, fmt.Errorf("%w: %d points", ErrInvalidRoute, len(points))
	}
	return points, nil
}

// RouteTotals returns the route length in meters and travel time in seconds
// from the route summary, or from the summed leg summaries without one.
func RouteTotals(route routing.Route) (distance, travelTime float64) {
	if route.Summary != nil {
		return route.Summary.LengthInMeters, route.Summary.TravelTimeInSeconds
	}
	for _, leg := range route.Legs {
		if leg.Summary != nil {
			distance += leg.Summary.LengthInMeters
			travelTime += leg.Summary.TravelTimeInSeconds
		}
	}
	return distance, travelTime
}

// SampleIndices returns the start indices of the segments to score for a
// route of n points: every stride-th segment with stride max(1, n/50), plus
// the final segment n-2.
func SampleIndices(n int) []int {
	if n < 2 {
		return nil
	}
	stride := max(1, n/MaxSampledSegments)

	indices := make([]int, 0, (n-1)/stride+2)
	for i := 0; i < n-1; i += stride {
		indices = append(indices, i)
	}
	if indices[len(indices)-1] != n-2 {
		indices = append(indices, n-2)
	}
	return indices
}
