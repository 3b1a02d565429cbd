// Package safety computes the Incident Safety Coefficient (ISC) of a route
// segment and the cost used to rank routes.
package safety

import (
	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/incident"
	"github.com/safewalk/safewalk/internal/traffic"
)

// Factor weights. They sum to 1.
const (
	WeightLighting = 0.20
	WeightWeather  = 0.20
	WeightCrowd    = 0.15
	WeightReports  = 0.30
	WeightTraffic  = 0.15
)

// Values used when a live factor cannot be computed.
const (
	FallbackWeather = 0.7
	FallbackTraffic = 0.7
	FallbackReports = 0.8
)

// ReportRadiusDegrees is the flat-degree radius within which a report
// counts against a segment (~100m at mid latitudes).
const ReportRadiusDegrees = 0.001

// TrafficBoxDelta is the half-size in degrees of the traffic query box.
const TrafficBoxDelta = 0.01

// Breakdown holds the five factors behind an ISC, each in [0,1].
type Breakdown struct {
	Lighting float64 `json:"lighting"`
	Weather  float64 `json:"weather"`
	Crowd    float64 `json:"crowd"`
	Reports  float64 `json:"reports"`
	Traffic  float64 `json:"traffic"`
}

// Score is a segment's ISC with the factors it was built from.
type Score struct {
	ISC       float64   `json:"isc"`
	Breakdown Breakdown `json:"breakdown"`
}

// DefaultBreakdown is substituted for a segment that could not be scored.
var DefaultBreakdown = Breakdown{Lighting: 0.7, Weather: 0.7, Crowd: 0.7, Reports: 1.0, Traffic: 0.7}

// DefaultISC accompanies DefaultBreakdown.
const DefaultISC = 0.5

// Combine returns the weighted sum of b clamped to [0,1].
func Combine(b Breakdown) float64 {
	return clamp01(WeightLighting*b.Lighting +
		WeightWeather*b.Weather +
		WeightCrowd*b.Crowd +
		WeightReports*b.Reports +
		WeightTraffic*b.Traffic)
}

// LightingFactor scores street lighting by hour of day (0..23).
func LightingFactor(hour int) float64 {
	if hour >= 6 && hour < 20 {
		return 1.0
	}
	return 0.6
}

// CrowdFactor scores expected foot traffic by hour of day (0..23).
func CrowdFactor(hour int) float64 {
	switch {
	case hour >= 22 || hour < 6:
		return 0.5
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		return 0.9
	default:
		return 0.7
	}
}

// ReportsFactor scores a segment by the number of nearby recent reports.
func ReportsFactor(count int) float64 {
	switch {
	case count <= 0:
		return 1.0
	case count == 1:
		return 0.7
	default:
		return 0.4
	}
}

// CountNearby counts reports strictly within ReportRadiusDegrees of center.
func CountNearby(center geo.Coordinate, reports []incident.Report) int {
	n := 0
	for _, r := range reports {
		if geo.FlatDistance(center, r.Location) < ReportRadiusDegrees {
			n++
		}
	}
	return n
}

// TrafficFactor scores the speed ratio of flow. A nil flow scores the fallback.
func TrafficFactor(flow *traffic.Flow) float64 {
	if flow == nil {
		return FallbackTraffic
	}
	ratio := flow.Ratio()
	switch {
	case ratio > 0.8:
		return 0.6
	case ratio > 0.5:
		return 0.9
	default:
		return 0.7
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
