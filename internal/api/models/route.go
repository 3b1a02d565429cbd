package models

// Route view names and types, one per selection slot.
const (
	RouteNameShortest = "Route A (Shortest)"
	RouteNameSafest   = "Route B (Safest)"
	RouteNameBalanced = "Route C (Balanced)"

	RouteTypeShortest = "shortest"
	RouteTypeSafest   = "safest"
	RouteTypeBalanced = "balanced"
)

// SafestRouteResponse is the response for POST /v1/routes:safest.
type SafestRouteResponse struct {
	Success     bool         `json:"success"`
	Routes      RouteSet     `json:"routes"`
	Route       RouteView    `json:"route"`
	Summary     RouteSummary `json:"summary"`
	Alpha       float64      `json:"alpha"`
	Hour        int          `json:"hour"`
	GeneratedAt Timestamp    `json:"generatedAt"`
}

// RouteSet holds the three labelled routes. Slots may describe the same route.
type RouteSet struct {
	RouteA RouteView `json:"routeA"`
	RouteB RouteView `json:"routeB"`
	RouteC RouteView `json:"routeC"`
}

// RouteView is one scored route alternative.
type RouteView struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	RouteIndex int          `json:"routeIndex"`
	Polyline   [][2]float64 `json:"polyline"`
	// Distance is in meters, Duration in seconds and ETA in whole minutes.
	Distance         float64             `json:"distance"`
	DistanceKm       string              `json:"distanceKm"`
	Duration         float64             `json:"duration"`
	ETA              int                 `json:"eta"`
	ISC              float64             `json:"isc"`
	SafetyScore      string              `json:"safetyScore"`
	OptimalCost      float64             `json:"optimalCost"`
	UnsafeSegments   []UnsafeSegmentView `json:"unsafeSegments"`
	Segments         []SegmentView       `json:"segments"`
	ExcludedSegments int                 `json:"excludedSegments"`
}

// UnsafeSegmentView flags a segment scoring below the unsafe threshold.
type UnsafeSegmentView struct {
	Segment  int     `json:"segment"`
	ISC      float64 `json:"isc"`
	Location Point   `json:"location"`
}

// SegmentView is a scored sampled segment.
type SegmentView struct {
	Index     int             `json:"index"`
	Start     Point           `json:"start"`
	End       Point           `json:"end"`
	Center    Point           `json:"center"`
	ISC       float64         `json:"isc"`
	BaseISC   float64         `json:"baseIsc"`
	Breakdown FactorBreakdown `json:"breakdown"`
	Excluded  bool            `json:"excluded,omitempty"`
}

// FactorBreakdown holds the factor values behind a segment ISC.
type FactorBreakdown struct {
	Lighting float64 `json:"lighting"`
	Weather  float64 `json:"weather"`
	Crowd    float64 `json:"crowd"`
	Reports  float64 `json:"reports"`
	Traffic  float64 `json:"traffic"`
}

// RouteSummary is the short comparison of the three slots.
type RouteSummary struct {
	Shortest RouteSummaryItem `json:"shortest"`
	Safest   RouteSummaryItem `json:"safest"`
	Balanced RouteSummaryItem `json:"balanced"`
}

// RouteSummaryItem is the distance and safety score of one slot.
type RouteSummaryItem struct {
	DistanceKm  string `json:"distanceKm"`
	SafetyScore string `json:"safetyScore"`
}
