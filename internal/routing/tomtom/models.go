package tomtom

import "github.com/safewalk/safewalk/internal/routing"

// routeResponse is the calculateRoute JSON response.
type routeResponse struct {
	FormatVersion string       `json:"formatVersion"`
	Routes        []routeEntry `json:"routes"`
}

type routeEntry struct {
	Summary  *summary  `json:"summary"`
	Legs     []leg     `json:"legs"`
	Sections []section `json:"sections,omitempty"`
}

type leg struct {
	Summary *summary `json:"summary"`
	Points  []point  `json:"points"`
}

// section carries points only in some response versions; index-only
// sections are skipped.
type section struct {
	StartPointIndex int     `json:"startPointIndex"`
	EndPointIndex   int     `json:"endPointIndex"`
	SectionType     string  `json:"sectionType"`
	TravelMode      string  `json:"travelMode,omitempty"`
	Points          []point `json:"points,omitempty"`
}

type summary struct {
	LengthInMeters      float64 `json:"lengthInMeters"`
	TravelTimeInSeconds float64 `json:"travelTimeInSeconds"`
	DepartureTime       string  `json:"departureTime,omitempty"`
	ArrivalTime         string  `json:"arrivalTime,omitempty"`
}

func (s *summary) toSummary() *routing.Summary {
	if s == nil {
		return nil
	}
	return &routing.Summary{
		LengthInMeters:      s.LengthInMeters,
		TravelTimeInSeconds: s.TravelTimeInSeconds,
	}
}

type point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// errorResponse is the body TomTom returns on 4xx.
type errorResponse struct {
	FormatVersion string `json:"formatVersion"`
	DetailedError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"detailedError"`
}

// TomTom detailed error codes for error mapping.
const (
	codeNoRouteFound       = "NO_ROUTE_FOUND"
	codeMapMatchingFailure = "MAP_MATCHING_FAILURE"
)
