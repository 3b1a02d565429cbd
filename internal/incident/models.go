// Package incident stores crowdsourced incident reports and serves the
// recent-report window used by the reports safety factor.
package incident

import (
	"errors"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// Repository errors.
var (
	ErrReportNotFound = errors.New("report not found")
)

// Type is the category a reporter picked for an incident.
type Type string

// Known report types.
const (
	TypeIncident         Type = "incident"
	TypeAccident         Type = "accident"
	TypeHazard           Type = "hazard"
	TypeSuspicious       Type = "suspicious"
	TypeBrokenLighting   Type = "broken_lighting"
	TypeTheft            Type = "theft"
	TypePoorCrowdDensity Type = "poor_crowd_density"
	TypeRoadCondition    Type = "road_condition"
	TypeUrbanDesertion   Type = "urban_desertion"
	TypeHarassment       Type = "harassment"
	TypeOther            Type = "other"
)

// Types lists every accepted report type in display order.
var Types = []Type{
	TypeIncident, TypeAccident, TypeHazard, TypeSuspicious, TypeBrokenLighting,
	TypeTheft, TypePoorCrowdDensity, TypeRoadCondition, TypeUrbanDesertion,
	TypeHarassment, TypeOther,
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Report is a single incident report.
type Report struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId,omitempty"`
	Type        Type           `json:"type"`
	Description string         `json:"description"`
	Location    geo.Coordinate `json:"location"`
	PhotoURL    string         `json:"photoUrl,omitempty"`
	AudioURL    string         `json:"audioUrl,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}
