// Package weather supplies current conditions and maps them to a pedestrian
// safety factor.
package weather

import (
	"errors"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Observation is the current weather at a point.
type Observation struct {
	Location geo.Coordinate

	// Temperature in Celsius.
	Temperature float64

	// Humidity percentage (0-100).
	Humidity float64

	// WindSpeed in m/s.
	WindSpeed float64

	// Visibility in meters, 0 when unreported.
	Visibility float64

	Condition   Condition
	Description string

	ObservedAt time.Time
	FetchedAt  time.Time
}

// Condition is the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// SafetyFactor maps a condition to a walking safety factor in [0,1].
// Higher is safer.
func SafetyFactor(c Condition) float64 {
	switch c {
	case ConditionClear:
		return 1.0
	case ConditionClouds:
		return 0.9
	case ConditionDrizzle, ConditionMist, ConditionHaze:
		return 0.7
	case ConditionRain:
		return 0.6
	case ConditionFog:
		return 0.5
	case ConditionSnow:
		return 0.4
	case ConditionThunderstorm:
		return 0.3
	default:
		return 0.7
	}
}

// SafetyFactor returns the safety factor for the observed condition.
func (o *Observation) SafetyFactor() float64 {
	return SafetyFactor(o.Condition)
}
