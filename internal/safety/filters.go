package safety

// Filters are the per-request routing preferences. Boolean filters are off
// when false; threshold and weight filters are off when nil.
type Filters struct {
	AvoidRedZones         bool     `json:"avoid_red_zones,omitempty"`
	MinLightingScore      *float64 `json:"min_lighting_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	AvoidIsolatedSegments bool     `json:"avoid_isolated_segments,omitempty"`
	AvoidRecentIncidents  bool     `json:"avoid_recent_incidents,omitempty"`
	PreferPoliceZones     bool     `json:"prefer_police_zones,omitempty"`
	PreferOpenSpaces      bool     `json:"prefer_open_spaces,omitempty"`
	RequireStreetlights   bool     `json:"require_streetlights,omitempty"`
	AvoidFloodProneAreas  bool     `json:"avoid_flood_prone_areas,omitempty"`
	AvoidConstruction     bool     `json:"avoid_construction,omitempty"`
	MinWeatherScore       *float64 `json:"min_weather_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	AccessibleRouteOnly   bool     `json:"accessible_route_only,omitempty"`
	AudioFriendly         bool     `json:"audio_friendly,omitempty"`

	WeightDistance *float64 `json:"weight_distance,omitempty"`
	WeightSafety   *float64 `json:"weight_safety,omitempty"`
	WeightSpeed    *float64 `json:"weight_speed,omitempty"`

	TimeOfTravel TimeOfTravel `json:"time_of_travel,omitempty" validate:"omitempty,oneof=now day night custom"`
	CustomTime   *int         `json:"custom_time,omitempty"`
}

// IsZero reports whether no ISC-affecting filter is set.
func (f *Filters) IsZero() bool {
	if f == nil {
		return true
	}
	return !f.AvoidRedZones && f.MinLightingScore == nil && !f.AvoidIsolatedSegments &&
		!f.AvoidRecentIncidents && !f.PreferPoliceZones && !f.PreferOpenSpaces &&
		!f.RequireStreetlights && !f.AvoidFloodProneAreas && !f.AvoidConstruction &&
		f.MinWeatherScore == nil && !f.AccessibleRouteOnly && !f.AudioFriendly
}

// Weights returns the cost weights carried by f, or nil unless at least one
// weight is positive. Zero or negative weights count as unset, so they
// neither switch to weighted mode nor override a default.
func (f *Filters) Weights() *Weights {
	if f == nil {
		return nil
	}
	w := &Weights{
		Distance: positive(f.WeightDistance),
		Safety:   positive(f.WeightSafety),
		Speed:    positive(f.WeightSpeed),
	}
	if w.Distance == 0 && w.Safety == 0 && w.Speed == 0 {
		return nil
	}
	return w
}

func positive(v *float64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return *v
}

// ApplyFilters adjusts isc multiplicatively for the enabled filters and
// clamps the result to [0,1]. b holds the segment's factors.
func ApplyFilters(isc float64, b Breakdown, f *Filters) float64 {
	if f == nil {
		return clamp01(isc)
	}

	adjusted := isc

	if f.AvoidRedZones && isc < 0.4 {
		adjusted *= 0.5
	}
	if f.MinLightingScore != nil && b.Lighting < clamp01(*f.MinLightingScore) {
		adjusted *= 0.6
	}
	if f.AvoidIsolatedSegments && b.Crowd < 0.5 {
		adjusted *= 0.7
	}
	if f.AvoidRecentIncidents && b.Reports < 0.6 {
		adjusted *= 0.65
	}
	if f.PreferPoliceZones && b.Reports > 0.8 {
		adjusted *= 1.1
	}
	if f.PreferOpenSpaces && b.Crowd > 0.7 {
		adjusted *= 1.05
	}
	if f.RequireStreetlights && b.Lighting < 0.7 {
		adjusted *= 0.4
	}
	if f.AvoidFloodProneAreas && b.Weather < 0.5 {
		adjusted *= 0.7
	}
	if f.AvoidConstruction && b.Traffic < 0.4 {
		adjusted *= 0.75
	}
	if f.MinWeatherScore != nil && b.Weather < clamp01(*f.MinWeatherScore) {
		adjusted *= 0.65
	}
	if f.AccessibleRouteOnly {
		adjusted *= 0.95
	}
	if f.AudioFriendly && b.Lighting > 0.8 && b.Crowd > 0.6 {
		adjusted *= 1.05
	}

	return clamp01(adjusted)
}

// PassesConstraints reports whether a segment with the unfiltered isc and
// factors b satisfies the hard filters.
func PassesConstraints(isc float64, b Breakdown, f *Filters) bool {
	if f == nil {
		return true
	}
	if f.AvoidRedZones && isc < 0.3 {
		return false
	}
	if f.RequireStreetlights && b.Lighting < 0.7 {
		return false
	}
	if f.MinLightingScore != nil && b.Lighting < clamp01(*f.MinLightingScore) {
		return false
	}
	if f.MinWeatherScore != nil && b.Weather < clamp01(*f.MinWeatherScore) {
		return false
	}
	return true
}
