package safety

import "time"

// TimeOfTravel selects the hour used for the time-dependent factors.
type TimeOfTravel string

// Time of travel options.
const (
	TravelNow    TimeOfTravel = "now"
	TravelDay    TimeOfTravel = "day"
	TravelNight  TimeOfTravel = "night"
	TravelCustom TimeOfTravel = "custom"
)

// Fixed hours for the day and night options.
const (
	DayHour   = 12
	NightHour = 22
)

// ResolveHour returns the hour (0..23) that f asks to score for. Without a
// choice, or with "custom" and no custom_time, the hour of now is used.
func ResolveHour(f *Filters, now time.Time) int {
	if f == nil {
		return now.Hour()
	}
	switch f.TimeOfTravel {
	case TravelDay:
		return DayHour
	case TravelNight:
		return NightHour
	case TravelCustom:
		if f.CustomTime != nil {
			return max(0, min(23, *f.CustomTime))
		}
	}
	return now.Hour()
}
