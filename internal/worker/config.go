// Package worker runs background jobs for SafeWalk: panic alert delivery
// and signal cache warm-up.
package worker

import (
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// Job types carried in the job_type field of queue messages.
const (
	JobPanicAlert    = "panic_alert"
	JobSignalRefresh = "signal_refresh"
	JobHealthCheck   = "health_check"
)

// RefreshConfig holds configuration for the signal refresh job.
type RefreshConfig struct {
	// Hotspots are the points whose weather and traffic are kept warm.
	Hotspots []geo.Coordinate

	// Concurrency bounds in-flight hotspot refreshes (default: 3).
	Concurrency int

	// Timeout applies to each hotspot (default: 30s).
	Timeout time.Duration

	RefreshWeather bool
	RefreshTraffic bool
}

// DefaultRefreshConfig refreshes both signals with no hotspots.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency:    3,
		Timeout:        30 * time.Second,
		RefreshWeather: true,
		RefreshTraffic: true,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
