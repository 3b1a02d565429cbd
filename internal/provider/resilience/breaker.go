// Package resilience wraps outbound provider calls with timeouts, retries and
// circuit breakers, and tracks provider health for the ops endpoints.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a provider circuit breaker.
type BreakerConfig struct {
	Name string

	// MaxRequests allowed through while half-open. Default: 1
	MaxRequests uint32

	// Interval clears counts while closed. Zero keeps counts until a state change.
	Interval time.Duration

	// OpenFor is how long the breaker stays open before probing. Default: 30s
	OpenFor time.Duration

	// Trip decides when the breaker opens. Default: TripOnFailureRatio.
	Trip func(counts gobreaker.Counts) bool

	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns the breaker used for signal providers.
// Signal lookups happen per route segment, so the breaker reopens faster
// than a typical API client would.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		OpenFor:     30 * time.Second,
		Trip:        TripOnFailureRatio,
	}
}

// TripOnFailureRatio opens after at least 5 requests with half or more failing.
func TripOnFailureRatio(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

func newBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.OpenFor == 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Trip == nil {
		cfg.Trip = TripOnFailureRatio
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   cfg.Trip,
		OnStateChange: cfg.OnStateChange,
	})
}
