package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/safety"
	"github.com/safewalk/safewalk/internal/traffic"
	"github.com/safewalk/safewalk/internal/weather"
)

// WeatherSource is the weather service whose cache the job warms.
type WeatherSource interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error)
}

// TrafficSource is the traffic service whose cache the job warms.
type TrafficSource interface {
	TrafficFlow(ctx context.Context, box geo.BoundingBox) (*traffic.Flow, error)
}

// RefreshJob warms the weather and traffic caches at configured hotspots so
// route scoring near them hits the cache.
type RefreshJob struct {
	config  RefreshConfig
	weather WeatherSource
	traffic TrafficSource
	logger  zerolog.Logger

	mu    sync.Mutex
	stats RefreshStats
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger

	// Sources are optional; a nil source is skipped.
	Weather WeatherSource
	Traffic TrafficSource
}

// NewRefreshJob creates a RefreshJob.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		weather: cfg.Weather,
		traffic: cfg.Traffic,
		logger:  cfg.Logger,
	}
}

// RefreshResult summarizes one run.
type RefreshResult struct {
	StartTime   time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	Errors      []RefreshError
}

// RefreshError is a failed provider call at a hotspot.
type RefreshError struct {
	Provider string
	Point    geo.Coordinate
	Error    string
}

// RefreshStats accumulates results across runs.
type RefreshStats struct {
	Runs            int64         `json:"runs"`
	Successful      int64         `json:"successful"`
	Failed          int64         `json:"failed"`
	LastRunAt       time.Time     `json:"last_run_at"`
	LastRunDuration time.Duration `json:"last_run_duration_ns"`
}

// Run refreshes every configured hotspot.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunPoints(ctx, j.config.Hotspots)
}

// RunPoints refreshes points with at most Concurrency in flight. A point
// succeeds when every configured source answered.
func (j *RefreshJob) RunPoints(ctx context.Context, points []geo.Coordinate) *RefreshResult {
	start := time.Now()
	result := &RefreshResult{StartTime: start, TotalPoints: len(points)}

	j.logger.Info().
		Int("total_points", len(points)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting signal refresh")

	perPoint := make([][]RefreshError, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for i, p := range points {
		g.Go(func() error {
			perPoint[i] = j.refreshPoint(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, errs := range perPoint {
		if len(errs) == 0 {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, errs...)
	}
	result.Duration = time.Since(start)

	j.record(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("signal refresh completed")

	return result
}

func (j *RefreshJob) refreshPoint(ctx context.Context, p geo.Coordinate) []RefreshError {
	if err := ctx.Err(); err != nil {
		return []RefreshError{{Provider: "all", Point: p, Error: err.Error()}}
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var errs []RefreshError
	if j.config.RefreshWeather && j.weather != nil {
		if _, err := j.weather.GetCurrentWeather(ctx, p.Lat, p.Lon); err != nil {
			errs = append(errs, RefreshError{Provider: "weather", Point: p, Error: err.Error()})
		}
	}
	if j.config.RefreshTraffic && j.traffic != nil {
		// Same box the safety calculator queries, so the cache keys match.
		if _, err := j.traffic.TrafficFlow(ctx, geo.Around(p, safety.TrafficBoxDelta)); err != nil {
			errs = append(errs, RefreshError{Provider: "traffic", Point: p, Error: err.Error()})
		}
	}

	for _, e := range errs {
		j.logger.Warn().
			Str("provider", e.Provider).
			Float64("lat", p.Lat).
			Float64("lon", p.Lon).
			Str("error", e.Error).
			Msg("hotspot refresh failed")
	}
	return errs
}

func (j *RefreshJob) record(r *RefreshResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stats.Runs++
	j.stats.Successful += int64(r.Successful)
	j.stats.Failed += int64(r.Failed)
	j.stats.LastRunAt = r.StartTime.Add(r.Duration)
	j.stats.LastRunDuration = r.Duration
}

// Stats returns a copy of the accumulated stats.
func (j *RefreshJob) Stats() RefreshStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// Hotspots returns the configured hotspots.
func (j *RefreshJob) Hotspots() []geo.Coordinate {
	return j.config.Hotspots
}
