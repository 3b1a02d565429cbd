package safety

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/incident"
	"github.com/safewalk/safewalk/internal/traffic"
)

const meterName = "github.com/safewalk/safewalk/internal/safety"

var errNoSource = errors.New("source not configured")

// WeatherSource returns the weather safety factor at a point.
type WeatherSource interface {
	WeatherFactor(ctx context.Context, lat, lon float64) (float64, error)
}

// TrafficSource returns traffic flow for a box.
type TrafficSource interface {
	TrafficFlow(ctx context.Context, box geo.BoundingBox) (*traffic.Flow, error)
}

// ReportSource returns incident reports in a box since a time.
type ReportSource interface {
	RecentReports(ctx context.Context, since time.Time, box geo.BoundingBox) ([]incident.Report, error)
}

// CalculatorConfig holds configuration for the ISC calculator.
type CalculatorConfig struct {
	Weather WeatherSource
	Traffic TrafficSource
	Reports ReportSource

	// ProviderTimeout bounds each live factor lookup (default: 3s).
	ProviderTimeout time.Duration

	// ReportWindow is how far back reports count (default: 30 minutes).
	ReportWindow time.Duration

	Logger zerolog.Logger
}

// Calculator scores segment centers. It is safe for concurrent use.
type Calculator struct {
	weather WeatherSource
	traffic TrafficSource
	reports ReportSource

	timeout      time.Duration
	reportWindow time.Duration
	logger       zerolog.Logger
	fallbacks    metric.Int64Counter
	now          func() time.Time
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg CalculatorConfig) *Calculator {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	window := cfg.ReportWindow
	if window <= 0 {
		window = 30 * time.Minute
	}

	fallbacks, err := otel.Meter(meterName).Int64Counter(
		"safety.factor.fallback",
		metric.WithDescription("Live safety factors replaced by their fallback value"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create fallback counter")
		fallbacks, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter("safety.factor.fallback")
	}

	return &Calculator{
		weather:      cfg.Weather,
		traffic:      cfg.Traffic,
		reports:      cfg.Reports,
		timeout:      timeout,
		reportWindow: window,
		logger:       cfg.Logger,
		fallbacks:    fallbacks,
		now:          time.Now,
	}
}

// Calculate scores center for the given hour (0..23). The weather, traffic
// and reports factors are fetched concurrently; a failing source yields its
// fallback value. The only error is ctx ending before scoring finished.
func (c *Calculator) Calculate(ctx context.Context, center geo.Coordinate, hour int) (Score, error) {
	b := Breakdown{
		Lighting: LightingFactor(hour),
		Crowd:    CrowdFactor(hour),
	}

	var g errgroup.Group
	g.Go(func() error {
		b.Weather = c.weatherFactor(ctx, center)
		return nil
	})
	g.Go(func() error {
		b.Traffic = c.trafficFactor(ctx, center)
		return nil
	})
	g.Go(func() error {
		b.Reports = c.reportsFactor(ctx, center)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Score{}, err
	}

	return Score{ISC: Combine(b), Breakdown: b}, nil
}

func (c *Calculator) weatherFactor(ctx context.Context, center geo.Coordinate) float64 {
	if c.weather == nil {
		return c.fallback(ctx, "weather", FallbackWeather, center, errNoSource)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.weather.WeatherFactor(ctx, center.Lat, center.Lon)
	if err != nil {
		return c.fallback(ctx, "weather", FallbackWeather, center, err)
	}
	return clamp01(v)
}

func (c *Calculator) trafficFactor(ctx context.Context, center geo.Coordinate) float64 {
	if c.traffic == nil {
		return c.fallback(ctx, "traffic", FallbackTraffic, center, errNoSource)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	flow, err := c.traffic.TrafficFlow(ctx, geo.Around(center, TrafficBoxDelta))
	if err != nil {
		return c.fallback(ctx, "traffic", FallbackTraffic, center, err)
	}
	return TrafficFactor(flow)
}

func (c *Calculator) reportsFactor(ctx context.Context, center geo.Coordinate) float64 {
	if c.reports == nil {
		return c.fallback(ctx, "reports", FallbackReports, center, errNoSource)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	since := c.now().Add(-c.reportWindow)
	reports, err := c.reports.RecentReports(ctx, since, geo.Around(center, ReportRadiusDegrees))
	if err != nil {
		return c.fallback(ctx, "reports", FallbackReports, center, err)
	}
	return ReportsFactor(CountNearby(center, reports))
}

func (c *Calculator) fallback(ctx context.Context, factor string, value float64, center geo.Coordinate, err error) float64 {
	c.fallbacks.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("factor", factor)))
	c.logger.Warn().
		Err(err).
		Str("factor", factor).
		Float64("lat", center.Lat).
		Float64("lon", center.Lon).
		Float64("fallback", value).
		Msg("safety factor unavailable, using fallback")
	return value
}
