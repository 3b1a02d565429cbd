package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/routing"
	"github.com/safewalk/safewalk/internal/safety"
)

// DefaultAlpha is the safety weight used when a request sets none.
const DefaultAlpha = 0.7

// DefaultAlternatives is how many routes are requested from the provider.
const DefaultAlternatives = 3

// RouteSource returns walking route alternatives.
type RouteSource interface {
	Alternatives(ctx context.Context, origin, destination geo.Coordinate, maxAlternatives int) ([]routing.Route, error)
}

// Config holds configuration for the planner.
type Config struct {
	Routes    RouteSource
	Processor *Processor

	// Alternatives is the number of routes requested (default: 3).
	Alternatives int

	Logger zerolog.Logger
}

// Planner plans safe walking routes.
type Planner struct {
	routes       RouteSource
	processor    *Processor
	alternatives int
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// New creates a Planner.
func New(cfg Config) *Planner {
	alternatives := cfg.Alternatives
	if alternatives <= 0 {
		alternatives = DefaultAlternatives
	}
	return &Planner{
		routes:       cfg.Routes,
		processor:    cfg.Processor,
		alternatives: alternatives,
		logger:       cfg.Logger,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
}

// Plan fetches alternatives for req, scores each and selects the shortest,
// safest and balanced routes.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	ctx, span := p.tracer.Start(ctx, "planner.Plan")
	defer span.End()

	if err := req.Origin.Validate(); err != nil {
		return nil, fmt.Errorf("%w: origin: %w", ErrInvalidInput, err)
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, fmt.Errorf("%w: destination: %w", ErrInvalidInput, err)
	}

	alpha := DefaultAlpha
	if req.Alpha != nil {
		alpha = safety.ClampAlpha(*req.Alpha)
	}
	now := p.now()
	hour := safety.ResolveHour(req.Filters, now)

	span.SetAttributes(
		attribute.Float64("plan.alpha", alpha),
		attribute.Int("plan.hour", hour),
	)

	candidates, err := p.routes.Alternatives(ctx, req.Origin, req.Destination, p.alternatives)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "routing failed")
		return nil, fmt.Errorf("%w: %w", ErrNoRouteFound, err)
	}
	if len(candidates) == 0 {
		span.SetStatus(codes.Error, "no candidates")
		return nil, ErrNoRouteFound
	}

	opts := Options{Hour: hour, Alpha: alpha, Filters: req.Filters}
	processed := make([]*ProcessedRoute, len(candidates))

	var g errgroup.Group
	for i, route := range candidates {
		g.Go(func() error {
			r, err := p.processor.Process(ctx, i, route, opts)
			if err != nil {
				p.logger.Warn().
					Err(err).
					Int("route_index", i).
					Msg("dropping unprocessable route")
				return nil
			}
			processed[i] = r
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	valid := make([]*ProcessedRoute, 0, len(processed))
	for _, r := range processed {
		if r != nil {
			valid = append(valid, r)
		}
	}

	sel, err := Select(valid)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	p.logger.Info().
		Int("candidates", len(candidates)).
		Int("processed", len(valid)).
		Int("hour", hour).
		Float64("alpha", alpha).
		Int("shortest", sel.Shortest.Index).
		Int("safest", sel.Safest.Index).
		Int("balanced", sel.Balanced.Index).
		Msg("route plan ready")

	return &Plan{
		Selection:   sel,
		Routes:      valid,
		Hour:        hour,
		Alpha:       alpha,
		GeneratedAt: now.UTC(),
	}, nil
}
