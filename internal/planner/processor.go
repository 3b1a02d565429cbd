package planner

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/routing"
	"github.com/safewalk/safewalk/internal/safety"
)

const tracerName = "github.com/safewalk/safewalk/internal/planner"

// Scorer scores a segment center for an hour of day.
type Scorer interface {
	Calculate(ctx context.Context, center geo.Coordinate, hour int) (safety.Score, error)
}

// ProcessorConfig holds configuration for the route processor.
type ProcessorConfig struct {
	Scorer Scorer

	// Concurrency bounds in-flight segment scoring per route (default: 10).
	Concurrency int

	Logger zerolog.Logger
}

// Options are the per-request processing inputs.
type Options struct {
	Hour    int
	Alpha   float64
	Filters *safety.Filters
}

// Processor scores the sampled segments of a route.
type Processor struct {
	scorer      Scorer
	concurrency int
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Processor{
		scorer:      cfg.Scorer,
		concurrency: concurrency,
		logger:      cfg.Logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// Process extracts, samples and scores route. index is the route's position
// in the provider response. A segment that fails to score gets
// safety.DefaultISC; only ctx cancellation and ErrInvalidRoute are returned.
func (p *Processor) Process(ctx context.Context, index int, route routing.Route, opts Options) (*ProcessedRoute, error) {
	ctx, span := p.tracer.Start(ctx, "planner.ProcessRoute",
		trace.WithAttributes(attribute.Int("route.index", index)),
	)
	defer span.End()

	points, err := ExtractPoints(route)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	distance, travelTime := RouteTotals(route)
	if distance == 0 {
		distance = geo.PathLength(points)
	}

	indices := SampleIndices(len(points))
	segments := make([]ScoredSegment, len(indices))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for slot, i := range indices {
		g.Go(func() error {
			segments[slot] = p.scoreSegment(gctx, index, i, NewSegment(points[i], points[i+1]), opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ProcessedRoute{
		Index:             index,
		Points:            points,
		DistanceMeters:    distance,
		TravelTimeSeconds: travelTime,
		Segments:          segments,
	}
	result.aggregate()
	result.Cost = safety.Cost(result.AvgISC, distance, opts.Alpha, opts.Filters.Weights())

	span.SetAttributes(
		attribute.Int("route.points", len(points)),
		attribute.Int("route.sampled_segments", len(segments)),
		attribute.Float64("route.avg_isc", result.AvgISC),
	)

	p.logger.Debug().
		Int("route_index", index).
		Int("points", len(points)).
		Int("sampled_segments", len(segments)).
		Float64("avg_isc", result.AvgISC).
		Float64("cost", result.Cost).
		Dur("duration", time.Since(start)).
		Msg("route processed")

	return result, nil
}

func (p *Processor) scoreSegment(ctx context.Context, routeIndex, i int, seg Segment, opts Options) ScoredSegment {
	score, err := p.scorer.Calculate(ctx, seg.Center, opts.Hour)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Int("route_index", routeIndex).
			Int("segment_index", i).
			Msg("segment scoring failed, using default")
		score = safety.Score{ISC: safety.DefaultISC, Breakdown: safety.DefaultBreakdown}
	}

	scored := ScoredSegment{
		Segment:   seg,
		Index:     i,
		ISC:       score.ISC,
		BaseISC:   score.ISC,
		Breakdown: score.Breakdown,
	}
	if !opts.Filters.IsZero() {
		scored.ISC = safety.ApplyFilters(score.ISC, score.Breakdown, opts.Filters)
		scored.Excluded = !safety.PassesConstraints(score.ISC, score.Breakdown, opts.Filters)
	}
	return scored
}

// aggregate fills AvgISC, UnsafeSegments and ExcludedSegments.
func (r *ProcessedRoute) aggregate() {
	r.AvgISC = safety.DefaultISC
	r.UnsafeSegments = []UnsafeSegment{}
	if len(r.Segments) == 0 {
		return
	}

	total := 0.0
	for _, s := range r.Segments {
		total += s.ISC
		if s.ISC < UnsafeThreshold {
			r.UnsafeSegments = append(r.UnsafeSegments, UnsafeSegment{
				SegmentIndex: s.Index,
				ISC:          s.ISC,
				Location:     s.Center,
			})
		}
		if s.Excluded {
			r.ExcludedSegments++
		}
	}
	r.AvgISC = total / float64(len(r.Segments))
}
