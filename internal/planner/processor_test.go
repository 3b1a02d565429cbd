package planner

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/routing"
	"github.com/safewalk/safewalk/internal/safety"
)

// scorerFunc adapts a function to Scorer.
type scorerFunc func(ctx context.Context, center geo.Coordinate, hour int) (safety.Score, error)

func (f scorerFunc) Calculate(ctx context.Context, center geo.Coordinate, hour int) (safety.Score, error) {
	return f(ctx, center, hour)
}

func constScorer(isc float64, b safety.Breakdown) Scorer {
	return scorerFunc(func(context.Context, geo.Coordinate, int) (safety.Score, error) {
		return safety.Score{ISC: isc, Breakdown: b}, nil
	})
}

func newTestProcessor(s Scorer) *Processor {
	return NewProcessor(ProcessorConfig{Scorer: s, Logger: zerolog.New(io.Discard)})
}

func legRoute(n int, meters float64) routing.Route {
	return routing.Route{
		Legs:    []routing.Leg{{Points: line(n)}},
		Summary: &routing.Summary{LengthInMeters: meters, TravelTimeInSeconds: meters / 1.4},
	}
}

func TestProcess_Aggregates(t *testing.T) {
	b := safety.Breakdown{Lighting: 1, Weather: 1, Crowd: 0.9, Reports: 1, Traffic: 0.9}
	p := newTestProcessor(constScorer(0.97, b))

	got, err := p.Process(context.Background(), 2, legRoute(10, 5000), Options{Hour: 8, Alpha: 0.7})
	require.NoError(t, err)

	assert.Equal(t, 2, got.Index)
	assert.Len(t, got.Points, 10)
	assert.Len(t, got.Segments, 9)
	assert.InDelta(t, 0.97, got.AvgISC, 1e-9)
	assert.InDelta(t, 0.7*0.03+0.3*0.5, got.Cost, 1e-9)
	assert.Empty(t, got.UnsafeSegments)
	assert.Equal(t, 5000.0, got.DistanceMeters)

	for i, s := range got.Segments {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, geo.Midpoint(s.Start, s.End), s.Center)
	}
}

func TestProcess_PreservesSampledOrderUnderConcurrency(t *testing.T) {
	// Later segments finish first.
	p := NewProcessor(ProcessorConfig{
		Scorer: scorerFunc(func(_ context.Context, c geo.Coordinate, _ int) (safety.Score, error) {
			delay := time.Duration(200-int((c.Lat-52.37)*10000)) * 50 * time.Microsecond
			time.Sleep(delay)
			return safety.Score{ISC: 0.8}, nil
		}),
		Concurrency: 10,
		Logger:      zerolog.New(io.Discard),
	})

	got, err := p.Process(context.Background(), 0, legRoute(500, 2000), Options{})
	require.NoError(t, err)

	want := SampleIndices(500)
	require.Len(t, got.Segments, len(want))
	for i, s := range got.Segments {
		assert.Equal(t, want[i], s.Index)
	}
}

func TestProcess_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	p := NewProcessor(ProcessorConfig{
		Scorer: scorerFunc(func(context.Context, geo.Coordinate, int) (safety.Score, error) {
			n := inFlight.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return safety.Score{ISC: 0.8}, nil
		}),
		Concurrency: 4,
		Logger:      zerolog.New(io.Discard),
	})

	_, err := p.Process(context.Background(), 0, legRoute(60, 1000), Options{})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestProcess_SegmentFailureUsesDefault(t *testing.T) {
	var calls atomic.Int32
	p := newTestProcessor(scorerFunc(func(context.Context, geo.Coordinate, int) (safety.Score, error) {
		if calls.Add(1) == 1 {
			return safety.Score{}, errors.New("boom")
		}
		return safety.Score{ISC: 0.9}, nil
	}))

	got, err := p.Process(context.Background(), 0, legRoute(2, 100), Options{})
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, safety.DefaultISC, got.Segments[0].ISC)
	assert.Equal(t, safety.DefaultBreakdown, got.Segments[0].Breakdown)
	// 0.5 is not below the unsafe threshold.
	assert.Empty(t, got.UnsafeSegments)
}

func TestProcess_UnsafeSegments(t *testing.T) {
	p := newTestProcessor(scorerFunc(func(_ context.Context, c geo.Coordinate, _ int) (safety.Score, error) {
		if c.Lat > 52.3702 {
			return safety.Score{ISC: 0.3}, nil
		}
		return safety.Score{ISC: 0.9}, nil
	}))

	got, err := p.Process(context.Background(), 0, legRoute(5, 400), Options{})
	require.NoError(t, err)

	// Segment centers: .00005, .00015, .00025, .00035 above 52.37.
	require.Len(t, got.UnsafeSegments, 2)
	assert.Equal(t, 2, got.UnsafeSegments[0].SegmentIndex)
	assert.Equal(t, 3, got.UnsafeSegments[1].SegmentIndex)
	assert.Equal(t, got.Segments[2].Center, got.UnsafeSegments[0].Location)
	assert.InDelta(t, 0.6, got.AvgISC, 1e-9)
}

func TestProcess_Filters(t *testing.T) {
	dark := safety.Breakdown{Lighting: 0.6, Weather: 0.7, Crowd: 0.5, Reports: 1, Traffic: 0.7}
	p := newTestProcessor(constScorer(0.8, dark))

	filters := &safety.Filters{RequireStreetlights: true}
	got, err := p.Process(context.Background(), 0, legRoute(4, 300), Options{Filters: filters})
	require.NoError(t, err)

	for _, s := range got.Segments {
		assert.InDelta(t, 0.32, s.ISC, 1e-9)
		assert.Equal(t, 0.8, s.BaseISC)
		assert.True(t, s.Excluded)
	}
	assert.Equal(t, 3, got.ExcludedSegments)
	assert.InDelta(t, 0.32, got.AvgISC, 1e-9)
	assert.Len(t, got.UnsafeSegments, 3)
}

func TestProcess_ExcludedSegmentsAreFlaggedNotDropped(t *testing.T) {
	lit := safety.Breakdown{Lighting: 0.9, Weather: 0.7, Crowd: 0.5, Reports: 1, Traffic: 0.7}
	dark := safety.Breakdown{Lighting: 0.6, Weather: 0.7, Crowd: 0.5, Reports: 1, Traffic: 0.7}
	p := newTestProcessor(scorerFunc(func(_ context.Context, c geo.Coordinate, _ int) (safety.Score, error) {
		if c.Lat > 52.3702 {
			return safety.Score{ISC: 0.8, Breakdown: dark}, nil
		}
		return safety.Score{ISC: 0.8, Breakdown: lit}, nil
	}))

	filters := &safety.Filters{RequireStreetlights: true}
	got, err := p.Process(context.Background(), 0, legRoute(5, 400), Options{Filters: filters})
	require.NoError(t, err)

	require.Len(t, got.Segments, 4)
	assert.Equal(t, 2, got.ExcludedSegments)
	assert.False(t, got.Segments[0].Excluded)
	assert.True(t, got.Segments[3].Excluded)
	// Excluded segments keep their filtered ISC in the route average.
	assert.InDelta(t, (0.8+0.8+0.32+0.32)/4, got.AvgISC, 1e-9)
}

func TestProcess_WeightedCost(t *testing.T) {
	p := newTestProcessor(constScorer(0.8, safety.Breakdown{}))
	ws := 0.5
	filters := &safety.Filters{WeightSafety: &ws}

	got, err := p.Process(context.Background(), 0, legRoute(3, 5000), Options{Alpha: 0.7, Filters: filters})
	require.NoError(t, err)
	assert.InDelta(t, safety.Cost(0.8, 5000, 0.7, &safety.Weights{Safety: 0.5}), got.Cost, 1e-12)
	assert.InDelta(t, 0.25, got.Cost, 1e-9)
}

func TestProcess_DistanceFromGeometryWithoutSummary(t *testing.T) {
	p := newTestProcessor(constScorer(0.8, safety.Breakdown{}))
	route := routing.Route{Legs: []routing.Leg{{Points: line(3)}}}

	got, err := p.Process(context.Background(), 0, route, Options{})
	require.NoError(t, err)
	assert.InDelta(t, geo.PathLength(line(3)), got.DistanceMeters, 1e-9)
}

func TestProcess_InvalidRoute(t *testing.T) {
	p := newTestProcessor(constScorer(0.8, safety.Breakdown{}))
	_, err := p.Process(context.Background(), 0, routing.Route{}, Options{})
	assert.ErrorIs(t, err, ErrInvalidRoute)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProcessor(scorerFunc(func(ctx context.Context, _ geo.Coordinate, _ int) (safety.Score, error) {
		return safety.Score{}, ctx.Err()
	}))
	_, err := p.Process(ctx, 0, legRoute(5, 100), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
