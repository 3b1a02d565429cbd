package traffic

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/cache"
	"github.com/safewalk/safewalk/internal/geo"
)

// ServiceConfig holds configuration for the traffic service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long a flow sample is reused (default: 2 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the cache cell size in degrees (default: 0.005, ~500m).
	CacheGridSize float64

	// StaleIfErrorTTL allows serving old samples on provider errors (default: 10 minutes).
	StaleIfErrorTTL time.Duration

	// Recorder receives cache hit/miss events (optional).
	Recorder cache.Recorder
}

// Service provides cached traffic flow.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	gridSize float64
	cache    *cache.Grid[*Flow]
}

// NewService creates a new traffic service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 2 * time.Minute
	}

	gridSize := cfg.CacheGridSize
	if gridSize == 0 {
		gridSize = 0.005
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 10 * time.Minute
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		gridSize: gridSize,
		cache: cache.NewGrid[*Flow](cache.Config{
			Name:            "traffic",
			TTL:             cacheTTL,
			StaleIfErrorTTL: staleIfErrorTTL,
			Recorder:        cfg.Recorder,
			Logger:          cfg.Logger,
		}),
	}
}

// TrafficFlow returns the flow sampled at the center of box.
func (s *Service) TrafficFlow(ctx context.Context, box geo.BoundingBox) (*Flow, error) {
	if box.MinLat > box.MaxLat || box.MinLon > box.MaxLon {
		return nil, ErrInvalidBoundingBox
	}
	center := box.Center()
	if !center.Valid() {
		return nil, ErrInvalidBoundingBox
	}

	key := cache.GridKey(center.Lat, center.Lon, s.gridSize)
	return s.cache.GetOrFetch(ctx, key, func(ctx context.Context) (*Flow, error) {
		s.logger.Debug().
			Float64("lat", center.Lat).
			Float64("lon", center.Lon).
			Str("provider", s.provider.Name()).
			Msg("fetching traffic flow from provider")

		flow, err := s.provider.FlowAt(ctx, center)
		if err != nil {
			s.logger.Warn().Err(err).
				Float64("lat", center.Lat).
				Float64("lon", center.Lon).
				Msg("failed to fetch traffic flow")
			return nil, err
		}
		return flow, nil
	})
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}
