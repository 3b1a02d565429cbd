package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/cache"
	"github.com/safewalk/safewalk/internal/geo"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache alternatives (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the endpoint quantization in degrees (default: 0.001 ~ 110m).
	// Walking trips are short, so the grid is finer than for driving.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale routes on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// Recorder receives cache hit/miss events (optional).
	Recorder cache.Recorder
}

// Service provides route alternatives with caching.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	gridSize float64
	cache    *cache.Grid[[]Route]
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	gridSize := cfg.CacheGridSize
	if gridSize == 0 {
		gridSize = 0.001
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		gridSize: gridSize,
		cache: cache.NewGrid[[]Route](cache.Config{
			Name:            "routing",
			TTL:             cacheTTL,
			StaleIfErrorTTL: staleIfErrorTTL,
			Recorder:        cfg.Recorder,
			Logger:          cfg.Logger,
		}),
	}
}

// Alternatives returns up to maxAlternatives walking routes from origin to destination.
func (s *Service) Alternatives(ctx context.Context, origin, destination geo.Coordinate, maxAlternatives int) ([]Route, error) {
	if !origin.Valid() {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if !destination.Valid() {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if maxAlternatives <= 0 {
		maxAlternatives = 3
	}

	key := s.cacheKey(origin, destination, maxAlternatives)
	return s.cache.GetOrFetch(ctx, key, func(ctx context.Context) ([]Route, error) {
		s.logger.Debug().
			Float64("origin_lat", origin.Lat).
			Float64("origin_lon", origin.Lon).
			Float64("dest_lat", destination.Lat).
			Float64("dest_lon", destination.Lon).
			Int("max_alternatives", maxAlternatives).
			Str("provider", s.provider.Name()).
			Msg("fetching route alternatives from provider")

		resp, err := s.provider.GetAlternatives(ctx, AlternativesRequest{
			Origin:          origin,
			Destination:     destination,
			MaxAlternatives: maxAlternatives,
		})
		if err != nil {
			s.logger.Error().Err(err).
				Float64("origin_lat", origin.Lat).
				Float64("origin_lon", origin.Lon).
				Float64("dest_lat", destination.Lat).
				Float64("dest_lon", destination.Lon).
				Msg("failed to fetch route alternatives")
			return nil, err
		}
		if len(resp.Routes) == 0 {
			return nil, &Error{
				Provider: s.provider.Name(),
				Code:     "NO_ROUTE",
				Message:  "provider returned no routes",
				Err:      ErrNoRouteFound,
			}
		}
		return resp.Routes, nil
	})
}

// cacheKey quantizes both endpoints.
// Format: {max}:{originCell}:{destCell}.
func (s *Service) cacheKey(origin, destination geo.Coordinate, maxAlternatives int) string {
	return fmt.Sprintf("%d:%s:%s",
		maxAlternatives,
		cache.GridKey(origin.Lat, origin.Lon, s.gridSize),
		cache.GridKey(destination.Lat, destination.Lon, s.gridSize),
	)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// InvalidateCache clears all cached routes.
func (s *Service) InvalidateCache() {
	s.cache.Invalidate()
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}
