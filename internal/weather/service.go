package weather

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/cache"
	"github.com/safewalk/safewalk/internal/geo"
)

// Provider fetches current weather from an upstream API.
type Provider interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long an observation is reused (default: 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the cache cell size in degrees (default: 0.05, ~5km).
	// Weather is uniform well beyond a walking route, so segments share cells.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving old observations on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// Recorder receives cache hit/miss events (optional).
	Recorder cache.Recorder
}

// Service provides cached weather observations.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	gridSize float64
	cache    *cache.Grid[*Observation]
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	gridSize := cfg.CacheGridSize
	if gridSize == 0 {
		gridSize = 0.05
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		gridSize: gridSize,
		cache: cache.NewGrid[*Observation](cache.Config{
			Name:            "weather",
			TTL:             cacheTTL,
			StaleIfErrorTTL: staleIfErrorTTL,
			Recorder:        cfg.Recorder,
			Logger:          cfg.Logger,
		}),
	}
}

// GetCurrentWeather returns the observation for the grid cell containing the point.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if !(geo.Coordinate{Lat: lat, Lon: lon}).Valid() {
		return nil, ErrInvalidCoordinates
	}

	key := cache.GridKey(lat, lon, s.gridSize)
	return s.cache.GetOrFetch(ctx, key, func(ctx context.Context) (*Observation, error) {
		s.logger.Debug().
			Float64("lat", lat).
			Float64("lon", lon).
			Str("provider", s.provider.Name()).
			Msg("fetching weather from provider")

		obs, err := s.provider.GetCurrentWeather(ctx, lat, lon)
		if err != nil {
			s.logger.Error().Err(err).
				Float64("lat", lat).
				Float64("lon", lon).
				Msg("failed to fetch weather")
			return nil, ErrProviderUnavailable
		}
		return obs, nil
	})
}

// WeatherFactor returns the safety factor for current conditions at the point.
func (s *Service) WeatherFactor(ctx context.Context, lat, lon float64) (float64, error) {
	obs, err := s.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		return 0, err
	}
	return obs.SafetyFactor(), nil
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// InvalidateCache clears all cached observations.
func (s *Service) InvalidateCache() {
	s.cache.Invalidate()
}
