// Package main provides the entrypoint for the SafeWalk API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api"
	"github.com/safewalk/safewalk/internal/api/handler"
	"github.com/safewalk/safewalk/internal/api/middleware"
	"github.com/safewalk/safewalk/internal/auth"
	"github.com/safewalk/safewalk/internal/config"
	"github.com/safewalk/safewalk/internal/database"
	"github.com/safewalk/safewalk/internal/emergency"
	"github.com/safewalk/safewalk/internal/incident"
	"github.com/safewalk/safewalk/internal/planner"
	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/internal/routing"
	"github.com/safewalk/safewalk/internal/routing/openrouteservice"
	routingtomtom "github.com/safewalk/safewalk/internal/routing/tomtom"
	"github.com/safewalk/safewalk/internal/safety"
	"github.com/safewalk/safewalk/internal/telemetry"
	"github.com/safewalk/safewalk/internal/traffic"
	traffictomtom "github.com/safewalk/safewalk/internal/traffic/tomtom"
	"github.com/safewalk/safewalk/internal/weather"
	"github.com/safewalk/safewalk/internal/weather/openweathermap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// devSigningKey is only accepted outside production when JWT_SIGNING_KEY is unset.
const devSigningKey = "safewalk-development-signing-key"

func main() {
	const serviceName = "safewalk-api"

	cfg, err := config.Load(".env")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := telemetry.NewLogger(os.Stdout, telemetry.LoggerConfig{
		Service: serviceName,
		Version: Version,
		Level:   cfg.App.LogLevel,
		Format:  cfg.App.LogFormat,
	})

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting SafeWalk API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricInterval: cfg.Telemetry.MetricInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().Str("endpoint", cfg.Telemetry.OTLPEndpoint).Msg("telemetry enabled")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to create HTTP metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to create provider metrics")
		os.Exit(1)
	}

	registry := resilience.NewRegistry()
	readiness := make(map[string]handler.Pinger)

	// Storage
	var (
		reportRepo    incident.Repository  = incident.NewInMemoryRepository()
		emergencyRepo emergency.Repository = emergency.NewInMemoryRepository()
		pool          *pgxpool.Pool
	)
	if cfg.Database.Enabled {
		pool, err = database.Connect(ctx, cfg.DatabaseConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("failed to migrate database")
			}
		}
		reportRepo = incident.NewPostgresRepository(pool)
		emergencyRepo = emergency.NewPostgresRepository(pool)
		readiness["postgres"] = pool
		log.Info().Str("host", cfg.Database.Host).Msg("using postgres repositories")
	} else {
		log.Warn().Msg("database disabled, using in-memory repositories")
	}

	var window incident.HotWindow
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		redisWindow := incident.NewRedisWindow(rdb, incident.RedisWindowConfig{
			Retention: cfg.Redis.ReportRetention,
			Logger:    log.With().Str("component", "report_window").Logger(),
		})
		window = redisWindow
		readiness["redis"] = redisWindow
	}

	reports := incident.NewService(incident.ServiceConfig{
		Repository: reportRepo,
		Window:     window,
		Logger:     log.With().Str("component", "incident").Logger(),
	})

	var publisher emergency.Publisher
	if cfg.PubSub.ProjectID != "" {
		pub, err := emergency.NewPubSubPublisher(ctx, emergency.PubSubPublisherConfig{
			ProjectID: cfg.PubSub.ProjectID,
			TopicID:   cfg.PubSub.AlertTopic,
			Logger:    log.With().Str("component", "alert_publisher").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create alert publisher")
		}
		defer func() { _ = pub.Close() }()
		publisher = pub
	} else {
		log.Warn().Msg("pubsub disabled, panic alerts are stored but not dispatched")
	}

	emergencySvc := emergency.NewService(emergency.ServiceConfig{
		Repository: emergencyRepo,
		Publisher:  publisher,
		Logger:     log.With().Str("component", "emergency").Logger(),
	})

	// Providers
	routes := newRoutingService(cfg, registry, providerMetrics, log)

	calcCfg := safety.CalculatorConfig{
		Reports:         reports,
		ProviderTimeout: cfg.Planner.ProviderTimeout,
		ReportWindow:    cfg.Planner.ReportWindow,
		Logger:          log.With().Str("component", "safety").Logger(),
	}
	if cfg.Providers.OpenWeatherMapAPIKey != "" {
		calcCfg.Weather = newWeatherService(cfg, registry, providerMetrics, log)
	} else {
		log.Warn().Msg("OPENWEATHERMAP_API_KEY not set, weather factor uses its fallback")
	}
	if cfg.Providers.TomTomAPIKey != "" {
		calcCfg.Traffic = newTrafficService(cfg, registry, providerMetrics, log)
	} else {
		log.Warn().Msg("TOMTOM_API_KEY not set, traffic factor uses its fallback")
	}

	processor := planner.NewProcessor(planner.ProcessorConfig{
		Scorer:      safety.NewCalculator(calcCfg),
		Concurrency: cfg.Planner.Concurrency,
		Logger:      log.With().Str("component", "processor").Logger(),
	})
	routePlanner := planner.New(planner.Config{
		Routes:       routes,
		Processor:    processor,
		Alternatives: cfg.Planner.Alternatives,
		Logger:       log.With().Str("component", "planner").Logger(),
	})

	signingKey := cfg.Auth.JWTSigningKey
	if signingKey == "" {
		log.Warn().Msg("JWT_SIGNING_KEY not set, using development key")
		signingKey = devSigningKey
	}
	verifier := auth.NewVerifier(auth.Config{
		SigningKey: signingKey,
		Issuer:     cfg.Auth.JWTIssuer,
		Audience:   cfg.Auth.JWTAudience,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    metrics,
		Verifier:   verifier,
		Planner:    routePlanner,
		Reports:    reports,
		Emergency:  emergencySvc,
		Registry:   registry,
		Readiness:  readiness,
		RequireTLS: cfg.App.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newRoutingService(cfg *config.Config, registry *resilience.Registry, recorder *telemetry.ProviderMetrics, log zerolog.Logger) *routing.Service {
	var provider routing.Provider
	switch cfg.Providers.Routing {
	case config.RoutingOpenRouteService:
		if cfg.Providers.OpenRouteServiceKey == "" {
			log.Warn().Msg("ORS_API_KEY not set, routing requests will fail")
		}
		provider = openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:     cfg.Providers.OpenRouteServiceKey,
			HTTPClient: providerClient(openrouteservice.ProviderName, cfg.Providers.RoutingTimeout, registry, recorder),
			Logger:     log.With().Str("provider", openrouteservice.ProviderName).Logger(),
		})
	default:
		if cfg.Providers.TomTomAPIKey == "" {
			log.Warn().Msg("TOMTOM_API_KEY not set, routing requests will fail")
		}
		provider = routingtomtom.NewClient(routingtomtom.ClientConfig{
			APIKey:     cfg.Providers.TomTomAPIKey,
			HTTPClient: providerClient(routingtomtom.ProviderName, cfg.Providers.RoutingTimeout, registry, recorder),
			Logger:     log.With().Str("provider", routingtomtom.ProviderName).Logger(),
		})
	}

	log.Info().Str("provider", provider.Name()).Msg("routing provider configured")

	return routing.NewService(routing.ServiceConfig{
		Provider: provider,
		Logger:   log.With().Str("component", "routing").Logger(),
		Recorder: recorder,
	})
}

func newWeatherService(cfg *config.Config, registry *resilience.Registry, recorder *telemetry.ProviderMetrics, log zerolog.Logger) *weather.Service {
	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.Providers.OpenWeatherMapAPIKey,
		HTTPClient: providerClient(openweathermap.ProviderName, 0, registry, recorder),
		Logger:     log.With().Str("provider", openweathermap.ProviderName).Logger(),
	})
	return weather.NewService(weather.ServiceConfig{
		Provider: client,
		Logger:   log.With().Str("component", "weather").Logger(),
		Recorder: recorder,
	})
}

func newTrafficService(cfg *config.Config, registry *resilience.Registry, recorder *telemetry.ProviderMetrics, log zerolog.Logger) *traffic.Service {
	client := traffictomtom.NewClient(traffictomtom.ClientConfig{
		APIKey:     cfg.Providers.TomTomAPIKey,
		HTTPClient: providerClient(traffictomtom.ProviderName, 0, registry, recorder),
		Logger:     log.With().Str("provider", traffictomtom.ProviderName).Logger(),
	})
	return traffic.NewService(traffic.ServiceConfig{
		Provider: client,
		Logger:   log.With().Str("component", "traffic").Logger(),
		Recorder: recorder,
	})
}

// providerClient builds a resilient client that reports health and latency.
// A zero timeout keeps the resilience default.
func providerClient(name string, timeout time.Duration, registry *resilience.Registry, recorder *telemetry.ProviderMetrics) *resilience.Client {
	clientCfg := resilience.DefaultClientConfig(name)
	if timeout > 0 {
		clientCfg.Timeout = timeout
	}
	clientCfg.Registry = registry
	clientCfg.Recorder = recorder
	return resilience.NewClient(clientCfg)
}
