// Package main provides the entrypoint for the SafeWalk background worker.
// It delivers panic alerts from Pub/Sub and keeps the signal caches warm.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/api/response"
	"github.com/safewalk/safewalk/internal/config"
	"github.com/safewalk/safewalk/internal/emergency"
	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/internal/telemetry"
	"github.com/safewalk/safewalk/internal/traffic"
	"github.com/safewalk/safewalk/internal/traffic/tomtom"
	"github.com/safewalk/safewalk/internal/weather"
	"github.com/safewalk/safewalk/internal/weather/openweathermap"
	"github.com/safewalk/safewalk/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// refreshInterval is how often hotspot caches are rewarmed without a trigger.
const refreshInterval = 5 * time.Minute

func main() {
	const serviceName = "safewalk-worker"

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
		Int("hotspots", len(cfg.Worker.Hotspots)).
		Msg("starting SafeWalk worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to create provider metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	registry := resilience.NewRegistry()

	jobCfg := worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Hotspots:       cfg.Worker.Hotspots,
			Concurrency:    cfg.Worker.Concurrency,
			Timeout:        cfg.Worker.RefreshTimeout,
			RefreshWeather: cfg.Providers.OpenWeatherMapAPIKey != "",
			RefreshTraffic: cfg.Providers.TomTomAPIKey != "",
		},
		Logger: log.With().Str("component", "refresh").Logger(),
	}
	if jobCfg.Config.RefreshWeather {
		jobCfg.Weather = weather.NewService(weather.ServiceConfig{
			Provider: openweathermap.NewClient(openweathermap.ClientConfig{
				APIKey:     cfg.Providers.OpenWeatherMapAPIKey,
				HTTPClient: providerClient(openweathermap.ProviderName, registry, providerMetrics),
				Logger:     log.With().Str("provider", openweathermap.ProviderName).Logger(),
			}),
			Logger:   log.With().Str("component", "weather").Logger(),
			Recorder: providerMetrics,
		})
	}
	if jobCfg.Config.RefreshTraffic {
		jobCfg.Traffic = traffic.NewService(traffic.ServiceConfig{
			Provider: tomtom.NewClient(tomtom.ClientConfig{
				APIKey:     cfg.Providers.TomTomAPIKey,
				HTTPClient: providerClient(tomtom.ProviderName, registry, providerMetrics),
				Logger:     log.With().Str("provider", tomtom.ProviderName).Logger(),
			}),
			Logger:   log.With().Str("component", "traffic").Logger(),
			Recorder: providerMetrics,
		})
	}
	refresh := worker.NewRefreshJob(jobCfg)

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Notifier: emergency.NewLogNotifier(log.With().Str("component", "notifier").Logger()),
		Refresh:  refresh,
		Logger:   log.With().Str("component", "dispatcher").Logger(),
	})

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:    cfg.PubSub.ProjectID,
			Subscription: cfg.PubSub.Subscription,
			Dispatcher:   dispatcher,
			Logger:       log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() { _ = handler.Close() }()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	} else {
		log.Warn().Msg("pubsub disabled, panic alerts will not be delivered")
	}

	if len(refresh.Hotspots()) > 0 {
		go runRefreshLoop(ctx, refresh, log)
	}

	// The health endpoint keeps the worker routable on platforms that
	// expect an HTTP listener.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, workerHealth{
			Status:  models.HealthStatusOK,
			Version: Version,
			Time:    time.Now().UTC(),
			Refresh: refresh.Stats(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down worker")
	case <-ctx.Done():
		log.Warn().Msg("worker context cancelled, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

type workerHealth struct {
	Status  models.HealthStatus `json:"status"`
	Version string              `json:"version"`
	Time    time.Time           `json:"time"`
	Refresh worker.RefreshStats `json:"refresh"`
}

func runRefreshLoop(ctx context.Context, job *worker.RefreshJob, log zerolog.Logger) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		result := job.Run(ctx)
		log.Debug().
			Int("successful", result.Successful).
			Int("failed", result.Failed).
			Dur("duration", result.Duration).
			Msg("scheduled refresh finished")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func providerClient(name string, registry *resilience.Registry, recorder *telemetry.ProviderMetrics) *resilience.Client {
	clientCfg := resilience.DefaultClientConfig(name)
	clientCfg.Registry = registry
	clientCfg.Recorder = recorder
	return resilience.NewClient(clientCfg)
}
