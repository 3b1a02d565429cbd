// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/safewalk/safewalk/internal/database"
	"github.com/safewalk/safewalk/internal/geo"
)

// Routing provider names accepted by ROUTING_PROVIDER.
const (
	RoutingTomTom           = "tomtom"
	RoutingOpenRouteService = "openrouteservice"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Providers ProvidersConfig
	Telemetry TelemetryConfig
	PubSub    PubSubConfig
	Planner   PlannerConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Env        string
	Port       string
	LogLevel   string
	LogFormat  string
	RequireTLS bool
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig configures the recent-reports window. An empty Addr disables it.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	ReportRetention time.Duration
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

type ProvidersConfig struct {
	Routing              string
	TomTomAPIKey         string
	OpenRouteServiceKey  string
	OpenWeatherMapAPIKey string
	RoutingTimeout       time.Duration
}

type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	SampleRatio    float64
	MetricInterval time.Duration
}

// PubSubConfig configures panic alert delivery. An empty ProjectID disables publishing.
type PubSubConfig struct {
	ProjectID    string
	AlertTopic   string
	Subscription string
}

type PlannerConfig struct {
	Concurrency     int
	Alternatives    int
	ProviderTimeout time.Duration
	ReportWindow    time.Duration
}

type WorkerConfig struct {
	Concurrency    int
	RefreshTimeout time.Duration
	Hotspots       []geo.Coordinate
}

var defaults = map[string]any{
	"APP_ENV":         "development",
	"APP_PORT":        "8080",
	"APP_REQUIRE_TLS": false,
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"DB_ENABLED":           false,
	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "safewalk",
	"DB_PASSWORD":          "localdev",
	"DB_NAME":              "safewalk",
	"DB_SSL_MODE":          "disable",
	"DB_MAX_CONNS":         10,
	"DB_MIN_CONNS":         2,
	"DB_CONN_MAX_LIFETIME": "5m",
	"DB_AUTO_MIGRATE":      true,

	"REDIS_ADDR":             "",
	"REDIS_PASSWORD":         "",
	"REDIS_DB":               0,
	"REDIS_REPORT_RETENTION": "2h",

	"JWT_SIGNING_KEY": "",
	"JWT_ISSUER":      "",
	"JWT_AUDIENCE":    "",

	"ROUTING_PROVIDER":       RoutingTomTom,
	"TOMTOM_API_KEY":         "",
	"ORS_API_KEY":            "",
	"OPENWEATHERMAP_API_KEY": "",
	"ROUTING_TIMEOUT":        "10s",

	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_TRACES_SAMPLE_RATIO":    1.0,
	"OTEL_METRIC_INTERVAL":        "15s",

	"PUBSUB_PROJECT_ID":   "",
	"PUBSUB_ALERT_TOPIC":  "safewalk-alerts",
	"PUBSUB_SUBSCRIPTION": "safewalk-worker",

	"PLANNER_CONCURRENCY":      10,
	"PLANNER_ALTERNATIVES":     3,
	"PLANNER_PROVIDER_TIMEOUT": "3s",
	"PLANNER_REPORT_WINDOW":    "30m",

	"WORKER_CONCURRENCY":     3,
	"WORKER_REFRESH_TIMEOUT": "30s",
	"WORKER_HOTSPOTS":        "",
}

// Load reads configuration from path (a .env file, optional) and the
// environment. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}
	v.AutomaticEnv()

	hotspots, err := ParseHotspots(v.GetString("WORKER_HOTSPOTS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:        v.GetString("APP_ENV"),
			Port:       v.GetString("APP_PORT"),
			LogLevel:   v.GetString("LOG_LEVEL"),
			LogFormat:  v.GetString("LOG_FORMAT"),
			RequireTLS: v.GetBool("APP_REQUIRE_TLS"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DB_ENABLED"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxConns:        v.GetInt("DB_MAX_CONNS"),
			MinConns:        v.GetInt("DB_MIN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:            v.GetString("REDIS_ADDR"),
			Password:        v.GetString("REDIS_PASSWORD"),
			DB:              v.GetInt("REDIS_DB"),
			ReportRetention: v.GetDuration("REDIS_REPORT_RETENTION"),
		},
		Auth: AuthConfig{
			JWTSigningKey: v.GetString("JWT_SIGNING_KEY"),
			JWTIssuer:     v.GetString("JWT_ISSUER"),
			JWTAudience:   v.GetString("JWT_AUDIENCE"),
		},
		Providers: ProvidersConfig{
			Routing:              strings.ToLower(v.GetString("ROUTING_PROVIDER")),
			TomTomAPIKey:         v.GetString("TOMTOM_API_KEY"),
			OpenRouteServiceKey:  v.GetString("ORS_API_KEY"),
			OpenWeatherMapAPIKey: v.GetString("OPENWEATHERMAP_API_KEY"),
			RoutingTimeout:       v.GetDuration("ROUTING_TIMEOUT"),
		},
		Telemetry: TelemetryConfig{
			Enabled:        v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio:    v.GetFloat64("OTEL_TRACES_SAMPLE_RATIO"),
			MetricInterval: v.GetDuration("OTEL_METRIC_INTERVAL"),
		},
		PubSub: PubSubConfig{
			ProjectID:    v.GetString("PUBSUB_PROJECT_ID"),
			AlertTopic:   v.GetString("PUBSUB_ALERT_TOPIC"),
			Subscription: v.GetString("PUBSUB_SUBSCRIPTION"),
		},
		Planner: PlannerConfig{
			Concurrency:     v.GetInt("PLANNER_CONCURRENCY"),
			Alternatives:    v.GetInt("PLANNER_ALTERNATIVES"),
			ProviderTimeout: v.GetDuration("PLANNER_PROVIDER_TIMEOUT"),
			ReportWindow:    v.GetDuration("PLANNER_REPORT_WINDOW"),
		},
		Worker: WorkerConfig{
			Concurrency:    v.GetInt("WORKER_CONCURRENCY"),
			RefreshTimeout: v.GetDuration("WORKER_REFRESH_TIMEOUT"),
			Hotspots:       hotspots,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return errors.New("APP_PORT must not be empty")
	}
	switch c.Providers.Routing {
	case RoutingTomTom, RoutingOpenRouteService:
	default:
		return fmt.Errorf("unknown ROUTING_PROVIDER %q", c.Providers.Routing)
	}
	if c.Planner.Concurrency <= 0 {
		return fmt.Errorf("PLANNER_CONCURRENCY must be positive, got %d", c.Planner.Concurrency)
	}
	if c.Planner.Alternatives <= 0 {
		return fmt.Errorf("PLANNER_ALTERNATIVES must be positive, got %d", c.Planner.Alternatives)
	}
	if c.IsProduction() && c.Auth.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required in production")
	}
	if c.Database.Enabled && c.Database.MinConns > c.Database.MaxConns {
		return errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DatabaseConfig returns the connection settings for database.Connect.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// ParseHotspots parses "lat,lon;lat,lon" into coordinates.
func ParseHotspots(raw string) ([]geo.Coordinate, error) {
	var out []geo.Coordinate
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid hotspot %q: want lat,lon", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hotspot latitude %q: %w", fields[0], err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hotspot longitude %q: %w", fields[1], err)
		}
		c := geo.Coordinate{Lat: lat, Lon: lon}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid hotspot %q: %w", part, err)
		}
		out = append(out, c)
	}
	return out, nil
}
