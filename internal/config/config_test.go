package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safewalk/safewalk/internal/config"
	"github.com/safewalk/safewalk/internal/geo"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Redis.ReportRetention)
	assert.Equal(t, config.RoutingTomTom, cfg.Providers.Routing)
	assert.Equal(t, 10, cfg.Planner.Concurrency)
	assert.Equal(t, 3, cfg.Planner.Alternatives)
	assert.Equal(t, 3*time.Second, cfg.Planner.ProviderTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Planner.ReportWindow)
	assert.Empty(t, cfg.Worker.Hotspots)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.App.RequireTLS)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "APP_PORT=9090\nROUTING_PROVIDER=openrouteservice\nPLANNER_CONCURRENCY=4\nWORKER_HOTSPOTS=52.37,4.90;51.92,4.47\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, config.RoutingOpenRouteService, cfg.Providers.Routing)
	assert.Equal(t, 4, cfg.Planner.Concurrency)
	assert.Equal(t, []geo.Coordinate{{Lat: 52.37, Lon: 4.90}, {Lat: 51.92, Lon: 4.47}}, cfg.Worker.Hotspots)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9090\n"), 0o600))
	t.Setenv("APP_PORT", "7070")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("PLANNER_PROVIDER_TIMEOUT", "1500ms")
	t.Setenv("APP_REQUIRE_TLS", "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.App.Port)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 1500*time.Millisecond, cfg.Planner.ProviderTimeout)
	assert.True(t, cfg.App.RequireTLS)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown routing provider", map[string]string{"ROUTING_PROVIDER": "osrm"}},
		{"zero concurrency", map[string]string{"PLANNER_CONCURRENCY": "0"}},
		{"bad hotspot", map[string]string{"WORKER_HOTSPOTS": "52.37"}},
		{"hotspot out of range", map[string]string{"WORKER_HOTSPOTS": "95,4.9"}},
		{"production without signing key", map[string]string{"APP_ENV": "production"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			assert.Error(t, err)
		})
	}
}

func TestConfig_DatabaseConfig(t *testing.T) {
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_NAME", "walks")
	t.Setenv("DB_MAX_CONNS", "20")

	cfg, err := config.Load("")
	require.NoError(t, err)

	db := cfg.DatabaseConfig()
	assert.Equal(t, "pg", db.Host)
	assert.Equal(t, "walks", db.Database)
	assert.Equal(t, 20, db.MaxConns)
	assert.Equal(t, 2, db.MinConns)
}

func TestParseHotspots(t *testing.T) {
	got, err := config.ParseHotspots(" 52.37 , 4.90 ; ;")
	require.NoError(t, err)
	assert.Equal(t, []geo.Coordinate{{Lat: 52.37, Lon: 4.90}}, got)

	got, err = config.ParseHotspots("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = config.ParseHotspots("north,south")
	assert.Error(t, err)
}
