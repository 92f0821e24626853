package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty temp dir so no config.yaml or .env is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30, cfg.Server.RequestTimeoutSecs)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	g := cfg.Geocode
	assert.Equal(t, "https://nominatim.openstreetmap.org", g.NominatimURL)
	assert.Equal(t, "https://viacep.com.br", g.ViaCEPURL)
	assert.InDelta(t, 1.0, g.RateLimit, 0.001)
	assert.InDelta(t, 0.5, g.AcceptThreshold, 0.001)
	assert.InDelta(t, 0.3, g.KeepThreshold, 0.001)
	assert.Equal(t, "Paraguaçu Paulista", g.Region.Municipality)
	assert.Equal(t, "SP", g.Region.State)
	assert.InDelta(t, -22.4114, g.Region.CenterLat, 1e-6)
	assert.InDelta(t, 100, g.Weights.MunicipalityMatch, 0.001)
	assert.InDelta(t, 25, g.Weights.RoadMatch, 0.001)
	assert.InDelta(t, 0.4, g.Weights.HouseNumberConf, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins: ["https://painel.example.org"]
geocode:
  accept_threshold: 0.6
  region:
    municipality: Assis
    center_lat: -22.66
  weights:
    road_match: 40
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://painel.example.org"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 0.6, cfg.Geocode.AcceptThreshold, 0.001)
	assert.Equal(t, "Assis", cfg.Geocode.Region.Municipality)
	assert.InDelta(t, -22.66, cfg.Geocode.Region.CenterLat, 1e-6)
	assert.InDelta(t, 40, cfg.Geocode.Weights.RoadMatch, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, "SP", cfg.Geocode.Region.State)
	assert.InDelta(t, 50, cfg.Geocode.Weights.HouseNumber, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("ZOONOSES_SERVER_PORT", "7070")
	t.Setenv("ZOONOSES_GEOCODE_KEEP_THRESHOLD", "0.25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.InDelta(t, 0.25, cfg.Geocode.KeepThreshold, 0.001)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ZOONOSES_STORE_DATABASE_URL=postgres://localhost/zoonoses\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ZOONOSES_STORE_DATABASE_URL") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/zoonoses", cfg.Store.DatabaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		msg    string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"accept above one", func(c *Config) { c.Geocode.AcceptThreshold = 1.5 }, "accept_threshold"},
		{"negative keep", func(c *Config) { c.Geocode.KeepThreshold = -0.1 }, "keep_threshold"},
		{"zero rate", func(c *Config) { c.Geocode.RateLimit = 0 }, "rate_limit"},
		{"no municipality", func(c *Config) { c.Geocode.Region.Municipality = " " }, "municipality"},
		{"empty bbox", func(c *Config) { c.Geocode.Region.MinLat = c.Geocode.Region.MaxLat }, "bounding box"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
	assert.NoError(t, base.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
