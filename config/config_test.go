package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  dsn: \"file::memory:\"\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Server.RateLimitPerSec)
	assert.Equal(t, 5, cfg.Server.RateLimitBurst)
	assert.Equal(t, 5*time.Minute, cfg.Server.CacheTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "warn", cfg.Database.LogLevel)
	assert.Equal(t, int64(100), cfg.Maintenance.DefaultInitialHours)
	assert.Equal(t, "Asia/Taipei", cfg.Maintenance.Timezone)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_Values(t *testing.T) {
	body := `
server:
  port: 9090
  cache_ttl_seconds: 30
database:
  driver: sqlite
  dsn: fleet.db
maintenance:
  default_initial_hours: 250
  part_labels:
    engine_oil: Engine oil
metrics:
  enabled: true
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(250), cfg.Maintenance.DefaultInitialHours)
	assert.Equal(t, map[string]string{"engine_oil": "Engine oil"}, cfg.Maintenance.PartLabels)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "皮帶", cfg.Maintenance.PartLabels["belts"])
}
