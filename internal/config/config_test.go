package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 7200, cfg.Cache.AreaTTL)
	assert.Equal(t, 7200, cfg.Cache.PageTTL)
	assert.Equal(t, 5, cfg.Throttle.MaxFailures)
	assert.Equal(t, 600, cfg.Throttle.WindowSecs)
	assert.Equal(t, 86400, cfg.Session.TTLSecs)
	assert.Equal(t, 365, cfg.Worker.MaxBookingDays)
	assert.Equal(t, float64(2), cfg.Worker.BackoffFactor)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
app:
  name: arenda
  environment: test
database:
  path: /tmp/test.db
redis:
  address: localhost:6379
  db: 2
cache:
  area_ttl: 60
  page_size: 5
throttle:
  max_failures: 3
  window_secs: 120
api:
  port: 9000
  rate_limit:
    rps: 50
    burst: 100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "arenda", cfg.App.Name)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 60, cfg.Cache.AreaTTL)
	assert.Equal(t, 5, cfg.Cache.PageSize)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, float64(50), cfg.API.RateLimit.RPS)
	assert.Equal(t, 100, cfg.API.RateLimit.Burst)
	assert.Equal(t, 2*time.Minute, cfg.Throttle.Window())
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/env.db")
	t.Setenv("TEST_REDIS_ADDR", "redis:6379")

	path := writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
redis:
  address: ${TEST_REDIS_ADDR}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing database path", func(t *testing.T) {
		path := writeConfig(t, `
api:
  port: 8080
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "database path is required")
	})

	t.Run("negative page size", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/test.db
cache:
  page_size: -1
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "page_size")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "database: [broken")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestDurationHelpers(t *testing.T) {
	cache := CacheConfig{AreaTTL: 10, IndexTTL: 20, DetailTTL: 30, PageTTL: 40}
	assert.Equal(t, 10*time.Second, cache.AreaTTLDuration())
	assert.Equal(t, 20*time.Second, cache.IndexTTLDuration())
	assert.Equal(t, 30*time.Second, cache.DetailTTLDuration())
	assert.Equal(t, 40*time.Second, cache.PageTTLDuration())

	session := SessionConfig{TTLSecs: 3600}
	assert.Equal(t, time.Hour, session.TTL())
}
