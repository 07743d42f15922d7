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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("minimal config", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
server:
  url: http://localhost:8080
`))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
		assert.Equal(t, TransportWebsocket, cfg.Transport())
		assert.Equal(t, time.Duration(0), cfg.StaleTime())
		assert.Equal(t, "", cfg.SnapshotPath())
	})

	t.Run("full config", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
server:
  url: https://sibyl.example.com
  access_token: secret
realtime:
  transport: redis
  redis_addr: localhost:6379
  instance: prod
cache:
  stale_time: 90s
  gc_time: 10m
  debounce: 250ms
  snapshot_path: /tmp/sibyl-snapshot.db
`))
		require.NoError(t, err)
		assert.Equal(t, "secret", cfg.Server.AccessToken)
		assert.Equal(t, TransportRedis, cfg.Transport())
		assert.Equal(t, "localhost:6379", cfg.Realtime.RedisAddr)
		assert.Equal(t, 90*time.Second, cfg.StaleTime())
		assert.Equal(t, 10*time.Minute, cfg.GCTime())
		assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
		assert.Equal(t, "/tmp/sibyl-snapshot.db", cfg.SnapshotPath())
	})

	t.Run("missing file surfaces os.IsNotExist", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [not a map"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})
}

func TestValidate(t *testing.T) {
	t.Run("requires server url", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.url is required")
	})

	t.Run("redis transport requires addr and instance", func(t *testing.T) {
		cfg := &Config{
			Server:   ServerConfig{URL: "http://localhost:8080"},
			Realtime: &RealtimeConfig{Transport: TransportRedis},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis_addr")

		cfg.Realtime.RedisAddr = "localhost:6379"
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "instance")

		cfg.Realtime.Instance = "prod"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects unknown transport", func(t *testing.T) {
		cfg := &Config{
			Server:   ServerConfig{URL: "http://localhost:8080"},
			Realtime: &RealtimeConfig{Transport: "carrier-pigeon"},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown realtime.transport")
	})

	t.Run("rejects malformed durations", func(t *testing.T) {
		cfg := &Config{
			Server: ServerConfig{URL: "http://localhost:8080"},
			Cache:  &CacheConfig{StaleTime: "sixty seconds"},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.stale_time")
	})

	t.Run("rejects non-positive durations", func(t *testing.T) {
		cfg := &Config{
			Server: ServerConfig{URL: "http://localhost:8080"},
			Cache:  &CacheConfig{Debounce: "-300ms"},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	})

	t.Run("empty durations fall back to defaults", func(t *testing.T) {
		cfg := &Config{
			Server: ServerConfig{URL: "http://localhost:8080"},
			Cache:  &CacheConfig{},
		}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, time.Duration(0), cfg.StaleTime())
		assert.Equal(t, time.Duration(0), cfg.Debounce())
	})
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join(".sibyl", "config.yml"))
}
