// Package config loads and validates the client configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport selects the realtime push channel.
const (
	TransportWebsocket = "websocket"
	TransportRedis     = "redis"
)

// Config represents the top-level sibyl.yml configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Realtime *RealtimeConfig `yaml:"realtime,omitempty"`
	Cache    *CacheConfig    `yaml:"cache,omitempty"`
}

// ServerConfig points the client at the backend.
type ServerConfig struct {
	URL         string `yaml:"url"`                    // Required: scheme://host of the backend
	AccessToken string `yaml:"access_token,omitempty"` // Session cookie value; empty when the proxy is open
}

// RealtimeConfig selects and parameterizes the push transport.
type RealtimeConfig struct {
	Transport string `yaml:"transport,omitempty"` // "websocket" (default) or "redis"
	RedisAddr string `yaml:"redis_addr,omitempty"`
	Instance  string `yaml:"instance,omitempty"` // Redis channel namespace
}

// CacheConfig overrides the cache and debounce timing defaults.
// Durations use Go syntax ("60s", "5m", "300ms").
type CacheConfig struct {
	StaleTime    string `yaml:"stale_time,omitempty"`
	GCTime       string `yaml:"gc_time,omitempty"`
	Debounce     string `yaml:"debounce,omitempty"`
	SnapshotPath string `yaml:"snapshot_path,omitempty"` // Warm-start db; empty disables persistence

	staleTime time.Duration
	gcTime    time.Duration
	debounce  time.Duration
}

// Load reads and validates a config file. Callers that can fall back to
// flags distinguish a missing file via os.IsNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// DefaultPath returns ~/.sibyl/config.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".sibyl", "config.yml"), nil
}

// Validate performs strict validation and resolves duration strings.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}

	if c.Realtime != nil {
		switch c.Realtime.Transport {
		case "", TransportWebsocket:
		case TransportRedis:
			if c.Realtime.RedisAddr == "" {
				return fmt.Errorf("realtime.redis_addr is required when transport is %q", TransportRedis)
			}
			if c.Realtime.Instance == "" {
				return fmt.Errorf("realtime.instance is required when transport is %q", TransportRedis)
			}
		default:
			return fmt.Errorf("unknown realtime.transport: %q (expected %q or %q)",
				c.Realtime.Transport, TransportWebsocket, TransportRedis)
		}
	}

	if c.Cache != nil {
		var err error
		if c.Cache.staleTime, err = parseDuration("cache.stale_time", c.Cache.StaleTime); err != nil {
			return err
		}
		if c.Cache.gcTime, err = parseDuration("cache.gc_time", c.Cache.GCTime); err != nil {
			return err
		}
		if c.Cache.debounce, err = parseDuration("cache.debounce", c.Cache.Debounce); err != nil {
			return err
		}
	}

	return nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q (use Go duration syntax like '60s')", field, raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", field)
	}
	return d, nil
}

// Transport returns the configured push transport, defaulting to websocket.
func (c *Config) Transport() string {
	if c.Realtime == nil || c.Realtime.Transport == "" {
		return TransportWebsocket
	}
	return c.Realtime.Transport
}

// StaleTime returns the configured freshness window, or zero when unset
// (the cache applies its own default).
func (c *Config) StaleTime() time.Duration {
	if c.Cache == nil {
		return 0
	}
	return c.Cache.staleTime
}

// GCTime returns the configured retention window, or zero when unset.
func (c *Config) GCTime() time.Duration {
	if c.Cache == nil {
		return 0
	}
	return c.Cache.gcTime
}

// Debounce returns the configured search debounce interval, or zero when
// unset.
func (c *Config) Debounce() time.Duration {
	if c.Cache == nil {
		return 0
	}
	return c.Cache.debounce
}

// SnapshotPath returns the warm-start database path, or empty when
// persistence is disabled.
func (c *Config) SnapshotPath() string {
	if c.Cache == nil {
		return ""
	}
	return c.Cache.SnapshotPath
}
