package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads an optional .env file, then parses the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		logrus.Debugf("no .env file loaded: %v", err)
	} else {
		logrus.Debug("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid API_BASE_URL: %q (must be an absolute http(s) URL)", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: %s (must be positive)", c.RequestTimeout)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("invalid RETRY_ATTEMPTS: %d (must be >= 1)", c.RetryAttempts)
	}
	if c.StaleTime < 0 || c.KPIRefreshInterval < 0 {
		return errors.New("CACHE_STALE_TIME and KPI_REFRESH_INTERVAL must not be negative")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("invalid HISTORY_LIMIT: %d (must be >= 1)", c.HistoryLimit)
	}
	if c.Namespace == "" {
		return errors.New("CACHE_NAMESPACE is required")
	}

	switch c.SnapshotProvider {
	case "none", "ristretto", "bigcache", "redis":
	default:
		return fmt.Errorf("invalid SNAPSHOT_PROVIDER: %q (none|ristretto|bigcache|redis)", c.SnapshotProvider)
	}
	switch c.SnapshotCodec {
	case "json", "msgpack", "cbor":
	default:
		return fmt.Errorf("invalid SNAPSHOT_CODEC: %q (json|msgpack|cbor)", c.SnapshotCodec)
	}
	if c.SnapshotProvider != "none" && c.SnapshotMaxBytes <= 0 {
		return fmt.Errorf("invalid SNAPSHOT_MAX_BYTES: %d", c.SnapshotMaxBytes)
	}
	switch c.GenStore {
	case "local", "redis":
	default:
		return fmt.Errorf("invalid GEN_STORE: %q (local|redis)", c.GenStore)
	}
	if c.UsesRedis() && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when redis is used")
	}

	switch c.LogBackend {
	case "logrus", "zap", "slog":
	default:
		return fmt.Errorf("invalid LOG_BACKEND: %q (logrus|zap|slog)", c.LogBackend)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}
