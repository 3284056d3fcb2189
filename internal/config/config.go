package config

import "time"

// Config holds the process configuration, parsed from environment
// variables with github.com/caarlos0/env.
type Config struct {
	// API
	APIBaseURL     string        `env:"API_BASE_URL,required"`
	APIToken       string        `env:"API_TOKEN"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RetryAttempts  int           `env:"RETRY_ATTEMPTS" envDefault:"3"`

	// Cache
	Namespace          string        `env:"CACHE_NAMESPACE" envDefault:"dashboard"`
	StaleTime          time.Duration `env:"CACHE_STALE_TIME" envDefault:"5s"`
	KPIRefreshInterval time.Duration `env:"KPI_REFRESH_INTERVAL" envDefault:"30s"`
	HistoryLimit       int           `env:"HISTORY_LIMIT" envDefault:"20"`

	// UserID picks whose balance read commands show; redemptions always
	// act on the token holder.
	UserID string `env:"USER_ID"`

	// Snapshot tier
	SnapshotProvider string        `env:"SNAPSHOT_PROVIDER" envDefault:"none"`
	SnapshotCodec    string        `env:"SNAPSHOT_CODEC" envDefault:"json"`
	SnapshotTTL      time.Duration `env:"SNAPSHOT_TTL" envDefault:"10m"`
	SnapshotMaxBytes int64         `env:"SNAPSHOT_MAX_BYTES" envDefault:"67108864"`
	GenStore         string        `env:"GEN_STORE" envDefault:"local"`

	// Redis
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	RedisMaxRetries int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`

	// Observability
	LogBackend  string `env:"LOG_BACKEND" envDefault:"logrus"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.SnapshotProvider == "redis" || c.GenStore == "redis"
}
