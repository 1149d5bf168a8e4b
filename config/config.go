// Package config loads the engine's bootstrap configuration: which
// ManagedCollection backends are wired (Redis / PostgreSQL DSNs), the cron
// schedule for their persistence flush, and the ambient logging/metrics
// settings. Layered the way the teacher layers it: typed defaults, then an
// optional YAML file, then environment-variable overrides via envdecode.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the engine's structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"RULECORE_LOG_LEVEL"`
	Format string `yaml:"format" env:"RULECORE_LOG_FORMAT"`
}

// RedisConfig controls the Redis-backed ManagedCollection handler.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"RULECORE_REDIS_ADDR"`
	Password string `yaml:"password" env:"RULECORE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"RULECORE_REDIS_DB"`
}

// PostgresConfig controls the PostgreSQL-backed ManagedCollection handler.
type PostgresConfig struct {
	DSN             string `yaml:"dsn" env:"RULECORE_POSTGRES_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"RULECORE_POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"RULECORE_POSTGRES_MAX_IDLE_CONNS"`
	MigrateOnStart  bool   `yaml:"migrate_on_start" env:"RULECORE_POSTGRES_MIGRATE_ON_START"`
	MigrationsPath  string `yaml:"migrations_path" env:"RULECORE_POSTGRES_MIGRATIONS_PATH"`
}

// PersistenceConfig controls the cron-driven flush of managed collections
// back to their handlers.
type PersistenceConfig struct {
	// FlushSchedule is a robfig/cron/v3 expression, e.g. "*/30 * * * * *".
	FlushSchedule string `yaml:"flush_schedule" env:"RULECORE_PERSIST_SCHEDULE"`
	// RateLimitPerSecond bounds how many flush operations run per second,
	// smoothing bursts when many collections come due at once.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" env:"RULECORE_PERSIST_RATE_LIMIT"`
}

// MetricsConfig controls the Prometheus metrics registry.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"RULECORE_METRICS_ENABLED"`
	Namespace string `yaml:"namespace" env:"RULECORE_METRICS_NAMESPACE"`
}

// Config is the engine's top-level bootstrap configuration.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			MigrateOnStart: true,
			MigrationsPath: "file://migrations",
		},
		Persistence: PersistenceConfig{
			FlushSchedule:      "*/30 * * * * *",
			RateLimitPerSecond: 10,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "rulecore",
		},
	}
}

// Load reads a .env file (if present), an optional YAML config file named
// by RULECORE_CONFIG_FILE (defaulting to "configs/rulecore.yaml"), then
// applies environment-variable overrides on top.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("RULECORE_CONFIG_FILE"))
	if path == "" {
		path = "configs/rulecore.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile loads configuration from a specific YAML file, with no
// environment-variable overlay. Used by tests and by tools that want a
// fully file-driven config.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
