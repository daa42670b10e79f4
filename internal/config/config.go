// Package config loads server configuration from defaults, an optional YAML
// file and SHRUBBERY_ environment variables.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

// StorageTypes lists every accepted storage_type value
var StorageTypes = []string{StorageMemory, StorageRedis, StorageSQLite, StoragePostgres, StorageMongo}

// Config contains process configuration
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080"
	Addr string `koanf:"addr"`

	// LogLevel controls verbosity: debug, info, warn, error
	LogLevel string `koanf:"log_level"`

	// StorageType selects the backend; see StorageTypes
	StorageType string `koanf:"storage_type"`

	RedisURL          string        `koanf:"redis_url"`
	SQLitePath        string        `koanf:"sqlite_path"`
	PostgresDSN       string        `koanf:"postgres_dsn"`
	MongoURI          string        `koanf:"mongo_uri"`
	MongoDatabase     string        `koanf:"mongo_database"`
	MongoTransactions bool          `koanf:"mongo_transactions"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout"`

	// MaxVotePoints bounds the points a single vote may carry
	MaxVotePoints int `koanf:"max_vote_points"`

	// ShrubLeaderboardDefaultLimit applies when a request gives no limit;
	// ShrubLeaderboardMaxLimit caps any requested limit.
	ShrubLeaderboardDefaultLimit int `koanf:"shrub_leaderboard_default_limit"`
	ShrubLeaderboardMaxLimit     int `koanf:"shrub_leaderboard_max_limit"`

	// OTelEndpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	OTelEndpoint string `koanf:"otel_endpoint"`

	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New returns a Config populated with defaults
func New() *Config {
	return &Config{
		Addr:                         ":8080",
		LogLevel:                     "info",
		StorageType:                  StorageMemory,
		SQLitePath:                   "shrubbery.db",
		MongoDatabase:                "shrubbery",
		ConnectTimeout:               10 * time.Second,
		MaxVotePoints:                10,
		ShrubLeaderboardDefaultLimit: 50,
		ShrubLeaderboardMaxLimit:     100,
		MetricsEnabled:               true,
	}
}

// Validate checks the configuration is usable. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if !slices.Contains(StorageTypes, c.StorageType) {
		return invalid("storage_type %q must be one of %s", c.StorageType, strings.Join(StorageTypes, ", "))
	}

	switch c.StorageType {
	case StorageRedis:
		if c.RedisURL == "" {
			return invalid("redis_url required when storage_type is redis")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite_path required when storage_type is sqlite")
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return invalid("postgres_dsn required when storage_type is postgres")
		}
	case StorageMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return invalid("mongo_uri and mongo_database required when storage_type is mongo")
		}
	}

	if c.ConnectTimeout <= 0 {
		return invalid("connect_timeout must be positive")
	}
	if c.MaxVotePoints <= 0 {
		return invalid("max_vote_points must be positive")
	}
	if c.ShrubLeaderboardDefaultLimit <= 0 || c.ShrubLeaderboardMaxLimit <= 0 {
		return invalid("shrub leaderboard limits must be positive")
	}
	if c.ShrubLeaderboardDefaultLimit > c.ShrubLeaderboardMaxLimit {
		return invalid("shrub_leaderboard_default_limit %d exceeds shrub_leaderboard_max_limit %d",
			c.ShrubLeaderboardDefaultLimit, c.ShrubLeaderboardMaxLimit)
	}
	return nil
}

// ParseLogLevel maps a level name to its slog.Level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, invalid("unknown log_level %q", level)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
