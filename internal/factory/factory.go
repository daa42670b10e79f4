package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/shrubbery/internal/config"
	"github.com/mcoot/shrubbery/internal/dependencies/clock"
	"github.com/mcoot/shrubbery/internal/metrics"
	"github.com/mcoot/shrubbery/internal/services/ledger"
	"github.com/mcoot/shrubbery/internal/services/player"
	"github.com/mcoot/shrubbery/internal/services/shrub"
	"github.com/mcoot/shrubbery/internal/storage"
	"github.com/mcoot/shrubbery/internal/storage/memory"
	mongostorage "github.com/mcoot/shrubbery/internal/storage/mongo"
	redisstorage "github.com/mcoot/shrubbery/internal/storage/redis"
	"github.com/mcoot/shrubbery/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypeSQLite   = config.StorageSQLite
	StorageTypePostgres = config.StoragePostgres
	StorageTypeMongo    = config.StorageMongo
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Metrics *metrics.Manager

	// Services
	PlayerService *player.Service
	Ledger        *ledger.Ledger
	ShrubService  *shrub.Service
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Metrics receives service metrics (optional)
	Metrics *metrics.Manager
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// Backend settings; the one matching StorageType is required
	RedisConfig *redisstorage.Config
	SQLConfig   *sqlstore.Config
	MongoConfig *mongostorage.Config
	// MaxVotePoints bounds vote points (0 uses the ledger default)
	MaxVotePoints int
	// ShrubConfig holds shrub leaderboard limits (zero value uses defaults)
	ShrubConfig shrub.Config
}

// FromConfig maps loaded process configuration onto factory settings
func FromConfig(c *config.Config, logger *slog.Logger, m *metrics.Manager) Config {
	cfg := Config{
		Logger:        logger,
		Metrics:       m,
		StorageType:   c.StorageType,
		MaxVotePoints: c.MaxVotePoints,
		ShrubConfig: shrub.Config{
			DefaultLeaderboardLimit: c.ShrubLeaderboardDefaultLimit,
			MaxLeaderboardLimit:     c.ShrubLeaderboardMaxLimit,
		},
	}

	switch c.StorageType {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		cfg.RedisConfig = &redisCfg
	case StorageTypeSQLite:
		cfg.SQLConfig = &sqlstore.Config{Dialect: sqlstore.SQLite, DSN: sqlstore.SQLiteDSN(c.SQLitePath)}
	case StorageTypePostgres:
		cfg.SQLConfig = &sqlstore.Config{Dialect: sqlstore.Postgres, DSN: c.PostgresDSN, MaxOpenConns: 20}
	case StorageTypeMongo:
		mongoCfg := mongostorage.DefaultConfig()
		mongoCfg.URI = c.MongoURI
		mongoCfg.Database = c.MongoDatabase
		mongoCfg.Transactions = c.MongoTransactions
		mongoCfg.ConnectTimeout = c.ConnectTimeout
		cfg.MongoConfig = &mongoCfg
	}
	return cfg
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(store, clock.New(), cfg, logger), nil
}

func openStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite, StorageTypePostgres:
		if cfg.SQLConfig == nil {
			return nil, fmt.Errorf("SQLConfig required when StorageType is %s", storageType)
		}
		return sqlstore.Open(ctx, *cfg.SQLConfig)
	case StorageTypeMongo:
		if cfg.MongoConfig == nil {
			return nil, errors.New("MongoConfig required when StorageType is mongo")
		}
		mongoCfg := *cfg.MongoConfig
		if mongoCfg.Logger == nil {
			mongoCfg.Logger = logger.With(slog.String("storage", StorageTypeMongo))
		}
		return mongostorage.New(ctx, mongoCfg)
	default:
		return nil, fmt.Errorf("invalid StorageType %q", storageType)
	}
}

// NewWithStorage wires services over an existing store (useful for testing)
func NewWithStorage(store storage.Storage, clk clock.Clock, cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return newWithDependencies(store, clk, cfg, logger)
}

func newWithDependencies(store storage.Storage, clk clock.Clock, cfg Config, logger *slog.Logger) *App {
	// Create services
	playerService := player.New(store, clk, logger, cfg.Metrics)
	voteLedger := ledger.New(store, clk, logger, cfg.MaxVotePoints)
	shrubService := shrub.New(store, playerService, voteLedger, clk, logger, cfg.Metrics, cfg.ShrubConfig)

	return &App{
		Storage:       store,
		Clock:         clk,
		Metrics:       cfg.Metrics,
		PlayerService: playerService,
		Ledger:        voteLedger,
		ShrubService:  shrubService,
	}
}
