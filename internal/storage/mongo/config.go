package mongo

import (
	"log/slog"
	"time"
)

// Config holds MongoDB connection and behavior settings
type Config struct {
	// URI is the MongoDB connection string (e.g., mongodb://localhost:27017)
	URI      string
	Database string

	// Transactions runs WithTx in a multi-document session transaction.
	// Requires a replica set or sharded cluster. When false, WithTx applies
	// writes immediately and compensates them if the unit fails.
	Transactions bool

	ConnectTimeout time.Duration

	// Logger receives compensation failures. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for MongoDB configuration
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "shrubbery",
		Transactions:   false,
		ConnectTimeout: 5 * time.Second,
	}
}
