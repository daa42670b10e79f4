package redis

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// KeyPrefix namespaces every key this store writes
	KeyPrefix string

	// MaxCommitAttempts bounds how often an optimistic commit is re-checked
	// after a watched key changed underneath it
	MaxCommitAttempts int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:               "redis://localhost:6379",
		PoolSize:          10,
		MinIdleConns:      2,
		KeyPrefix:         "shrub",
		MaxCommitAttempts: 5,
	}
}
