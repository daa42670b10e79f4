package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string `env:"SHRUBCTL_SERVER" envDefault:"http://localhost:8080"`
	Output    string `env:"SHRUBCTL_OUTPUT" envDefault:"text"`
}

// LoadConfig reads the CLI configuration from the environment. Flags
// override it afterwards.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// Validate checks flag and environment values
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		return fmt.Errorf("invalid output format %q: want text or json", c.Output)
	}
	return nil
}
