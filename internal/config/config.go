package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the lifeline CLI
type Config struct {
	// Extra manifest directory registered after the built-in catalog
	TemplateDir string `env:"LIFELINE_TEMPLATE_DIR" envDefault:""`

	// Registration policy
	Strict       bool `env:"LIFELINE_STRICT" envDefault:"false"`
	MaxBodyBytes int  `env:"LIFELINE_MAX_BODY_BYTES" envDefault:"65536"`

	// Parallel manifest parsing for TemplateDir
	LoadConcurrency int `env:"LIFELINE_LOAD_CONCURRENCY" envDefault:"4"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom loads configuration from the given variables instead of the process environment
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("LIFELINE_MAX_BODY_BYTES must be non-negative")
	}

	if c.LoadConcurrency < 1 {
		return fmt.Errorf("LIFELINE_LOAD_CONCURRENCY must be at least 1")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// String returns a printable summary of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{TemplateDir: %q, Strict: %t, MaxBodyBytes: %d, LoadConcurrency: %d, LogLevel: %s}",
		c.TemplateDir, c.Strict, c.MaxBodyBytes, c.LoadConcurrency, c.LogLevel)
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}
