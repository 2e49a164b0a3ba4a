package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Registry   RegistryConfig
	Wiring     WiringConfig
	Properties PropertiesConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// Global shares one token bucket between all clients instead of one per IP.
	Global bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false"`
}

// CORSConfig holds cross-origin settings for the read-only HTTP API.
type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
}

// RegistryConfig holds service registry configuration.
type RegistryConfig struct {
	// DisposeOnEvict closes evicted services implementing io.Closer.
	DisposeOnEvict bool `envconfig:"REGISTRY_DISPOSE_ON_EVICT" default:"false"`
}

// WiringConfig locates the static observer wiring file.
// An empty path selects the built-in default wiring.
type WiringConfig struct {
	File string `envconfig:"WIRING_FILE" default:""`
}

// PropertiesConfig holds the layout rules of the properties service.
type PropertiesConfig struct {
	Delimiter             string `envconfig:"PROPERTIES_DELIMITER" default:"="`
	SpacesAroundDelimiter bool   `envconfig:"PROPERTIES_SPACES_AROUND_DELIMITER" default:"false"`
	AlignGroups           bool   `envconfig:"PROPERTIES_ALIGN_GROUPS" default:"false"`
	KeepBlankLines        bool   `envconfig:"PROPERTIES_KEEP_BLANK_LINES" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
		Registry: RegistryConfig{
			DisposeOnEvict: false,
		},
		Properties: PropertiesConfig{
			Delimiter:      "=",
			KeepBlankLines: true,
		},
	}
}
