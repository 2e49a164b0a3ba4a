package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.RateLimit.Global)

	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)

	// Registry and wiring
	assert.False(t, cfg.Registry.DisposeOnEvict)
	assert.Empty(t, cfg.Wiring.File)

	// Properties layout
	assert.Equal(t, "=", cfg.Properties.Delimiter)
	assert.False(t, cfg.Properties.SpacesAroundDelimiter)
	assert.False(t, cfg.Properties.AlignGroups)
	assert.True(t, cfg.Properties.KeepBlankLines)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                      "9000",
		"HOST":                      "127.0.0.1",
		"LOG_LEVEL":                 "debug",
		"LOG_DEV":                   "true",
		"RATE_LIMIT_RPS":            "500",
		"RATE_LIMIT_BURST":          "1000",
		"RATE_LIMIT_ENABLED":        "false",
		"RATE_LIMIT_GLOBAL":         "true",
		"REGISTRY_DISPOSE_ON_EVICT": "true",
		"WIRING_FILE":               "/etc/wshub/observers.yaml",
		"CORS_ALLOW_ORIGINS":        "http://localhost:3000,https://ops.example.com",
		"PROPERTIES_DELIMITER":      ":",
		"PROPERTIES_ALIGN_GROUPS":   "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.RateLimit.Global)
	assert.True(t, cfg.Registry.DisposeOnEvict)
	assert.Equal(t, "/etc/wshub/observers.yaml", cfg.Wiring.File)
	assert.Equal(t, []string{"http://localhost:3000", "https://ops.example.com"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, ":", cfg.Properties.Delimiter)
	assert.True(t, cfg.Properties.AlignGroups)
	assert.True(t, cfg.Properties.KeepBlankLines)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.False(t, cfg.Registry.DisposeOnEvict)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "lots")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
}

func TestRegistryConfig(t *testing.T) {
	tests := []struct {
		name    string
		dispose string
		want    bool
	}{
		{name: "default", dispose: "", want: false},
		{name: "enabled", dispose: "true", want: true},
		{name: "disabled", dispose: "false", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.dispose != "" {
				t.Setenv("REGISTRY_DISPOSE_ON_EVICT", tt.dispose)
			}

			cfg := LoadOrDefault()
			assert.Equal(t, tt.want, cfg.Registry.DisposeOnEvict)
		})
	}
}
