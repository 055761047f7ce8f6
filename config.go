package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// ErrInvalidConfig marks a configuration that cannot produce a working
// adapter. It is fatal at construction, never per-request.
var ErrInvalidConfig = errors.New("invalid adapter configuration")

// Config is the adapter's environment-driven configuration. Timeouts are in
// seconds to match the deployment contract of the Lambda environment
// variables.
type Config struct {
	ServerURL         string `env:"MCP_SERVER_URL,required"`
	ConnectionTimeout int    `env:"MCP_CONNECTION_TIMEOUT,default=10"`
	ToolTimeout       int    `env:"MCP_TOOL_TIMEOUT,default=30"`
	MaxRetries        int    `env:"MCP_MAX_RETRIES,default=3"`
	LogLevel          string `env:"LOG_LEVEL,default=INFO"`
}

// ConfigFromEnv decodes and validates the configuration from environment
// variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the adapter cannot run with.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("%w: MCP_SERVER_URL must be a valid HTTP/HTTPS URL", ErrInvalidConfig)
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("%w: MCP_CONNECTION_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("%w: MCP_TOOL_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: MCP_MAX_RETRIES must not be negative", ErrInvalidConfig)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("%w: LOG_LEVEL must be one of: DEBUG, INFO, WARNING, ERROR, CRITICAL", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel maps the configured level name onto slog's scale. CRITICAL
// collapses into Error, the highest level slog defines.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) connectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeout) * time.Second
}

func (c Config) toolTimeout() time.Duration {
	return time.Duration(c.ToolTimeout) * time.Second
}
