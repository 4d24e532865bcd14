// Package config loads clrrefs settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/skdltmxn/clrrefs/internal/resolve"
)

// Environment variables
const (
	EnvLogLevel      = "CLRREFS_LOG_LEVEL"
	EnvMaxScopeDepth = "CLRREFS_MAX_SCOPE_DEPTH"
	EnvIncludeLocal  = "CLRREFS_INCLUDE_LOCAL"
)

// Config holds the settings read from the environment and .env.
type Config struct {
	LogLevel      zapcore.Level
	MaxScopeDepth int
	IncludeLocal  bool
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		LogLevel:      zapcore.WarnLevel,
		MaxScopeDepth: resolve.DefaultMaxDepth,
	}
}

// Load reads .env from the working directory if present, then the process
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if raw := strings.TrimSpace(getenv(EnvLogLevel)); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}

	if raw := strings.TrimSpace(getenv(EnvMaxScopeDepth)); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth <= 0 {
			return nil, fmt.Errorf("config: %s: want a positive integer, got %q", EnvMaxScopeDepth, raw)
		}
		cfg.MaxScopeDepth = depth
	}

	if raw := strings.TrimSpace(getenv(EnvIncludeLocal)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", EnvIncludeLocal, err)
		}
		cfg.IncludeLocal = v
	}

	return cfg, nil
}
