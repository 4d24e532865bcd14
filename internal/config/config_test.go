package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)
	require.Equal(t, zapcore.WarnLevel, cfg.LogLevel)
	require.Equal(t, 256, cfg.MaxScopeDepth)
	require.False(t, cfg.IncludeLocal)
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		EnvLogLevel:      "debug",
		EnvMaxScopeDepth: " 32 ",
		EnvIncludeLocal:  "true",
	}))
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	require.Equal(t, 32, cfg.MaxScopeDepth)
	require.True(t, cfg.IncludeLocal)
}

func TestFromEnvInvalid(t *testing.T) {
	for key, value := range map[string]string{
		EnvLogLevel:      "loud",
		EnvMaxScopeDepth: "0",
		EnvIncludeLocal:  "maybe",
	} {
		_, err := FromEnv(env(map[string]string{key: value}))
		require.Error(t, err, key)
		require.Contains(t, err.Error(), key)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvMaxScopeDepth, "8")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8, cfg.MaxScopeDepth)
}

func TestLoadDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte(EnvIncludeLocal+"=true\n"), 0o644))

	// Registers a restore so the value loaded from .env does not leak.
	t.Setenv(EnvIncludeLocal, "")
	require.NoError(t, os.Unsetenv(EnvIncludeLocal))

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IncludeLocal)
}
