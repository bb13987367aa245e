package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewhub/crewhub/pkg/observability"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CREWHUB_CONFIG_FILE", "")
	t.Setenv("CREWHUB_POSTGRES_URL", "postgres://localhost/crewhub_test")
	t.Setenv("CREWHUB_JWT_SECRET", "test-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.False(t, cfg.Redis.CacheEnabled)
	assert.False(t, cfg.Permissions.RestrictOrgCreate)
	assert.Equal(t, "@hourly", cfg.Permissions.JoinCodeCleanupSchedule)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CREWHUB_PORT", "3000")
	t.Setenv("CREWHUB_RESTRICT_ORG_CREATE", "true")
	t.Setenv("CREWHUB_TOKEN_TTL", "1h")
	t.Setenv("CREWHUB_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.True(t, cfg.Permissions.RestrictOrgCreate)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_File(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "4000"
permissions:
  restrict_org_create: true
  org_facts_cache_size: 64
observability:
  log_level: warn
`), 0o644))
	t.Setenv("CREWHUB_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.True(t, cfg.Permissions.RestrictOrgCreate)
	assert.Equal(t, 64, cfg.Permissions.OrgFactsCacheSize)
	assert.Equal(t, observability.WarnLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"4000\"\n"), 0o644))
	t.Setenv("CREWHUB_CONFIG_FILE", path)
	t.Setenv("CREWHUB_PORT", "5000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Server.Port)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Setenv("CREWHUB_CONFIG_FILE", "")
	t.Setenv("CREWHUB_JWT_SECRET", "test-secret")
	t.Setenv("CREWHUB_POSTGRES_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL")

	setRequiredEnv(t)
	t.Setenv("CREWHUB_CACHE_ENABLED", "true")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis address")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, ParseLogLevel("WARNING"))
	assert.Equal(t, observability.ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, ParseLogLevel("bogus"))
}
