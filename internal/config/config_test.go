package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nkkko/pushreg/internal/logging"
	"github.com/nkkko/pushreg/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.StorageType)
	assert.Equal(t, 7*24*time.Hour, time.Duration(cfg.Registry.DefaultTTL))
	assert.Equal(t, 7*24*time.Hour, time.Duration(cfg.Registry.MaxTTL))
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate(), "Defaults should be valid")
}

func TestLoadConfigFromFile(t *testing.T) {
	configFile := writeConfig(t, `server:
  addr: ":9090"
registry:
  default_ttl: "24h"
  max_ttl: "72h"
storage:
  storage_type: "badger"
  data_dir: "./test-data"
logging:
  level: "debug"
`)

	cfg, err := LoadConfigFromFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, time.Duration(cfg.Registry.DefaultTTL))
	assert.Equal(t, 72*time.Hour, time.Duration(cfg.Registry.MaxTTL))
	assert.Equal(t, "badger", cfg.Storage.StorageType)
	assert.Equal(t, "./test-data", cfg.Storage.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Default values should be used for unspecified fields
	assert.Equal(t, 10000, cfg.Storage.CacheSize)
}

func TestLoadConfigFromMissingFile(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
}

func TestLoadConfigBadDuration(t *testing.T) {
	configFile := writeConfig(t, `registry:
  max_ttl: "a week"
`)

	_, err := LoadConfigFromFile(configFile)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	configFile := writeConfig(t, `server:
  addr: ":9090"
storage:
  data_dir: "./test-data"
`)

	t.Setenv("PUSHREG_SERVER_ADDR", ":8888")
	t.Setenv("PUSHREG_REGISTRY_MAX_TTL", "240h")
	t.Setenv("PUSHREG_STORAGE_CACHE_SIZE", "500")
	t.Setenv("PUSHREG_TELEMETRY_ENABLED", "true")

	cfg, err := LoadConfig(configFile, Overrides{DataDir: "./cli-data", LogLevel: "warn", StorageType: "badger"})
	require.NoError(t, err)

	// Command-line flags should take precedence over env vars and file
	absPath, _ := filepath.Abs("./cli-data")
	assert.Equal(t, absPath, cfg.Storage.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "badger", cfg.Storage.StorageType)

	// Env vars should take precedence over file
	assert.Equal(t, ":8888", cfg.Server.Addr)
	assert.Equal(t, 240*time.Hour, time.Duration(cfg.Registry.MaxTTL))
	assert.Equal(t, 500, cfg.Storage.CacheSize)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("DefaultAboveMax", func(t *testing.T) {
		t.Setenv("PUSHREG_REGISTRY_DEFAULT_TTL", "200h")
		_, err := LoadConfig("", Overrides{})
		assert.Error(t, err)
	})

	t.Run("BadEnvDuration", func(t *testing.T) {
		t.Setenv("PUSHREG_REGISTRY_MAX_TTL", "forever")
		_, err := LoadConfig("", Overrides{})
		assert.Error(t, err)
	})

	t.Run("BadEnvCacheSize", func(t *testing.T) {
		t.Setenv("PUSHREG_STORAGE_CACHE_SIZE", "lots")
		_, err := LoadConfig("", Overrides{})
		assert.ErrorContains(t, err, "PUSHREG_STORAGE_CACHE_SIZE")
	})

	t.Run("BadEnvTelemetryEnabled", func(t *testing.T) {
		t.Setenv("PUSHREG_TELEMETRY_ENABLED", "sometimes")
		_, err := LoadConfig("", Overrides{})
		assert.ErrorContains(t, err, "PUSHREG_TELEMETRY_ENABLED")
	})

	t.Run("UnknownStorage", func(t *testing.T) {
		_, err := LoadConfig("", Overrides{StorageType: "postgres"})
		assert.Error(t, err)
	})

	t.Run("UnknownLogLevel", func(t *testing.T) {
		_, err := LoadConfig("", Overrides{LogLevel: "verbose"})
		assert.Error(t, err)
	})
}

func TestComponentConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.StorageType = "Badger"
	cfg.Logging.Format = "console"

	reg := cfg.ToRegistryConfig()
	assert.Equal(t, 7*24*time.Hour, reg.Expiry.MaxTTL)

	st := cfg.ToStorageConfig()
	assert.Equal(t, storage.BadgerStorage, st.Type)
	assert.Equal(t, 30*time.Second, st.CacheExpiration)
	assert.Equal(t, 10*time.Minute, st.MaintenanceInterval)

	api := cfg.ToAPIConfig()
	assert.Equal(t, ":8080", api.Addr)
	assert.Equal(t, int64(1048576), api.MaxBodySize)
	assert.Equal(t, "/metrics", api.MetricsPath)

	lc := cfg.ToLoggingConfig()
	assert.Equal(t, logging.FormatConsole, lc.Format)
	assert.Equal(t, logging.LevelInfo, lc.Level)

	tc := cfg.ToTelemetryConfig()
	assert.Equal(t, "pushreg", tc.ServiceName)
	assert.False(t, tc.Enabled)
}
