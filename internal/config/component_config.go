package config

import (
	"strings"
	"time"

	apichi "github.com/nkkko/pushreg/internal/api/chi"
	"github.com/nkkko/pushreg/internal/expiry"
	"github.com/nkkko/pushreg/internal/logging"
	"github.com/nkkko/pushreg/internal/registry"
	"github.com/nkkko/pushreg/internal/storage"
	"github.com/nkkko/pushreg/internal/telemetry"
)

// ToRegistryConfig converts to registry config
func (c *Config) ToRegistryConfig() registry.Config {
	return registry.Config{
		Expiry: expiry.Config{
			DefaultTTL: time.Duration(c.Registry.DefaultTTL),
			MaxTTL:     time.Duration(c.Registry.MaxTTL),
		},
	}
}

// ToStorageConfig converts to storage factory config
func (c *Config) ToStorageConfig() storage.Config {
	return storage.Config{
		Type:                storage.StorageType(strings.ToLower(c.Storage.StorageType)),
		DataDir:             c.Storage.DataDir,
		CacheEnabled:        c.Storage.CacheEnabled,
		CacheSize:           c.Storage.CacheSize,
		CacheExpiration:     time.Duration(c.Storage.CacheExpirationSeconds) * time.Second,
		MaintenanceInterval: time.Duration(c.Storage.GCIntervalMinutes) * time.Minute,
	}
}

// ToAPIConfig converts to API config
func (c *Config) ToAPIConfig() apichi.Config {
	return apichi.Config{
		Addr:           c.Server.Addr,
		ReadTimeout:    time.Duration(c.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(c.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(c.Server.IdleTimeout) * time.Second,
		RequestTimeout: time.Duration(c.Server.RequestTimeout) * time.Second,
		MaxBodySize:    int64(c.Server.MaxBodySize),
		MetricsEnabled: c.Metrics.Enabled,
		MetricsPath:    c.Metrics.Endpoint,
		ServiceName:    c.Telemetry.ServiceName,
	}
}

// ToLoggingConfig converts to logging config
func (c *Config) ToLoggingConfig() logging.Config {
	var level logging.LogLevel
	switch c.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "info":
		level = logging.LevelInfo
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	default:
		level = logging.LevelInfo
	}

	var format logging.LogFormat
	switch c.Logging.Format {
	case "console":
		format = logging.FormatConsole
	default:
		format = logging.FormatJSON
	}

	return logging.Config{
		Level:               level,
		Format:              format,
		IncludeCaller:       c.Logging.IncludeCaller,
		IncludeStacktrace:   true,
		IncludeTraceContext: c.Logging.IncludeTrace,
		GlobalFields:        c.Logging.GlobalFields,
	}
}

// ToTelemetryConfig converts to telemetry config
func (c *Config) ToTelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:       c.Telemetry.Enabled,
		ServiceName:   c.Telemetry.ServiceName,
		Endpoint:      c.Telemetry.Endpoint,
		SamplingRatio: c.Telemetry.SamplingRatio,
		Timeout:       5 * time.Second,
		Attributes:    c.Telemetry.Attributes,
	}
}
