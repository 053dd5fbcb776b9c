package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Registry  RegistryConfig  `yaml:"registry"`
	Storage   StorageConfig   `yaml:"storage"`
	Deletion  DeletionConfig  `yaml:"deletion"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxBodySize    int    `yaml:"max_body_size"`
	ReadTimeout    int    `yaml:"read_timeout"`
	WriteTimeout   int    `yaml:"write_timeout"`
	IdleTimeout    int    `yaml:"idle_timeout"`
	RequestTimeout int    `yaml:"request_timeout"`
}

// RegistryConfig contains subscription lifetime settings.
// Durations use Go syntax, e.g. "168h".
type RegistryConfig struct {
	DefaultTTL Duration `yaml:"default_ttl"`
	MaxTTL     Duration `yaml:"max_ttl"`
}

// StorageConfig contains storage engine settings
type StorageConfig struct {
	// Storage implementation selection: memory or badger
	StorageType string `yaml:"storage_type"`

	DataDir                string `yaml:"data_dir"`
	CacheEnabled           bool   `yaml:"cache_enabled"`
	CacheSize              int    `yaml:"cache_size"`
	CacheExpirationSeconds int    `yaml:"cache_expiration_seconds"`
	GCIntervalMinutes      int    `yaml:"gc_interval_minutes"`
}

// DeletionConfig contains account-deletion settings
type DeletionConfig struct {
	Enabled                  bool `yaml:"enabled"`
	SubscriptionStepPriority int  `yaml:"subscription_step_priority"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level         string            `yaml:"level"`
	Format        string            `yaml:"format"`
	IncludeCaller bool              `yaml:"include_caller"`
	IncludeTrace  bool              `yaml:"include_trace"`
	GlobalFields  map[string]string `yaml:"global_fields"`
}

// TelemetryConfig contains OpenTelemetry settings
type TelemetryConfig struct {
	Enabled       bool              `yaml:"enabled"`
	ServiceName   string            `yaml:"service_name"`
	Endpoint      string            `yaml:"endpoint"`
	SamplingRatio float64           `yaml:"sampling_ratio"`
	Attributes    map[string]string `yaml:"attributes"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Duration is a time.Duration that reads Go duration strings from YAML
type Duration time.Duration

// UnmarshalYAML parses values such as "168h" or "30m"
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in Go syntax
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxBodySize:    1048576, // 1MB
			ReadTimeout:    5,
			WriteTimeout:   10,
			IdleTimeout:    120,
			RequestTimeout: 30,
		},
		Registry: RegistryConfig{
			DefaultTTL: Duration(7 * 24 * time.Hour),
			MaxTTL:     Duration(7 * 24 * time.Hour),
		},
		Storage: StorageConfig{
			StorageType:            "memory",
			DataDir:                "./data",
			CacheEnabled:           true,
			CacheSize:              10000,
			CacheExpirationSeconds: 30,
			GCIntervalMinutes:      10,
		},
		Deletion: DeletionConfig{
			Enabled:                  true,
			SubscriptionStepPriority: 100,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "json",
			IncludeCaller: true,
			IncludeTrace:  true,
			GlobalFields:  map[string]string{},
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			ServiceName:   "pushreg",
			Endpoint:      "localhost:4317",
			SamplingRatio: 0.1,
			Attributes:    map[string]string{},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

// LoadConfigFromFile loads configuration from a YAML file
func LoadConfigFromFile(filePath string) (*Config, error) {
	// Start with default configuration
	config := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", filePath).Msg("Configuration file not found, using defaults")
			return config, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// Overrides holds command-line values; empty fields leave the config untouched
type Overrides struct {
	DataDir     string
	ServerAddr  string
	LogLevel    string
	StorageType string
}

// LoadConfig loads configuration from file, environment variables, and flags
func LoadConfig(configFile string, overrides Overrides) (*Config, error) {
	var config *Config
	var err error

	if configFile != "" {
		config, err = LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		config = DefaultConfig()
	}

	// Override with environment variables
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	// Override with command line flags (highest priority)
	if overrides.DataDir != "" {
		absDataDir, err := filepath.Abs(overrides.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for data directory: %w", err)
		}
		config.Storage.DataDir = absDataDir
	}
	if overrides.ServerAddr != "" {
		config.Server.Addr = overrides.ServerAddr
	}
	if overrides.LogLevel != "" {
		config.Logging.Level = overrides.LogLevel
	}
	if overrides.StorageType != "" {
		config.Storage.StorageType = overrides.StorageType
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(config *Config) error {
	// Server config overrides
	if addr := os.Getenv("PUSHREG_SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}

	// Registry config overrides
	if value := os.Getenv("PUSHREG_REGISTRY_DEFAULT_TTL"); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("PUSHREG_REGISTRY_DEFAULT_TTL: %w", err)
		}
		config.Registry.DefaultTTL = Duration(d)
	}
	if value := os.Getenv("PUSHREG_REGISTRY_MAX_TTL"); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("PUSHREG_REGISTRY_MAX_TTL: %w", err)
		}
		config.Registry.MaxTTL = Duration(d)
	}

	// Storage config overrides
	if storageType := os.Getenv("PUSHREG_STORAGE_TYPE"); storageType != "" {
		config.Storage.StorageType = storageType
	}
	if dataDir := os.Getenv("PUSHREG_STORAGE_DATA_DIR"); dataDir != "" {
		config.Storage.DataDir = dataDir
	}
	if cacheSize := os.Getenv("PUSHREG_STORAGE_CACHE_SIZE"); cacheSize != "" {
		val, err := strconv.Atoi(cacheSize)
		if err != nil {
			return fmt.Errorf("PUSHREG_STORAGE_CACHE_SIZE: %w", err)
		}
		config.Storage.CacheSize = val
	}

	// Logging config overrides
	if level := os.Getenv("PUSHREG_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("PUSHREG_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	// Telemetry config overrides
	if endpoint := os.Getenv("PUSHREG_TELEMETRY_ENDPOINT"); endpoint != "" {
		config.Telemetry.Endpoint = endpoint
	}
	if enabled := os.Getenv("PUSHREG_TELEMETRY_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("PUSHREG_TELEMETRY_ENABLED: %w", err)
		}
		config.Telemetry.Enabled = val
	}

	return nil
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	if err := c.ToRegistryConfig().Expiry.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	switch strings.ToLower(c.Storage.StorageType) {
	case "memory", "badger":
	default:
		return fmt.Errorf("storage: unsupported storage_type %q", c.Storage.StorageType)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: invalid level %q", c.Logging.Level)
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry: sampling_ratio must be within [0, 1]")
	}

	return nil
}
