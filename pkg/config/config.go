package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Kikk79/docstore/internal/bytesize"
)

// Config captures the static configuration of the docstore service:
//   - Logging configuration
//   - Cache limits and statistics persistence
//   - Loader streaming settings
//   - Background operation manager settings
//   - Directory enumeration settings
//   - File watcher, HTTP API, and metrics settings
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DOCSTORE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Cache configures document cache limits and stats persistence
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Loader configures document streaming
	Loader LoaderConfig `mapstructure:"loader" yaml:"loader"`

	// Operations configures the background load worker pool
	Operations OperationsConfig `mapstructure:"operations" yaml:"operations"`

	// Enumerate configures virtualized directory enumeration
	Enumerate EnumerateConfig `mapstructure:"enumerate" yaml:"enumerate"`

	// Watcher controls filesystem change detection for cached documents
	Watcher WatcherConfig `mapstructure:"watcher" yaml:"watcher"`

	// API contains HTTP API server configuration
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// CacheConfig configures the in-memory document cache.
type CacheConfig struct {
	// MaxSize is the maximum total size of cached document content.
	// Supports human-readable formats: "100MB", "512Mi", "1Gi"
	// Default: 100MiB
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size"`

	// MaxDocuments is the maximum number of cached documents.
	// Default: 1000
	MaxDocuments int `mapstructure:"max_documents" validate:"omitempty,gt=0" yaml:"max_documents"`

	// PersistStats controls whether cumulative cache statistics are
	// written to disk on shutdown and restored on startup.
	// Default: false
	PersistStats bool `mapstructure:"persist_stats" yaml:"persist_stats"`

	// StatsPath is the JSON file holding persisted statistics.
	// Required when PersistStats is true.
	StatsPath string `mapstructure:"stats_path" validate:"required_if=PersistStats true" yaml:"stats_path,omitempty"`
}

// LoaderConfig configures document streaming behavior.
type LoaderConfig struct {
	// ChunkSize is the read chunk size used when streaming documents.
	// Supports human-readable formats: "8Ki", "64KB"
	// Default: 8KiB
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// OperationsConfig configures the asynchronous load operation manager.
type OperationsConfig struct {
	// Workers is the number of concurrent load workers.
	// Default: 4
	Workers int `mapstructure:"workers" validate:"omitempty,gt=0" yaml:"workers"`

	// QueueSize is the maximum number of pending operations.
	// Submissions beyond this fail immediately.
	// Default: 64
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,gt=0" yaml:"queue_size"`

	// Deadline is the per-operation timeout. Zero disables deadlines.
	Deadline time.Duration `mapstructure:"deadline" validate:"omitempty,gte=0" yaml:"deadline,omitempty"`

	// ProgressInterval is the minimum interval between progress
	// notifications for a single operation.
	// Default: 100ms
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
}

// EnumerateConfig configures virtualized directory enumeration.
type EnumerateConfig struct {
	// BatchSize is the number of entries fetched per metadata batch.
	// Default: 50
	BatchSize int `mapstructure:"batch_size" validate:"omitempty,gt=0" yaml:"batch_size"`

	// CacheSize is the maximum number of resident entry metadata records.
	// Default: 500
	CacheSize int `mapstructure:"cache_size" validate:"omitempty,gt=0" yaml:"cache_size"`

	// FetchDistance is the number of rows beyond the viewport edges
	// that trigger prefetching.
	// Default: 5
	FetchDistance int `mapstructure:"fetch_distance" validate:"omitempty,gte=0" yaml:"fetch_distance"`

	// Snapshot configures on-disk persistence of enumeration metadata
	// so listings render instantly across restarts.
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
}

// SnapshotConfig configures the on-disk enumeration snapshot store.
type SnapshotConfig struct {
	// Enabled controls whether enumeration snapshots are persisted.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the directory for the snapshot database.
	// Required when Enabled is true.
	Path string `mapstructure:"path" validate:"required_if=Enabled true" yaml:"path,omitempty"`
}

// WatcherConfig controls filesystem change detection. When enabled,
// the service watches the directories of cached documents and
// invalidates entries whose files change on disk.
type WatcherConfig struct {
	// Enabled controls whether the filesystem watcher runs.
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// APIConfig contains HTTP API server configuration.
type APIConfig struct {
	// Port is the HTTP listen port
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading a request
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DOCSTORE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly
// instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			// No config file anywhere is fine, run on defaults.
			return GetDefaultConfig(), nil
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DOCSTORE_ prefix and underscores.
	// Example: DOCSTORE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DOCSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A bare zero value cannot distinguish "disabled" from "unset",
	// so opt-out booleans get their defaults through viper.
	v.SetDefault("watcher.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/docstore/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable, use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		bytesize.DecodeHook(),
		durationDecodeHook(),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "docstore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "docstore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}
