package config

import (
	"strings"
	"time"

	"github.com/Kikk79/docstore/internal/bytesize"
	"github.com/Kikk79/docstore/pkg/cache"
	"github.com/Kikk79/docstore/pkg/enumerate"
	"github.com/Kikk79/docstore/pkg/loader"
	"github.com/Kikk79/docstore/pkg/operation"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCacheDefaults(&cfg.Cache)
	applyLoaderDefaults(&cfg.Loader)
	applyOperationsDefaults(&cfg.Operations)
	applyEnumerateDefaults(&cfg.Enumerate)
	applyAPIDefaults(&cfg.API)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyCacheDefaults sets document cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = bytesize.ByteSize(cache.DefaultMaxSizeBytes)
	}
	if cfg.MaxDocuments == 0 {
		cfg.MaxDocuments = cache.DefaultMaxDocuments
	}
	// StatsPath has no default, it is required when PersistStats is true
}

// applyLoaderDefaults sets document loader defaults.
func applyLoaderDefaults(cfg *LoaderConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = bytesize.ByteSize(loader.DefaultChunkSize)
	}
}

// applyOperationsDefaults sets operation manager defaults.
func applyOperationsDefaults(cfg *OperationsConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = operation.DefaultWorkers
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = operation.DefaultQueueSize
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = operation.DefaultProgressInterval
	}
	// Deadline defaults to 0 (no per-operation timeout)
}

// applyEnumerateDefaults sets enumeration defaults.
func applyEnumerateDefaults(cfg *EnumerateConfig) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = enumerate.DefaultBatchSize
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = enumerate.DefaultCacheSize
	}
	if cfg.FetchDistance == 0 {
		cfg.FetchDistance = enumerate.DefaultFetchDistance
	}
}

// applyAPIDefaults sets HTTP API server defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Watcher: WatcherConfig{
			Enabled: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
