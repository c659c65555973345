package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Structural constraints (ranges, required fields, enumerations) are
// expressed as validate struct tags; cross-field rules that tags cannot
// express are checked explicitly afterwards.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		return err
	}

	if cfg.Operations.Workers > cfg.Operations.QueueSize {
		return fmt.Errorf("operations.workers (%d) must not exceed operations.queue_size (%d)",
			cfg.Operations.Workers, cfg.Operations.QueueSize)
	}

	if cfg.Enumerate.CacheSize < cfg.Enumerate.BatchSize {
		return fmt.Errorf("enumerate.cache_size (%d) must hold at least one batch (batch_size %d)",
			cfg.Enumerate.CacheSize, cfg.Enumerate.BatchSize)
	}

	return nil
}
