package commands

import (
	"fmt"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/config"
	"github.com/Kikk79/docstore/pkg/service"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads and validates the configuration from the global
// --config flag, falling back to defaults when no file exists.
func loadConfig() (*config.Config, error) {
	return config.MustLoad(GetConfigFile())
}

// newService loads configuration and assembles a document service for
// one-shot commands. The watcher is skipped: short-lived commands have
// no use for filesystem events.
func newService() (*service.Service, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	// One-shot commands log warnings and errors only, so command
	// output stays clean.
	if cfg.Logging.Level == "INFO" {
		cfg.Logging.Level = "WARN"
	}
	if err := InitLogger(cfg); err != nil {
		return nil, nil, err
	}

	cfg.Watcher.Enabled = false
	svc, err := service.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}
