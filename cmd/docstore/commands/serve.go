package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/api"
	"github.com/Kikk79/docstore/pkg/service"

	// Import prometheus metrics to register init() functions
	_ "github.com/Kikk79/docstore/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docstore HTTP server",
	Long: `Start the document service with its HTTP API.

The server loads documents on demand, keeps them in a bounded cache,
watches their files for changes, and exposes loading, enumeration,
and statistics endpoints.

Examples:
  # Start with default config location
  docstore serve

  # Start with custom config
  docstore serve --config /etc/docstore/config.yaml

  # Use environment variables to override config
  DOCSTORE_LOGGING_LEVEL=DEBUG docstore serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}
	svc.Start(ctx)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("document service shutdown error", logger.KeyError, err)
		}
	}()

	server := api.NewServer(cfg.API, svc)

	// Shut down on SIGINT or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	return server.Start(ctx)
}
