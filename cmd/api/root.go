package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/withaibuild/site/internal/config"
	"github.com/withaibuild/site/pkg/logger"
)

// Execute runs the root command.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "site",
		Short:         "withaibuild marketing site API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root.ExecuteContext(ctx)
}

// loadConfig reads the environment and builds the process logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(os.Stdout, cfg.App.LogLevel), nil
}
