package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"token-forge/internal/config"
	"token-forge/internal/logging"
)

var cmdMigrate = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations for the configured backends and exit",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	addBackendFlags(cmdMigrate)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = logging.Component(logger, "migrate")

	if cfg.StateBackend == config.BackendMemory && cfg.Receipts() == config.BackendMemory {
		logger.Info().Msg("memory backend has no schema, nothing to do")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	// Opening the stores applies the migrations.
	_, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanup()

	logger.Info().Msg("migrations applied")
	return nil
}
