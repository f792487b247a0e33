package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-tickets/internal/config"
	"github.com/spec-kit/helpdesk-tickets/internal/observability"
	"github.com/spec-kit/helpdesk-tickets/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Run database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(persistence.MigrateUp), string(persistence.MigrateDown), string(persistence.MigrateStatus)},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return persistence.RunMigrations(ctx, cfg.Postgres.DSN, persistence.MigrationCommand(args[0]), logger)
}
