package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/IT-Nick/gatekeeper/internal/infra/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, (*postgres.Migrator).Up)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration group",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, (*postgres.Migrator).Down)
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, run func(*postgres.Migrator, context.Context) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m := postgres.NewMigrator(cfg.Database.DSN())
	defer func() {
		if err := m.Close(); err != nil {
			slog.Warn("failed to close migrator", "error", err)
		}
	}()

	return run(m, cmd.Context())
}
