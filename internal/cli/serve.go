package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IT-Nick/gatekeeper/internal/app"
	"github.com/IT-Nick/gatekeeper/internal/infra/postgres"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, the admin HTTP API and the deadline sweeper",
		RunE:  runServe,
	}
	cmd.Flags().Bool("migrate", false, "Apply database migrations before start")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if viperForCmd(cmd).GetBool("migrate") {
		m := postgres.NewMigrator(cfg.Database.DSN())
		err := m.Up(ctx)
		if cErr := m.Close(); cErr != nil {
			slog.Warn("failed to close migrator", "error", cErr)
		}
		if err != nil {
			return err
		}
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("gatekeeper starting",
		"mode", cfg.TelegramBot.Mode,
		"http_addr", cfg.Server.Addr(),
		"review_chat_id", cfg.TelegramBot.ReviewChatID,
		"redis", cfg.Redis.Enabled(),
		"amqp", cfg.AMQP.URL != "",
	)

	if err := a.ListenAndServe(ctx); err != nil {
		return err
	}
	slog.Info("gatekeeper stopped")
	return nil
}
