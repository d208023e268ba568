package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IT-Nick/gatekeeper/internal/app"
	msgRepo "github.com/IT-Nick/gatekeeper/internal/domain/messages/repository"
	msgService "github.com/IT-Nick/gatekeeper/internal/domain/messages/service"
)

func messagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Manage bot text overrides",
	}

	set := &cobra.Command{
		Use:   "set <key> <text>",
		Short: "Override a localized text, optionally for one chat",
		Args:  cobra.ExactArgs(2),
		RunE:  runMessagesSet,
	}
	set.Flags().Int64("chat-id", 0, "Chat the override applies to (0 for all chats)")

	cmd.AddCommand(set)
	return cmd
}

func runMessagesSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := app.InitDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	chatID := viperForCmd(cmd).GetInt64("chat-id")
	svc := msgService.NewMessageService(msgRepo.NewMessageRepository(db))
	if err := svc.SetOverride(cmd.Context(), chatID, args[0], args[1]); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "message %s updated for chat %d\n", args[0], chatID)
	return nil
}
