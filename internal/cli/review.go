package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/IT-Nick/gatekeeper/internal/app"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	modService "github.com/IT-Nick/gatekeeper/internal/domain/moderation/service"
)

const defaultCLIReason = "manual review via CLI"

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "review <approve|deny|ban> <failure-id>",
		Short:     "Decide a failed exam by hand",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{model.ReviewActionApprove, model.ReviewActionDeny, model.ReviewActionBan},
		RunE:      runReview,
	}
	f := cmd.Flags()
	f.Int64("actor-id", 0, "Telegram id of the reviewing admin (required)")
	f.String("actor-name", "", "Display name of the reviewing admin")
	f.String("reason", defaultCLIReason, "Reason stored in the audit log")
	_ = cmd.MarkFlagRequired("actor-id")
	return cmd
}

func parseReviewArgs(args []string) (string, int64, error) {
	action := args[0]
	if !modService.ValidAction(action) {
		return "", 0, fmt.Errorf("%w: %q", modService.ErrUnknownAction, action)
	}
	failureID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || failureID <= 0 {
		return "", 0, fmt.Errorf("invalid failure id %q", args[1])
	}
	return action, failureID, nil
}

func runReview(cmd *cobra.Command, args []string) error {
	action, failureID, err := parseReviewArgs(args)
	if err != nil {
		return err
	}

	v := viperForCmd(cmd)
	actor := model.Actor{ID: v.GetInt64("actor-id"), Name: v.GetString("actor-name")}
	if actor.IsSystem() {
		return errors.New("actor-id must identify an admin")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Moderation().Review(cmd.Context(), failureID, action, actor, v.GetString("reason"))
	if !res.Success {
		return errors.New(res.ErrorMessage)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exam failure %d: %s by %s\n", failureID, action, actor.String())
	return nil
}
