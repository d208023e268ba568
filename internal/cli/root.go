package cli

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IT-Nick/gatekeeper/internal/infra/config"
)

const envPrefix = "GATEKEEPER"

// Execute запускает корневую команду
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gatekeeper",
		Short:        "Entrance exam moderator for Telegram groups",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "configs/config.yaml", "Path to YAML config file")
	pf.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
	pf.String("log-format", "", "Log format (text, json), overrides config")

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), reviewCmd(), messagesCmd())

	// serve по умолчанию, если подкоманда не указана
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// loadConfig читает YAML и накладывает флаги и переменные окружения GATEKEEPER_*
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viperForCmd(cmd)

	cfg, err := config.LoadConfig(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, v)
	setupLogging(cfg.Log)
	slog.Debug("loaded config file", "path", v.GetString("config"))

	return cfg, nil
}

// applyOverrides секреты и адреса удобнее передавать через окружение
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	set := func(dst *string, key string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}

	set(&cfg.TelegramBot.Token, "telegram-token")
	set(&cfg.Server.AdminToken, "admin-token")
	set(&cfg.Database.Host, "db-host")
	set(&cfg.Database.Password, "db-password")
	set(&cfg.Redis.Addr, "redis-addr")
	set(&cfg.LLM.BaseURL, "llm-url")
	set(&cfg.LLM.APIKey, "llm-key")
	set(&cfg.LLM.Model, "llm-model")
	set(&cfg.AMQP.URL, "amqp-url")
	set(&cfg.Log.Level, "log-level")
	set(&cfg.Log.Format, "log-format")
}
