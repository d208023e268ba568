package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/IT-Nick/gatekeeper/internal/infra/config"
)

func setupLogging(cfg config.Log) {
	slog.SetDefault(slog.New(newLogHandler(cfg)))
}

func newLogHandler(cfg config.Log) slog.Handler {
	var logLevel slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		return slog.NewTextHandler(os.Stderr, handlerOpts)
	}
}
