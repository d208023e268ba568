package middleware

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Logger возвращает middleware, которое логирует входящие обновления Telegram.
// Если логгер не передан, используется slog.Default().
func Logger(logger ...*slog.Logger) tele.MiddlewareFunc {
	l := slog.Default()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			attrs := updateAttrs(c)
			attrs = append(attrs, "duration", time.Since(start))
			if err != nil {
				l.Error("update handled with error", append(attrs, "error", err)...)
				return err
			}
			l.Debug("update handled", attrs...)
			return nil
		}
	}
}

// updateAttrs краткое описание обновления для лога
func updateAttrs(c tele.Context) []any {
	attrs := []any{"update_id", c.Update().ID}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, "chat_id", chat.ID)
	}
	if sender := c.Sender(); sender != nil {
		attrs = append(attrs, "user_id", sender.ID)
	}
	switch {
	case c.Callback() != nil:
		attrs = append(attrs, "kind", "callback", "data", c.Callback().Data)
	case c.Message() != nil && c.Message().UserJoined != nil:
		attrs = append(attrs, "kind", "user_joined")
	case c.Message() != nil:
		attrs = append(attrs, "kind", "message")
	}
	return attrs
}
