package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"
)

// Recover возвращает middleware, которое перехватывает панику в обработчике и превращает ее в ошибку.
// Без onError паника логируется вместе со стеком.
func Recover(onError ...func(error, tele.Context)) tele.MiddlewareFunc {
	handleError := func(err error, c tele.Context) {
		slog.Error("recovered from panic", "update_id", c.Update().ID, "error", err, "stack", string(debug.Stack()))
	}
	if len(onError) > 0 && onError[0] != nil {
		handleError = onError[0]
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(error); ok {
						err = fmt.Errorf("panic: %w", e)
					} else {
						err = fmt.Errorf("panic: %v", r)
					}
					handleError(err, c)
				}
			}()
			return next(c)
		}
	}
}
