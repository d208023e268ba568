package poller

import (
	tele "gopkg.in/telebot.v4"

	"github.com/IT-Nick/gatekeeper/internal/infra/config"
)

// NewPoller создаёт Poller в зависимости от режима.
// Webhook сам поднимает HTTP-сервер на ListenAddr.
func NewPoller(cfg config.TelegramBot) tele.Poller {
	if cfg.Mode == config.ModeWebhook {
		return &tele.Webhook{
			Listen: cfg.ListenAddr,
			Endpoint: &tele.WebhookEndpoint{
				PublicURL: cfg.WebhookURL,
			},
			AllowedUpdates: allowedUpdates,
		}
	}
	return &tele.LongPoller{Timeout: cfg.PollTimeout, AllowedUpdates: allowedUpdates}
}

// allowedUpdates типы обновлений, которые обрабатывает бот
var allowedUpdates = []string{"message", "callback_query", "chat_member"}
