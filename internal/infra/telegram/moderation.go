package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Наборы прав участника: на время экзамена и после одобрения.
// Во время экзамена разрешен только текст, чтобы ответить на открытый вопрос.
var (
	restrictedRights = tele.Rights{CanSendMessages: true}
	defaultRights    = tele.NoRestrictions()
)

// ChatModerator меняет права участников и выдает ссылки на чаты
type ChatModerator struct {
	api     API
	managed func() []int64

	mu    sync.Mutex
	links map[int64]string
}

// NewChatModerator создает новый экземпляр ChatModerator.
// managed возвращает чаты, в которых действует блокировка.
func NewChatModerator(api API, managed func() []int64) *ChatModerator {
	return &ChatModerator{
		api:     api,
		managed: managed,
		links:   make(map[int64]string),
	}
}

// RestrictNewcomer запрещает новому участнику писать до сдачи экзамена
func (m *ChatModerator) RestrictNewcomer(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.api.Restrict(&tele.Chat{ID: chatID}, &tele.ChatMember{
		User:   &tele.User{ID: userID},
		Rights: restrictedRights,
	})
	if err != nil {
		return fmt.Errorf("failed to restrict user %d: %w", userID, err)
	}
	return nil
}

// RestorePermissions возвращает участнику стандартные права
func (m *ChatModerator) RestorePermissions(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.api.Restrict(&tele.Chat{ID: chatID}, &tele.ChatMember{
		User:   &tele.User{ID: userID},
		Rights: defaultRights,
	})
	if err != nil {
		return fmt.Errorf("failed to restore permissions for user %d: %w", userID, err)
	}
	return nil
}

// KickFromChat удаляет участника, оставляя возможность вступить снова
func (m *ChatModerator) KickFromChat(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat := &tele.Chat{ID: chatID}
	user := &tele.User{ID: userID}
	if err := m.api.Ban(chat, &tele.ChatMember{User: user}); err != nil {
		return fmt.Errorf("failed to kick user %d: %w", userID, err)
	}
	if err := m.api.Unban(chat, user, true); err != nil {
		return fmt.Errorf("failed to lift ban after kick for user %d: %w", userID, err)
	}
	return nil
}

// BanUser блокирует участника в чате и во всех остальных управляемых чатах.
// Ошибка возвращается только для исходного чата.
func (m *ChatModerator) BanUser(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	member := &tele.ChatMember{User: &tele.User{ID: userID}}
	if err := m.api.Ban(&tele.Chat{ID: chatID}, member, true); err != nil {
		return fmt.Errorf("failed to ban user %d: %w", userID, err)
	}

	if m.managed == nil {
		return nil
	}
	for _, other := range m.managed() {
		if other == chatID {
			continue
		}
		if err := m.api.Ban(&tele.Chat{ID: other}, member, true); err != nil {
			slog.Warn("failed to ban user in managed chat", "chat_id", other, "user_id", userID, "error", err)
		}
	}
	return nil
}

// ReturnLink ссылка для возврата в чат: публичная, если есть username, иначе пригласительная
func (m *ChatModerator) ReturnLink(ctx context.Context, chatID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	link, ok := m.links[chatID]
	m.mu.Unlock()
	if ok {
		return link, nil
	}

	chat, err := m.api.ChatByID(chatID)
	if err != nil {
		return "", fmt.Errorf("failed to get chat %d: %w", chatID, err)
	}
	if chat.Username != "" {
		link = "https://t.me/" + chat.Username
	} else {
		link, err = m.api.InviteLink(chat)
		if err != nil {
			return "", fmt.Errorf("failed to get invite link for chat %d: %w", chatID, err)
		}
	}

	m.mu.Lock()
	m.links[chatID] = link
	m.mu.Unlock()
	return link, nil
}

// IsAdmin проверяет, что пользователь администратор чата
func (m *ChatModerator) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	admins, err := m.api.AdminsOf(&tele.Chat{ID: chatID})
	if err != nil {
		return false, fmt.Errorf("failed to get admins of chat %d: %w", chatID, err)
	}
	for _, a := range admins {
		if a.User != nil && a.User.ID == userID {
			return true, nil
		}
	}
	return false, nil
}
