package join_handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	tele "gopkg.in/telebot.v4"
)

// ExamConfigs конфигурация экзаменов по чатам
type ExamConfigs interface {
	Managed(chatID int64) bool
	GetExamConfig(ctx context.Context, chatID int64) (*model.ExamConfig, error)
}

// Exams запуск экзамена
type Exams interface {
	HasActiveSession(ctx context.Context, chatID, userID int64) (bool, error)
	StartExam(ctx context.Context, chatID, userID int64, cfg *model.ExamConfig) (model.ExamStartResult, error)
}

// Users учет участников
type Users interface {
	RegisterJoin(ctx context.Context, user model.ChatUser) (bool, error)
}

// Chats ограничение прав в чате
type Chats interface {
	RestrictNewcomer(ctx context.Context, chatID, userID int64) error
	RestorePermissions(ctx context.Context, chatID, userID int64) error
	BanUser(ctx context.Context, chatID, userID int64) error
}

// Prompts записи о приглашениях к экзамену
type Prompts interface {
	Create(ctx context.Context, chatID, userID int64, messageID int) (int64, error)
}

// NameBook запоминает имена для упоминаний
type NameBook interface {
	Remember(u *tele.User)
}

type JoinHandler struct {
	configs ExamConfigs
	exams   Exams
	users   Users
	chats   Chats
	prompts Prompts
	names   NameBook
}

// NewJoinHandler создает новый экземпляр JoinHandler
func NewJoinHandler(configs ExamConfigs, exams Exams, users Users, chats Chats, prompts Prompts, names NameBook) *JoinHandler {
	return &JoinHandler{
		configs: configs,
		exams:   exams,
		users:   users,
		chats:   chats,
		prompts: prompts,
		names:   names,
	}
}

func (h *JoinHandler) Handle(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.UserJoined == nil || c.Chat() == nil {
		return nil
	}
	return h.HandleJoin(context.Background(), c.Chat().ID, msg.UserJoined)
}

// HandleJoin ограничивает нового участника и запускает для него экзамен
func (h *JoinHandler) HandleJoin(ctx context.Context, chatID int64, user *tele.User) error {
	if user == nil || user.IsBot {
		return nil
	}
	if !h.configs.Managed(chatID) {
		return nil
	}
	log := slog.With("chat_id", chatID, "user_id", user.ID)

	active, err := h.exams.HasActiveSession(ctx, chatID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to check active session: %w", err)
	}
	if active {
		log.Debug("exam already in progress")
		return nil
	}

	h.names.Remember(user)
	allowed, err := h.users.RegisterJoin(ctx, model.ChatUser{
		ChatID:    chatID,
		UserID:    user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
	})
	if err != nil {
		return fmt.Errorf("failed to register join: %w", err)
	}
	if !allowed {
		log.Info("banned user rejoined, removing")
		return h.chats.BanUser(ctx, chatID, user.ID)
	}

	cfg, err := h.configs.GetExamConfig(ctx, chatID)
	if err != nil {
		log.Error("no exam configured for managed chat", "error", err)
		return nil
	}

	if err := h.chats.RestrictNewcomer(ctx, chatID, user.ID); err != nil {
		return fmt.Errorf("failed to restrict newcomer: %w", err)
	}

	res, err := h.exams.StartExam(ctx, chatID, user.ID, cfg)
	if err != nil {
		if errors.Is(err, model.ErrActiveSession) {
			return nil
		}
		if rErr := h.chats.RestorePermissions(ctx, chatID, user.ID); rErr != nil {
			log.Error("failed to lift restriction after failed exam start", "error", rErr)
		}
		return fmt.Errorf("failed to start exam: %w", err)
	}

	if _, err := h.prompts.Create(ctx, chatID, user.ID, res.PromptMessageID); err != nil {
		log.Error("failed to store join prompt", "message_id", res.PromptMessageID, "error", err)
	}
	return nil
}

func (h *JoinHandler) GetHandlerFunc() tele.HandlerFunc {
	return h.Handle
}
