package open_answer_handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	tele "gopkg.in/telebot.v4"
)

// Exams прием текстового ответа
type Exams interface {
	HasActiveSession(ctx context.Context, chatID, userID int64) (bool, error)
	HandleOpenEndedAnswer(ctx context.Context, chatID, userID int64, text string) (model.ExamAnswerResult, error)
}

// MessageDeleter удаление сообщений участника
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// OpenAnswerHandler принимает ответ на открытый вопрос из сообщения в группе.
// Сообщения участника, который сдает экзамен, удаляются из чата.
type OpenAnswerHandler struct {
	exams    Exams
	messages MessageDeleter
}

func NewOpenAnswerHandler(exams Exams, messages MessageDeleter) *OpenAnswerHandler {
	return &OpenAnswerHandler{exams: exams, messages: messages}
}

func (h *OpenAnswerHandler) Handle(c tele.Context) error {
	msg := c.Message()
	if msg == nil || c.Sender() == nil || c.Chat() == nil || c.Chat().Type == tele.ChatPrivate {
		return nil
	}
	return h.HandleText(context.Background(), c.Chat().ID, c.Sender().ID, msg.ID, msg.Text)
}

// HandleText передает текст в сервис экзаменов, если у автора идет экзамен
func (h *OpenAnswerHandler) HandleText(ctx context.Context, chatID, userID int64, messageID int, text string) error {
	active, err := h.exams.HasActiveSession(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to check active session: %w", err)
	}
	if !active {
		return nil
	}

	res, err := h.exams.HandleOpenEndedAnswer(ctx, chatID, userID, text)
	if err != nil {
		slog.Error("failed to handle open-ended answer", "chat_id", chatID, "user_id", userID, "error", err)
	}
	if res.Complete {
		slog.Info("exam completed",
			"chat_id", chatID, "user_id", userID,
			"passed", res.Passed != nil && *res.Passed, "sent_to_review", res.SentToReview)
	}

	if err := h.messages.DeleteMessage(ctx, chatID, messageID); err != nil {
		slog.Warn("failed to delete examinee message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
	return nil
}

func (h *OpenAnswerHandler) GetHandlerFunc() tele.HandlerFunc {
	return h.Handle
}
