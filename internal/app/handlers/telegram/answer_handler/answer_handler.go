package answer_handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	examsService "github.com/IT-Nick/gatekeeper/internal/domain/exams/service"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	tele "gopkg.in/telebot.v4"
)

// Exams обработка ответа на вопрос с вариантами
type Exams interface {
	HandleMcAnswer(ctx context.Context, ans examsService.McAnswer) (model.ExamAnswerResult, error)
}

type AnswerHandler struct {
	exams Exams
}

func NewAnswerHandler(exams Exams) *AnswerHandler {
	return &AnswerHandler{exams: exams}
}

// CleanCallbackData убирает служебный префикс \f, который telebot добавляет к данным кнопок
func CleanCallbackData(data string) string {
	cleaned := strings.TrimSpace(data)
	cleaned = strings.ReplaceAll(cleaned, "\f", "")
	cleaned = strings.ReplaceAll(cleaned, "\\f", "")
	return cleaned
}

func (h *AnswerHandler) Handle(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	messageID := 0
	if cb.Message != nil {
		messageID = cb.Message.ID
	}
	if err := h.HandleAnswer(context.Background(), CleanCallbackData(cb.Data), c.Sender().ID, messageID); err != nil {
		slog.Error("failed to handle exam answer", "data", cb.Data, "user_id", c.Sender().ID, "error", err)
	}
	return c.Respond()
}

// HandleAnswer разбирает данные кнопки и передает ответ в сервис экзаменов.
// Неверный формат кнопки игнорируется.
func (h *AnswerHandler) HandleAnswer(ctx context.Context, data string, userID int64, messageID int) error {
	sessionID, questionIndex, answerIndex, err := examsService.ParseCallback(data)
	if err != nil {
		if errors.Is(err, examsService.ErrMalformedCallback) {
			slog.Debug("ignoring malformed exam callback", "data", data, "error", err)
			return nil
		}
		return err
	}

	res, err := h.exams.HandleMcAnswer(ctx, examsService.McAnswer{
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		AnswerIndex:   answerIndex,
		UserID:        userID,
		MessageID:     messageID,
	})
	if err != nil {
		return err
	}
	if res.Complete {
		slog.Info("exam completed",
			"session_id", sessionID, "user_id", userID,
			"passed", res.Passed != nil && *res.Passed, "sent_to_review", res.SentToReview)
	}
	return nil
}

func (h *AnswerHandler) GetHandlerFunc() tele.HandlerFunc {
	return h.Handle
}
