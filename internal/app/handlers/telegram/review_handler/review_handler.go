package review_handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	moderationService "github.com/IT-Nick/gatekeeper/internal/domain/moderation/service"
	tele "gopkg.in/telebot.v4"
)

// ReasonManualReview причина решения, принятого кнопкой в чате модераторов
const ReasonManualReview = "manual review"

// Reviewer решения по проваленным экзаменам
type Reviewer interface {
	Review(ctx context.Context, failureID int64, action string, actor model.Actor, reason string) model.ModerationResult
}

// Admins проверка прав модератора
type Admins interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Renderer локализованные тексты
type Renderer interface {
	Render(ctx context.Context, chatID int64, key string, data map[string]any) string
}

type ReviewHandler struct {
	reviewer     Reviewer
	admins       Admins
	messages     Renderer
	reviewChatID int64
}

func NewReviewHandler(reviewer Reviewer, admins Admins, messages Renderer, reviewChatID int64) *ReviewHandler {
	return &ReviewHandler{
		reviewer:     reviewer,
		admins:       admins,
		messages:     messages,
		reviewChatID: reviewChatID,
	}
}

// Outcome итог нажатия кнопки проверки
type Outcome struct {
	Done bool
	Text string
}

func (h *ReviewHandler) Handle(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil || c.Chat() == nil {
		return nil
	}

	ctx := context.Background()
	actor := model.Actor{ID: c.Sender().ID, Name: actorName(c.Sender())}
	private := c.Chat().Type == tele.ChatPrivate
	data := strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f")
	out := h.HandleReview(ctx, c.Chat().ID, private, actor, data)

	if !out.Done {
		return c.Respond(&tele.CallbackResponse{Text: out.Text, ShowAlert: true})
	}
	if err := c.Respond(); err != nil {
		slog.Warn("failed to answer review callback", "error", err)
	}
	if err := c.Edit(&tele.ReplyMarkup{}); err != nil {
		slog.Warn("failed to remove review buttons", "error", err)
	}
	return c.Send(out.Text, &tele.SendOptions{ReplyTo: cb.Message})
}

// HandleReview проверяет права нажавшего и выполняет решение
func (h *ReviewHandler) HandleReview(ctx context.Context, chatID int64, private bool, actor model.Actor, data string) Outcome {
	action, failureID, err := moderationService.ParseReviewCallback(data)
	if err != nil {
		slog.Debug("ignoring malformed review callback", "data", data, "error", err)
		return Outcome{Text: h.failure(ctx, chatID, err.Error())}
	}

	allowed, err := h.authorized(ctx, chatID, private, actor.ID)
	if err != nil {
		slog.Error("failed to check reviewer rights", "chat_id", chatID, "user_id", actor.ID, "error", err)
		return Outcome{Text: h.failure(ctx, chatID, err.Error())}
	}
	if !allowed {
		slog.Warn("review attempt by non-admin", "chat_id", chatID, "user_id", actor.ID, "failure_id", failureID)
		return Outcome{Text: h.messages.Render(ctx, chatID, "review.forbidden", nil)}
	}

	res := h.reviewer.Review(ctx, failureID, action, actor, ReasonManualReview)
	if !res.Success {
		return Outcome{Text: h.failure(ctx, chatID, res.ErrorMessage)}
	}

	slog.Info("exam failure reviewed", "failure_id", failureID, "action", action, "actor_id", actor.ID)
	return Outcome{
		Done: true,
		Text: h.messages.Render(ctx, chatID, "review.done", map[string]any{
			"FailureID": failureID,
			"Action":    action,
			"Actor":     actor.String(),
		}),
	}
}

func (h *ReviewHandler) authorized(ctx context.Context, chatID int64, private bool, userID int64) (bool, error) {
	if h.reviewChatID != 0 && chatID != h.reviewChatID {
		return false, nil
	}
	if private {
		return chatID == userID, nil
	}
	ok, err := h.admins.IsAdmin(ctx, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return ok, nil
}

func (h *ReviewHandler) failure(ctx context.Context, chatID int64, reason string) string {
	return h.messages.Render(ctx, chatID, "review.failed", map[string]any{"Error": reason})
}

func actorName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

func (h *ReviewHandler) GetHandlerFunc() tele.HandlerFunc {
	return h.Handle
}
