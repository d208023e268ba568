package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"sync"

	"github.com/IT-Nick/gatekeeper/internal/domain/exams/service"
	"github.com/IT-Nick/gatekeeper/internal/domain/exams/shuffle"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	tele "gopkg.in/telebot.v4"
)

// Ключи шаблонов вопросов
const (
	KeyQuestion     = "exam.question"
	KeyOpenQuestion = "exam.open_question"
)

// Renderer выбирает текст сообщения по ключу
type Renderer interface {
	Render(ctx context.Context, chatID int64, key string, data map[string]any) string
}

// Gateway отправляет вопросы и уведомления
type Gateway struct {
	api      API
	messages Renderer

	mu    sync.RWMutex
	names map[int64]string
}

// NewGateway создает новый экземпляр Gateway
func NewGateway(api API, messages Renderer) *Gateway {
	return &Gateway{
		api:      api,
		messages: messages,
		names:    make(map[int64]string),
	}
}

// Remember запоминает имя пользователя для упоминаний
func (g *Gateway) Remember(u *tele.User) {
	if u == nil {
		return
	}
	name := DisplayName(u)
	if name == "" {
		return
	}
	g.mu.Lock()
	g.names[u.ID] = name
	g.mu.Unlock()
}

func (g *Gateway) mention(userID int64) string {
	g.mu.RLock()
	name := g.names[userID]
	g.mu.RUnlock()
	return Mention(userID, name)
}

// SendQuestion отправляет вопрос. Варианты ответа становятся кнопками A, B, ...
func (g *Gateway) SendQuestion(ctx context.Context, q service.QuestionPrompt) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key := KeyQuestion
	if len(q.Choices) == 0 {
		key = KeyOpenQuestion
	}
	text := g.messages.Render(ctx, q.ChatID, key, map[string]any{
		"Mention": g.mention(q.UserID),
		"Number":  q.Index + 1,
		"Total":   q.Total,
		"Text":    html.EscapeString(q.Text),
	})

	buttons := make([]button, 0, len(q.Choices))
	for pos, choice := range q.Choices {
		buttons = append(buttons, button{
			text: shuffle.Letter(pos) + ". " + choice,
			data: service.FormatCallback(q.SessionID, q.Index, pos),
		})
	}

	msg, err := g.api.Send(tele.ChatID(q.ChatID), text, &tele.SendOptions{
		ParseMode:   tele.ModeHTML,
		ReplyMarkup: inlineMarkup(buttons),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send question: %w", err)
	}
	return msg.ID, nil
}

// DeleteMessage удаляет сообщение бота
func (g *Gateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := g.api.Delete(tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
	if err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// SendNotice отправляет уведомление. UserID в данных превращается в упоминание.
func (g *Gateway) SendNotice(ctx context.Context, n model.Notice) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	if userID, ok := n.Data["UserID"].(int64); ok {
		if _, set := data["Mention"]; !set {
			data["Mention"] = g.mention(userID)
		}
	}
	if reasoning, ok := data["Reasoning"].(string); ok {
		data["Reasoning"] = html.EscapeString(reasoning)
	}

	buttons := make([]button, 0, len(n.Buttons))
	for _, b := range n.Buttons {
		buttons = append(buttons, button{
			text: g.messages.Render(ctx, n.ChatID, b.Text, nil),
			data: b.Data,
		})
	}

	text := g.messages.Render(ctx, n.ChatID, n.Key, data)
	msg, err := g.api.Send(tele.ChatID(n.ChatID), text, &tele.SendOptions{
		ParseMode:   tele.ModeHTML,
		ReplyMarkup: inlineMarkup(buttons),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send notice %s: %w", n.Key, err)
	}
	return msg.ID, nil
}
