package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/IT-Nick/gatekeeper/internal/i18n"
)

// Repository источник переопределенных текстов
type Repository interface {
	GetMessageByKey(ctx context.Context, chatID int64, messageKey string) (string, bool, error)
	SetMessage(ctx context.Context, chatID int64, messageKey, text string) error
}

// ErrEmptyOverride пустой текст переопределения
var ErrEmptyOverride = errors.New("override text is empty")

// MessageService выбирает текст сообщения: переопределение из базы или перевод
type MessageService struct {
	messageRepo Repository
}

// NewMessageService создает новый экземпляр MessageService
func NewMessageService(messageRepo Repository) *MessageService {
	return &MessageService{messageRepo: messageRepo}
}

// Render возвращает текст по ключу с подставленными данными
func (s *MessageService) Render(ctx context.Context, chatID int64, key string, data map[string]any) string {
	if s.messageRepo != nil {
		text, ok, err := s.messageRepo.GetMessageByKey(ctx, chatID, key)
		if err != nil {
			slog.Warn("failed to load message override", "key", key, "chat_id", chatID, "error", err)
		}
		if ok {
			rendered, err := execute(key, text, data)
			if err == nil {
				return rendered
			}
			slog.Warn("bad message override template", "key", key, "chat_id", chatID, "error", err)
		}
	}
	return i18n.Td(ctx, key, data)
}

// SetOverride сохраняет текст для ключа. chatID = 0 задает текст для всех чатов.
// Текст проверяется как шаблон до записи.
func (s *MessageService) SetOverride(ctx context.Context, chatID int64, key, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyOverride
	}
	if _, err := template.New(key).Parse(text); err != nil {
		return fmt.Errorf("invalid template for %s: %w", key, err)
	}
	return s.messageRepo.SetMessage(ctx, chatID, key, text)
}

func execute(name, text string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
