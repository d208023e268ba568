// Package i18n локализует тексты бота. Переводы встроены в бинарник.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// DefaultLanguage язык по умолчанию
const DefaultLanguage = "ru"

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	mu       sync.RWMutex
	bundle   *i18n.Bundle
	fallback = DefaultLanguage
)

// Init загружает переводы. lang становится языком по умолчанию.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	mu.Lock()
	bundle = b
	fallback = lang
	mu.Unlock()
	return nil
}

func currentBundle() (*i18n.Bundle, string) {
	mu.RLock()
	defer mu.RUnlock()
	return bundle, fallback
}

// NewLocalizer создает локализатор для языка
func NewLocalizer(lang string) *i18n.Localizer {
	b, def := currentBundle()
	return i18n.NewLocalizer(b, lang, def)
}

// WithLocalizer сохраняет локализатор в контексте
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// WithLanguage сохраняет в контексте локализатор для языка пользователя
func WithLanguage(ctx context.Context, lang string) context.Context {
	return WithLocalizer(ctx, NewLocalizer(lang))
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	b, def := currentBundle()
	return i18n.NewLocalizer(b, def)
}

// T переводит сообщение по идентификатору
func T(ctx context.Context, msgID string) string {
	return Td(ctx, msgID, nil)
}

// Td переводит сообщение с параметрами шаблона.
// Для отсутствующего перевода возвращает сам идентификатор.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	if b, _ := currentBundle(); b == nil {
		return msgID
	}
	s, err := localizerFromCtx(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
