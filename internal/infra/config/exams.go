package config

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// ErrExamConfigNotFound для чата не настроен экзамен
var ErrExamConfigNotFound = errors.New("exam config not found")

// ExamProvider выбирает конфигурацию экзамена для чата
type ExamProvider struct {
	exams   Exams
	managed []int64
}

// NewExamProvider создает новый экземпляр ExamProvider
func NewExamProvider(exams Exams, managedChats []int64) *ExamProvider {
	return &ExamProvider{exams: exams, managed: managedChats}
}

// GetExamConfig возвращает экзамен чата или экзамен по умолчанию
func (p *ExamProvider) GetExamConfig(_ context.Context, chatID int64) (*model.ExamConfig, error) {
	if cfg, ok := p.exams.Chats[chatID]; ok && cfg != nil {
		return cfg, nil
	}
	if p.exams.Default != nil {
		return p.exams.Default, nil
	}
	return nil, fmt.Errorf("%w: chat %d", ErrExamConfigNotFound, chatID)
}

// Managed сообщает, нужно ли экзаменовать новых участников чата
func (p *ExamProvider) Managed(chatID int64) bool {
	if len(p.managed) > 0 {
		return slices.Contains(p.managed, chatID)
	}
	if _, ok := p.exams.Chats[chatID]; ok {
		return true
	}
	return p.exams.Default != nil
}

// ManagedChats явно перечисленные чаты
func (p *ExamProvider) ManagedChats() []int64 {
	return slices.Clone(p.managed)
}
