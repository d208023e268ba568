package service

import (
	"context"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// SessionStore хранилище активных сессий экзамена.
// RecordMcAnswer и RecordOpenEndedAnswer должны сериализовать запись внутри одной сессии.
type SessionStore interface {
	CreateSession(ctx context.Context, chatID, userID int64, createdAt, expiresAt time.Time) (*model.ExamSession, error)
	GetByID(ctx context.Context, sessionID int64) (*model.ExamSession, error)
	GetByChatAndUser(ctx context.Context, chatID, userID int64) (*model.ExamSession, error)
	GetActiveForUser(ctx context.Context, userID int64, now time.Time) ([]model.ExamSession, error)
	// RecordMcAnswer записывает ответ, только если текущий индекс сессии равен questionIndex,
	// и переводит сессию на следующий вопрос. Возвращает false, если запись не применена.
	RecordMcAnswer(ctx context.Context, sessionID int64, questionIndex int, letter string, perm model.Permutation) (bool, error)
	// RecordOpenEndedAnswer записывает ответ, если он еще не записан
	RecordOpenEndedAnswer(ctx context.Context, sessionID int64, text string) (bool, error)
	// DeleteSession возвращает false, если сессия уже удалена
	DeleteSession(ctx context.Context, sessionID int64) (bool, error)
	HasActiveSession(ctx context.Context, chatID, userID int64) (bool, error)
}

// EvaluationGateway внешний экзаменатор для открытого вопроса.
// Ошибки и отмена контекста возвращаются как VerdictUnavailable.
type EvaluationGateway interface {
	EvaluateAnswer(ctx context.Context, req model.EvaluationRequest) model.Evaluation
}

// QuestionPrompt вопрос, подготовленный к показу. Варианты уже в порядке показа.
// Пустой Choices означает открытый вопрос.
type QuestionPrompt struct {
	ChatID    int64
	UserID    int64
	SessionID int64
	Index     int
	Total     int
	Text      string
	Choices   []string
	ExpiresAt time.Time
}

// MessagingGateway отправка и удаление сообщений в чате
type MessagingGateway interface {
	SendQuestion(ctx context.Context, q QuestionPrompt) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendNotice(ctx context.Context, n model.Notice) (int, error)
}

// ReportsRepository хранилище проваленных экзаменов
type ReportsRepository interface {
	InsertExamFailure(ctx context.Context, record model.ExamFailureRecord) (int64, error)
}

// ConfigProvider возвращает конфигурацию экзамена для чата
type ConfigProvider interface {
	GetExamConfig(ctx context.Context, chatID int64) (*model.ExamConfig, error)
}

// DeadlineQueue планировщик таймаутов сессий
type DeadlineQueue interface {
	Schedule(ctx context.Context, sessionID int64, at time.Time) error
	Cancel(ctx context.Context, sessionID int64) error
}

// Moderator общие процедуры одобрения и отклонения
type Moderator interface {
	Approve(ctx context.Context, chatID, userID int64, actor model.Actor, reason string) model.ModerationResult
	Deny(ctx context.Context, chatID, userID int64, ban bool, actor model.Actor, reason string) model.ModerationResult
}

// EventPublisher публикация событий аудита
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}
