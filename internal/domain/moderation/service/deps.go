package service

import (
	"context"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// ModerationOrchestrator действия с правами участника в чате
type ModerationOrchestrator interface {
	// RestorePermissions снимает ограничения, наложенные при входе
	RestorePermissions(ctx context.Context, chatID, userID int64) error
	// KickFromChat удаляет участника, повторный вход разрешен
	KickFromChat(ctx context.Context, chatID, userID int64) error
	// BanUser блокирует участника во всех управляемых чатах
	BanUser(ctx context.Context, chatID, userID int64) error
}

// PromptRepository записи о приглашениях к экзамену
type PromptRepository interface {
	GetLatest(ctx context.Context, chatID, userID int64) (*model.JoinPrompt, error)
	// Transition меняет статус только из состояния from. Возвращает false, если статус уже другой.
	Transition(ctx context.Context, promptID int64, from, to string, actor model.Actor, at time.Time) (bool, error)
}

// UserRepository статусы участников чатов
type UserRepository interface {
	MarkActive(ctx context.Context, chatID, userID int64) error
	MarkBanned(ctx context.Context, chatID, userID int64) error
}

// LinkResolver возвращает ссылку для возврата в чат
type LinkResolver interface {
	ReturnLink(ctx context.Context, chatID int64) (string, error)
}

// Notifier отправка уведомлений
type Notifier interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendNotice(ctx context.Context, n model.Notice) (int, error)
}

// ReviewRepository проваленные экзамены и решения по ним
type ReviewRepository interface {
	GetExamFailure(ctx context.Context, failureID int64) (*model.ExamFailureRecord, error)
	GetReview(ctx context.Context, failureID int64) (*model.ExamReview, error)
	InsertReview(ctx context.Context, review model.ExamReview) error
}

// EventPublisher публикация событий аудита
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}
