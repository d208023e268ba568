package service

import (
	"context"
	"fmt"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// Repository хранилище участников чатов
type Repository interface {
	UpsertPending(ctx context.Context, user model.ChatUser) error
	GetChatUser(ctx context.Context, chatID, userID int64) (*model.ChatUser, error)
}

// UserService содержит логику бизнес-операций для участников чатов
type UserService struct {
	userRepo Repository
}

// NewUserService создает новый экземпляр UserService
func NewUserService(userRepo Repository) *UserService {
	return &UserService{userRepo: userRepo}
}

// RegisterJoin регистрирует нового участника. Возвращает false, если участник заблокирован
// и экзамен ему не положен.
func (s *UserService) RegisterJoin(ctx context.Context, user model.ChatUser) (bool, error) {
	existing, err := s.userRepo.GetChatUser(ctx, user.ChatID, user.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to get chat user: %w", err)
	}
	if existing != nil && existing.Status == model.UserStatusBanned {
		return false, nil
	}

	if err := s.userRepo.UpsertPending(ctx, user); err != nil {
		return false, fmt.Errorf("failed to register chat user: %w", err)
	}
	return true, nil
}
