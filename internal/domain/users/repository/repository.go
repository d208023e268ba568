package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository участники управляемых чатов в PostgreSQL
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository создает новый экземпляр UserRepository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertPending регистрирует вошедшего участника со статусом pending.
// Заблокированный участник остается заблокированным.
func (r *UserRepository) UpsertPending(ctx context.Context, user model.ChatUser) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO chat_users (chat_id, user_id, username, first_name, status)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (chat_id, user_id) DO UPDATE
            SET username = EXCLUDED.username,
                first_name = EXCLUDED.first_name,
                status = CASE WHEN chat_users.status = $6 THEN chat_users.status ELSE EXCLUDED.status END,
                updated_at = now()`,
		user.ChatID, user.UserID, user.Username, user.FirstName, model.UserStatusPending, model.UserStatusBanned)
	if err != nil {
		return fmt.Errorf("failed to upsert chat user: %w", err)
	}
	return nil
}

// GetChatUser возвращает участника чата или nil
func (r *UserRepository) GetChatUser(ctx context.Context, chatID, userID int64) (*model.ChatUser, error) {
	var u model.ChatUser
	err := r.db.QueryRow(ctx, `
        SELECT chat_id, user_id, username, first_name, status, created_at, updated_at
        FROM chat_users
        WHERE chat_id = $1 AND user_id = $2`, chatID, userID).
		Scan(&u.ChatID, &u.UserID, &u.Username, &u.FirstName, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Если участника нет, возвращаем nil
		}
		return nil, fmt.Errorf("failed to get chat user: %w", err)
	}
	return &u, nil
}

// MarkActive переводит участника в статус active
func (r *UserRepository) MarkActive(ctx context.Context, chatID, userID int64) error {
	return r.setStatus(ctx, chatID, userID, model.UserStatusActive)
}

// MarkBanned переводит участника в статус banned
func (r *UserRepository) MarkBanned(ctx context.Context, chatID, userID int64) error {
	return r.setStatus(ctx, chatID, userID, model.UserStatusBanned)
}

func (r *UserRepository) setStatus(ctx context.Context, chatID, userID int64, status string) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO chat_users (chat_id, user_id, status)
        VALUES ($1, $2, $3)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET status = EXCLUDED.status, updated_at = now()`,
		chatID, userID, status)
	if err != nil {
		return fmt.Errorf("failed to set user status %s: %w", status, err)
	}
	return nil
}
