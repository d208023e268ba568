package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository переопределения текстов бота
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository создает новый экземпляр MessageRepository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// GetMessageByKey возвращает текст для чата. Текст конкретного чата важнее общего (chat_id IS NULL).
// Если переопределения нет, возвращает false.
func (r *MessageRepository) GetMessageByKey(ctx context.Context, chatID int64, messageKey string) (string, bool, error) {
	var messageText string
	err := r.db.QueryRow(ctx, `
        SELECT message_text
        FROM messages
        WHERE message_key = $1 AND (chat_id = $2 OR chat_id IS NULL)
        ORDER BY chat_id NULLS LAST
        LIMIT 1`, messageKey, chatID).
		Scan(&messageText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get message: %w", err)
	}
	return messageText, true, nil
}

// SetMessage сохраняет переопределение текста. chatID = 0 задает общий текст.
func (r *MessageRepository) SetMessage(ctx context.Context, chatID int64, messageKey, text string) error {
	var chat *int64
	if chatID != 0 {
		chat = &chatID
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO messages (chat_id, message_key, message_text)
        VALUES ($1, $2, $3)
        ON CONFLICT ((COALESCE(chat_id, 0)), message_key) DO UPDATE SET message_text = EXCLUDED.message_text`,
		chat, messageKey, text)
	if err != nil {
		return fmt.Errorf("failed to set message: %w", err)
	}
	return nil
}
