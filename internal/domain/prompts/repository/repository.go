package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PromptRepository записи о сообщениях, отправленных новым участникам
type PromptRepository struct {
	db *pgxpool.Pool
}

// NewPromptRepository создает новый экземпляр PromptRepository
func NewPromptRepository(db *pgxpool.Pool) *PromptRepository {
	return &PromptRepository{db: db}
}

// Create сохраняет запись в статусе pending
func (r *PromptRepository) Create(ctx context.Context, chatID, userID int64, messageID int) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		"INSERT INTO join_prompts (chat_id, user_id, message_id, status) VALUES ($1, $2, $3, $4) RETURNING id",
		chatID, userID, messageID, model.PromptStatusPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create join prompt: %w", err)
	}
	return id, nil
}

// GetLatest возвращает последнюю запись пользователя в чате или nil
func (r *PromptRepository) GetLatest(ctx context.Context, chatID, userID int64) (*model.JoinPrompt, error) {
	query := `
        SELECT id, chat_id, user_id, message_id, status, decided_by, decided_at, created_at
        FROM join_prompts
        WHERE chat_id = $1 AND user_id = $2
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `
	var p model.JoinPrompt
	err := r.db.QueryRow(ctx, query, chatID, userID).Scan(
		&p.ID, &p.ChatID, &p.UserID, &p.MessageID, &p.Status, &p.DecidedBy, &p.DecidedAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get join prompt: %w", err)
	}
	return &p, nil
}

// Transition меняет статус записи, если текущий статус равен from.
// Возврат в pending очищает сведения о решении.
func (r *PromptRepository) Transition(ctx context.Context, promptID int64, from, to string, actor model.Actor, at time.Time) (bool, error) {
	var (
		decidedBy *int64
		decidedAt *time.Time
	)
	if to != model.PromptStatusPending {
		decidedBy = &actor.ID
		decidedAt = &at
	}

	tag, err := r.db.Exec(ctx,
		"UPDATE join_prompts SET status = $3, decided_by = $4, decided_at = $5 WHERE id = $1 AND status = $2",
		promptID, from, to, decidedBy, decidedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update join prompt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
