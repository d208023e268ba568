package model

import "time"

// Статусы записи о приглашении к экзамену
const (
	PromptStatusPending  = "pending"
	PromptStatusAccepted = "accepted"
	PromptStatusDenied   = "denied"
)

// JoinPrompt запись об исходном сообщении, отправленном новому участнику
type JoinPrompt struct {
	ID        int64      `json:"id"`
	ChatID    int64      `json:"chat_id"`
	UserID    int64      `json:"user_id"`
	MessageID int        `json:"message_id"`
	Status    string     `json:"status"`
	DecidedBy *int64     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Pending сообщает, что решение по записи еще не принято
func (p *JoinPrompt) Pending() bool {
	return p.Status == PromptStatusPending
}
