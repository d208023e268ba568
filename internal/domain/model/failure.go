package model

import "time"

// ExamFailureRecord сохраняется для ручной проверки после проваленного экзамена.
// Содержит перестановки, чтобы модератор видел ровно то, что видел пользователь.
type ExamFailureRecord struct {
	ID               int64        `json:"id"`
	ChatID           int64        `json:"chat_id"`
	UserID           int64        `json:"user_id"`
	McAnswers        McAnswers    `json:"mc_answers"`
	ShuffleState     Permutations `json:"shuffle_state"`
	OpenEndedAnswer  *string      `json:"open_ended_answer,omitempty"`
	Score            int          `json:"score"`
	PassingThreshold int          `json:"passing_threshold"`
	AiEvaluation     string       `json:"ai_evaluation,omitempty"`
	FailedAt         time.Time    `json:"failed_at"`
}

// Действия ручной проверки
const (
	ReviewActionApprove = "approve"
	ReviewActionDeny    = "deny"
	ReviewActionBan     = "ban"
)

// ExamReview запись аудита о решении по проваленному экзамену
type ExamReview struct {
	FailureID  int64     `json:"failure_id"`
	Action     string    `json:"action"`
	Actor      Actor     `json:"actor"`
	Reason     string    `json:"reason"`
	ReviewedAt time.Time `json:"reviewed_at"`
}
