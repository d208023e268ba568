package dto

import (
	"time"

	examsService "github.com/IT-Nick/gatekeeper/internal/domain/exams/service"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// ExamFailureResponse проваленный экзамен для модератора
type ExamFailureResponse struct {
	ID               int64                     `json:"id"`
	ChatID           int64                     `json:"chat_id"`
	UserID           int64                     `json:"user_id"`
	Score            int                       `json:"score"`
	PassingThreshold int                       `json:"passing_threshold"`
	OpenEndedAnswer  *string                   `json:"open_ended_answer,omitempty"`
	AiEvaluation     string                    `json:"ai_evaluation,omitempty"`
	FailedAt         time.Time                 `json:"failed_at"`
	Replay           []examsService.ReplayItem `json:"replay,omitempty"`
	Review           *model.ExamReview         `json:"review,omitempty"`
}

// ExamFailuresResponse список записей, ожидающих решения
type ExamFailuresResponse struct {
	Total    int                   `json:"total"`
	Failures []ExamFailureResponse `json:"failures"`
}

// NewExamFailureResponse собирает ответ из записи о провале
func NewExamFailureResponse(record model.ExamFailureRecord) ExamFailureResponse {
	return ExamFailureResponse{
		ID:               record.ID,
		ChatID:           record.ChatID,
		UserID:           record.UserID,
		Score:            record.Score,
		PassingThreshold: record.PassingThreshold,
		OpenEndedAnswer:  record.OpenEndedAnswer,
		AiEvaluation:     record.AiEvaluation,
		FailedAt:         record.FailedAt,
	}
}
