package service

import (
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// Stage этап сессии, вычисляемый из сохраненного состояния.
// Завершенные сессии удаляются, поэтому отдельного этапа для них нет.
type Stage int

const (
	StageNotStarted Stage = iota
	StageInProgress
	StageAwaitingOpenEnded
	StageEvaluating
	StageExpired
)

func (s Stage) String() string {
	switch s {
	case StageInProgress:
		return "in_progress"
	case StageAwaitingOpenEnded:
		return "awaiting_open_ended"
	case StageEvaluating:
		return "evaluating"
	case StageExpired:
		return "expired"
	default:
		return "not_started"
	}
}

// StageOf определяет этап сессии
func StageOf(session *model.ExamSession, cfg *model.ExamConfig, now time.Time) Stage {
	if session == nil {
		return StageNotStarted
	}
	if session.Expired(now) {
		return StageExpired
	}
	if session.CurrentQuestionIndex < len(cfg.McQuestions) {
		return StageInProgress
	}
	if cfg.HasOpenEnded() && session.OpenEndedAnswer == nil {
		return StageAwaitingOpenEnded
	}
	return StageEvaluating
}
