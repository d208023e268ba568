package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxAnswersPerQuestion ограничено количеством букв для кнопок A..Z
const MaxAnswersPerQuestion = 26

var (
	// ErrInvalidExamConfig возвращается, если конфигурация экзамена неполная или противоречивая
	ErrInvalidExamConfig = errors.New("invalid exam config")
	// ErrActiveSession у пользователя уже идет экзамен в этом чате
	ErrActiveSession = errors.New("active exam session already exists")
)

// McQuestion вопрос с вариантами ответа. Answers[0] всегда правильный ответ.
type McQuestion struct {
	Question string   `json:"question" yaml:"question"`
	Answers  []string `json:"answers" yaml:"answers"`
}

// ExamConfig описывает вступительный экзамен для чата
type ExamConfig struct {
	McQuestions        []McQuestion `json:"mc_questions" yaml:"mc_questions"`
	OpenEndedQuestion  string       `json:"open_ended_question,omitempty" yaml:"open_ended_question"`
	EvaluationCriteria string       `json:"evaluation_criteria,omitempty" yaml:"evaluation_criteria"`
	GroupTopic         string       `json:"group_topic,omitempty" yaml:"group_topic"`
	PassingThreshold   int          `json:"passing_threshold" yaml:"passing_threshold"`
	RequireBothToPass  bool         `json:"require_both_to_pass" yaml:"require_both_to_pass"`
	TimeoutSeconds     int          `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// HasOpenEnded сообщает, настроен ли открытый вопрос
func (c *ExamConfig) HasOpenEnded() bool {
	return strings.TrimSpace(c.OpenEndedQuestion) != ""
}

// Timeout возвращает время на прохождение экзамена
func (c *ExamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate проверяет конфигурацию экзамена
func (c *ExamConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is missing", ErrInvalidExamConfig)
	}
	if len(c.McQuestions) == 0 && !c.HasOpenEnded() {
		return fmt.Errorf("%w: no questions configured", ErrInvalidExamConfig)
	}
	for i, q := range c.McQuestions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidExamConfig, i)
		}
		if len(q.Answers) < 2 || len(q.Answers) > MaxAnswersPerQuestion {
			return fmt.Errorf("%w: question %d must have 2..%d answers, got %d",
				ErrInvalidExamConfig, i, MaxAnswersPerQuestion, len(q.Answers))
		}
	}
	if c.HasOpenEnded() && strings.TrimSpace(c.EvaluationCriteria) == "" {
		return fmt.Errorf("%w: open-ended question requires evaluation criteria", ErrInvalidExamConfig)
	}
	if c.PassingThreshold < 0 || c.PassingThreshold > 100 {
		return fmt.Errorf("%w: passing threshold %d out of range 0..100", ErrInvalidExamConfig, c.PassingThreshold)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %d", ErrInvalidExamConfig, c.TimeoutSeconds)
	}
	return nil
}

// ExamSession активная попытка прохождения экзамена пользователем
type ExamSession struct {
	ID                   int64        `json:"id"`
	ChatID               int64        `json:"chat_id"`
	UserID               int64        `json:"user_id"`
	CreatedAt            time.Time    `json:"created_at"`
	ExpiresAt            time.Time    `json:"expires_at"`
	CurrentQuestionIndex int          `json:"current_question_index"`
	McAnswers            McAnswers    `json:"mc_answers"`
	ShuffleState         Permutations `json:"shuffle_state"`
	OpenEndedAnswer      *string      `json:"open_ended_answer,omitempty"`
}

// Expired сообщает, истекло ли время сессии
func (s *ExamSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Verdict результат проверки открытого ответа внешним экзаменатором
type Verdict int

const (
	VerdictUnavailable Verdict = iota
	VerdictPass
	VerdictFail
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictFail:
		return "fail"
	default:
		return "unavailable"
	}
}

// Evaluation вердикт с пояснением экзаменатора
type Evaluation struct {
	Verdict   Verdict `json:"verdict"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// EvaluationRequest данные для проверки открытого ответа
type EvaluationRequest struct {
	Question string
	Answer   string
	Criteria string
	Topic    string
}
