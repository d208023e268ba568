package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/exams/shuffle"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	moderation "github.com/IT-Nick/gatekeeper/internal/domain/moderation/service"
	"github.com/IT-Nick/gatekeeper/internal/infra/metrics"
)

// Ключи уведомлений, отправляемых сервисом экзаменов
const (
	NoticePendingReview = "exam.pending_review"
	NoticeReviewRequest = "review.request"
)

// Причины автоматических решений
const (
	ReasonPassed            = "passed entrance exam"
	ReasonTimeout           = "exam timed out"
	ReasonReviewUnavailable = "exam failed, review unavailable"
)

// Dependencies зависимости сервиса экзаменов
type Dependencies struct {
	Sessions  SessionStore
	Evaluator EvaluationGateway
	Messenger MessagingGateway
	Reports   ReportsRepository
	Configs   ConfigProvider
	Deadlines DeadlineQueue
	Moderator Moderator
	Events    EventPublisher

	// ReviewChatID чат модераторов для заявок на ручную проверку. 0 - не отправлять.
	ReviewChatID int64
	// EvaluationTimeout ограничивает ожидание внешнего экзаменатора
	EvaluationTimeout time.Duration
	Now               func() time.Time
}

// ExamService машина состояний вступительного экзамена.
// Не хранит изменяемого состояния между вызовами.
type ExamService struct {
	deps Dependencies
	now  func() time.Time
}

// NewExamService создает новый экземпляр ExamService
func NewExamService(deps Dependencies) *ExamService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ExamService{deps: deps, now: now}
}

// StartExam создает сессию и показывает первый вопрос
func (s *ExamService) StartExam(ctx context.Context, chatID, userID int64, cfg *model.ExamConfig) (model.ExamStartResult, error) {
	if err := cfg.Validate(); err != nil {
		return model.ExamStartResult{}, err
	}

	now := s.now()
	if err := s.closeStale(ctx, chatID, userID, now); err != nil {
		return model.ExamStartResult{}, err
	}
	session, err := s.deps.Sessions.CreateSession(ctx, chatID, userID, now, now.Add(cfg.Timeout()))
	if err != nil {
		return model.ExamStartResult{}, fmt.Errorf("failed to create exam session: %w", err)
	}

	var messageID int
	if len(cfg.McQuestions) > 0 {
		messageID, err = s.renderMcQuestion(ctx, session, cfg, 0)
	} else {
		messageID, err = s.renderOpenEnded(ctx, session, cfg)
	}
	if err != nil {
		if _, delErr := s.deps.Sessions.DeleteSession(ctx, session.ID); delErr != nil {
			slog.Error("failed to drop unrendered exam session", "session_id", session.ID, "error", delErr)
		}
		return model.ExamStartResult{}, fmt.Errorf("failed to render first question: %w", err)
	}

	if err := s.deps.Deadlines.Schedule(ctx, session.ID, session.ExpiresAt); err != nil {
		slog.Warn("failed to schedule exam deadline", "session_id", session.ID, "error", err)
	}

	slog.Info("exam started",
		"session_id", session.ID, "chat_id", chatID, "user_id", userID,
		"stage", StageOf(session, cfg, now), "expires_at", session.ExpiresAt)
	metrics.ExamStarted()

	return model.ExamStartResult{Success: true, PromptMessageID: messageID}, nil
}

// closeStale закрывает просроченную сессию перед новой попыткой.
// Пользователь уже вернулся в чат, поэтому без исключения.
func (s *ExamService) closeStale(ctx context.Context, chatID, userID int64, now time.Time) error {
	stale, err := s.deps.Sessions.GetByChatAndUser(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to get exam session: %w", err)
	}
	if stale == nil || !stale.Expired(now) {
		return nil
	}

	deleted, err := s.deps.Sessions.DeleteSession(ctx, stale.ID)
	if err != nil {
		return fmt.Errorf("failed to delete expired session: %w", err)
	}
	if !deleted {
		return nil
	}
	slog.Info("expired exam replaced by new attempt", "session_id", stale.ID, "chat_id", chatID, "user_id", userID)
	s.cancelDeadline(ctx, stale.ID)
	metrics.ExamCompleted(metrics.OutcomeExpired)
	s.publish(ctx, "exam.expired", stale, map[string]any{"restarted": true})
	return nil
}

// HandleMcAnswer обрабатывает нажатие кнопки ответа.
// Чужая, устаревшая или повторная кнопка ничего не меняет.
func (s *ExamService) HandleMcAnswer(ctx context.Context, ans McAnswer) (model.ExamAnswerResult, error) {
	session, err := s.deps.Sessions.GetByID(ctx, ans.SessionID)
	if err != nil {
		return model.ExamAnswerResult{}, fmt.Errorf("failed to get exam session: %w", err)
	}
	if session == nil {
		slog.Debug("ignoring answer for missing session", "session_id", ans.SessionID, "user_id", ans.UserID)
		return model.ExamAnswerResult{}, nil
	}

	unchanged := model.ExamAnswerResult{GroupChatID: session.ChatID}
	if session.UserID != ans.UserID {
		slog.Debug("ignoring answer from another user",
			"session_id", session.ID, "owner_id", session.UserID, "user_id", ans.UserID)
		return unchanged, nil
	}
	if session.CurrentQuestionIndex != ans.QuestionIndex {
		slog.Debug("ignoring out-of-order answer",
			"session_id", session.ID, "current", session.CurrentQuestionIndex, "got", ans.QuestionIndex)
		return unchanged, nil
	}

	if session.Expired(s.now()) {
		return s.expireOnAttempt(ctx, session, ans.MessageID)
	}

	cfg, err := s.deps.Configs.GetExamConfig(ctx, session.ChatID)
	if err != nil {
		return unchanged, fmt.Errorf("failed to get exam config: %w", err)
	}
	if ans.QuestionIndex >= len(cfg.McQuestions) {
		return unchanged, nil
	}
	question := cfg.McQuestions[ans.QuestionIndex]
	if ans.AnswerIndex >= len(question.Answers) {
		slog.Debug("ignoring answer index out of range", "session_id", session.ID, "answer", ans.AnswerIndex)
		return unchanged, nil
	}

	perm := shuffle.Generate(session.ID, ans.QuestionIndex, len(question.Answers))
	original, _ := perm.Original(ans.AnswerIndex)
	letter := shuffle.Letter(ans.AnswerIndex)

	recorded, err := s.deps.Sessions.RecordMcAnswer(ctx, session.ID, ans.QuestionIndex, letter, perm)
	if err != nil {
		return unchanged, fmt.Errorf("failed to record answer: %w", err)
	}
	if !recorded {
		slog.Debug("answer already recorded", "session_id", session.ID, "question", ans.QuestionIndex)
		return unchanged, nil
	}
	slog.Debug("answer recorded",
		"session_id", session.ID, "question", ans.QuestionIndex, "letter", letter, "original", original)

	s.deleteMessage(ctx, session.ChatID, ans.MessageID)

	// Индекс уже сдвинут, поэтому следующий вопрос отправляется с одной
	// повторной попыткой. Если не вышло, сессию закроет планировщик таймаутов.
	next := ans.QuestionIndex + 1
	if next < len(cfg.McQuestions) {
		err := s.renderNext(session, func() error {
			_, err := s.renderMcQuestion(ctx, session, cfg, next)
			return err
		})
		if err != nil {
			return unchanged, fmt.Errorf("failed to render question %d: %w", next, err)
		}
		return unchanged, nil
	}
	if cfg.HasOpenEnded() {
		err := s.renderNext(session, func() error {
			_, err := s.renderOpenEnded(ctx, session, cfg)
			return err
		})
		if err != nil {
			return unchanged, fmt.Errorf("failed to render open-ended question: %w", err)
		}
		return unchanged, nil
	}

	return s.evaluate(ctx, session.ID, cfg)
}

// HandleOpenEndedAnswer принимает текстовый ответ на открытый вопрос
func (s *ExamService) HandleOpenEndedAnswer(ctx context.Context, chatID, userID int64, text string) (model.ExamAnswerResult, error) {
	session, err := s.deps.Sessions.GetByChatAndUser(ctx, chatID, userID)
	if err != nil {
		return model.ExamAnswerResult{}, fmt.Errorf("failed to get exam session: %w", err)
	}
	if session == nil {
		return model.ExamAnswerResult{}, nil
	}
	unchanged := model.ExamAnswerResult{GroupChatID: session.ChatID}

	cfg, err := s.deps.Configs.GetExamConfig(ctx, session.ChatID)
	if err != nil {
		return unchanged, fmt.Errorf("failed to get exam config: %w", err)
	}

	now := s.now()
	if StageOf(session, cfg, now) == StageExpired {
		return s.expireOnAttempt(ctx, session, 0)
	}
	if StageOf(session, cfg, now) != StageAwaitingOpenEnded {
		return unchanged, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return unchanged, nil
	}

	recorded, err := s.deps.Sessions.RecordOpenEndedAnswer(ctx, session.ID, text)
	if err != nil {
		return unchanged, fmt.Errorf("failed to record open-ended answer: %w", err)
	}
	if !recorded {
		return unchanged, nil
	}

	return s.evaluate(ctx, session.ID, cfg)
}

// ActiveSessions возвращает незавершенные сессии пользователя во всех чатах
func (s *ExamService) ActiveSessions(ctx context.Context, userID int64) ([]model.ExamSession, error) {
	sessions, err := s.deps.Sessions.GetActiveForUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get active sessions: %w", err)
	}
	return sessions, nil
}

// HasActiveSession проверяет, идет ли уже экзамен у пользователя в чате
func (s *ExamService) HasActiveSession(ctx context.Context, chatID, userID int64) (bool, error) {
	active, err := s.deps.Sessions.HasActiveSession(ctx, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check active session: %w", err)
	}
	return active, nil
}

// ExpireSession вызывается планировщиком по истечении времени сессии.
// Если сессия уже удалена другим путем, ничего не делает.
func (s *ExamService) ExpireSession(ctx context.Context, sessionID int64) error {
	session, err := s.deps.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get exam session: %w", err)
	}
	if session == nil {
		return nil
	}

	if !session.Expired(s.now()) {
		if err := s.deps.Deadlines.Schedule(ctx, session.ID, session.ExpiresAt); err != nil {
			return fmt.Errorf("failed to reschedule deadline: %w", err)
		}
		return nil
	}

	deleted, err := s.deps.Sessions.DeleteSession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to delete expired session: %w", err)
	}
	if !deleted {
		return nil
	}

	s.timedOut(ctx, session)
	return nil
}

func (s *ExamService) expireOnAttempt(ctx context.Context, session *model.ExamSession, messageID int) (model.ExamAnswerResult, error) {
	result := model.ExamAnswerResult{
		Complete:    true,
		Passed:      model.BoolPtr(false),
		GroupChatID: session.ChatID,
	}

	deleted, err := s.deps.Sessions.DeleteSession(ctx, session.ID)
	if err != nil {
		return result, fmt.Errorf("failed to delete expired session: %w", err)
	}
	s.deleteMessage(ctx, session.ChatID, messageID)
	if deleted {
		s.timedOut(ctx, session)
	}
	return result, nil
}

func (s *ExamService) timedOut(ctx context.Context, session *model.ExamSession) {
	slog.Info("exam expired", "session_id", session.ID, "chat_id", session.ChatID, "user_id", session.UserID)
	metrics.ExamCompleted(metrics.OutcomeExpired)

	res := s.deps.Moderator.Deny(ctx, session.ChatID, session.UserID, false, model.SystemActor, ReasonTimeout)
	if !res.Success {
		slog.Error("failed to remove user after exam timeout",
			"chat_id", session.ChatID, "user_id", session.UserID, "error", res.ErrorMessage)
	}
	s.publish(ctx, "exam.expired", session, nil)
}

func (s *ExamService) evaluate(ctx context.Context, sessionID int64, cfg *model.ExamConfig) (model.ExamAnswerResult, error) {
	session, err := s.deps.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return model.ExamAnswerResult{}, fmt.Errorf("failed to reload exam session: %w", err)
	}
	if session == nil {
		// Сессию уже закрыл планировщик таймаутов.
		return model.ExamAnswerResult{Complete: true, Passed: model.BoolPtr(false)}, nil
	}

	correct, total := CountCorrect(session.McAnswers, session.ShuffleState)
	score := Score(correct, total)

	evaluation := model.Evaluation{Verdict: model.VerdictUnavailable}
	if cfg.HasOpenEnded() {
		answer := ""
		if session.OpenEndedAnswer != nil {
			answer = *session.OpenEndedAnswer
		}
		evaluation = s.evaluateOpenEnded(ctx, cfg, answer)
	}

	decision := Combine(CombineInput{
		HasMc:             len(cfg.McQuestions) > 0,
		Score:             score,
		Threshold:         cfg.PassingThreshold,
		HasOpenEnded:      cfg.HasOpenEnded(),
		Verdict:           evaluation.Verdict,
		RequireBothToPass: cfg.RequireBothToPass,
	})

	slog.Info("exam evaluated",
		"session_id", session.ID, "chat_id", session.ChatID, "user_id", session.UserID,
		"correct", correct, "total", total, "score", score, "threshold", cfg.PassingThreshold,
		"verdict", evaluation.Verdict.String(), "passed", decision.Passed)

	if decision.Passed {
		return s.pass(ctx, session, cfg, score)
	}
	return s.fail(ctx, session, cfg, score, evaluation, decision)
}

func (s *ExamService) evaluateOpenEnded(ctx context.Context, cfg *model.ExamConfig, answer string) model.Evaluation {
	evalCtx := ctx
	if s.deps.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, s.deps.EvaluationTimeout)
		defer cancel()
	}

	started := time.Now()
	evaluation := s.deps.Evaluator.EvaluateAnswer(evalCtx, model.EvaluationRequest{
		Question: cfg.OpenEndedQuestion,
		Answer:   answer,
		Criteria: cfg.EvaluationCriteria,
		Topic:    cfg.GroupTopic,
	})
	if evalCtx.Err() != nil {
		evaluation.Verdict = model.VerdictUnavailable
	}
	metrics.ObserveEvaluation(time.Since(started))
	metrics.EvaluatorVerdict(evaluation.Verdict.String())
	return evaluation
}

func (s *ExamService) pass(ctx context.Context, session *model.ExamSession, cfg *model.ExamConfig, score int) (model.ExamAnswerResult, error) {
	deleted, err := s.deps.Sessions.DeleteSession(ctx, session.ID)
	if err != nil {
		return model.ExamAnswerResult{GroupChatID: session.ChatID}, fmt.Errorf("failed to delete passed session: %w", err)
	}
	if !deleted {
		return model.ExamAnswerResult{Complete: true, Passed: model.BoolPtr(false), GroupChatID: session.ChatID}, nil
	}
	s.cancelDeadline(ctx, session.ID)

	res := s.deps.Moderator.Approve(ctx, session.ChatID, session.UserID, model.SystemActor, ReasonPassed)
	if res.Success {
		metrics.ExamCompleted(metrics.OutcomePassed)
		s.publish(ctx, "exam.passed", session, nil)
		return model.ExamAnswerResult{Complete: true, Passed: model.BoolPtr(true), GroupChatID: session.ChatID}, nil
	}

	// Права не вернулись: пользователь остается ограничен, поэтому
	// экзамен уходит на ручную проверку, где админ повторит Approve.
	slog.Error("failed to approve user after passed exam",
		"chat_id", session.ChatID, "user_id", session.UserID, "error", res.ErrorMessage)
	metrics.ExamCompleted(metrics.OutcomeFailed)

	result := model.ExamAnswerResult{
		Complete:     true,
		Passed:       model.BoolPtr(false),
		SentToReview: true,
		GroupChatID:  session.ChatID,
	}
	approveErr := fmt.Errorf("failed to approve user after passed exam: %s", res.ErrorMessage)

	failureID, err := s.requestReview(ctx, session, cfg, score, "approval failed: "+res.ErrorMessage)
	if err != nil {
		result.SentToReview = false
		return result, fmt.Errorf("%w; %w", approveErr, err)
	}
	s.publish(ctx, "exam.failed", session, map[string]any{
		"failure_id":      failureID,
		"score":           score,
		"approval_failed": true,
	})
	return result, approveErr
}

func (s *ExamService) fail(
	ctx context.Context,
	session *model.ExamSession,
	cfg *model.ExamConfig,
	score int,
	evaluation model.Evaluation,
	decision Decision,
) (model.ExamAnswerResult, error) {
	result := model.ExamAnswerResult{
		Complete:     true,
		Passed:       model.BoolPtr(false),
		SentToReview: true,
		GroupChatID:  session.ChatID,
	}

	deleted, err := s.deps.Sessions.DeleteSession(ctx, session.ID)
	if err != nil {
		return model.ExamAnswerResult{GroupChatID: session.ChatID}, fmt.Errorf("failed to delete failed session: %w", err)
	}
	if !deleted {
		result.SentToReview = false
		return result, nil
	}
	s.cancelDeadline(ctx, session.ID)
	if decision.Unavailable {
		metrics.ExamCompleted(metrics.OutcomeUnavailable)
	} else {
		metrics.ExamCompleted(metrics.OutcomeFailed)
	}

	reasoning := evaluation.Reasoning
	if decision.Unavailable {
		reasoning = "evaluator unavailable"
	}

	failureID, err := s.requestReview(ctx, session, cfg, score, reasoning)
	if err != nil {
		// Без записи админ не сможет принять решение: удаляем из чата,
		// чтобы пользователь не остался ограниченным навсегда.
		result.SentToReview = false
		res := s.deps.Moderator.Deny(ctx, session.ChatID, session.UserID, false, model.SystemActor, ReasonReviewUnavailable)
		if !res.Success {
			slog.Error("failed to remove user without review record",
				"chat_id", session.ChatID, "user_id", session.UserID, "error", res.ErrorMessage)
		}
		s.publish(ctx, "exam.failed", session, map[string]any{
			"score":       score,
			"unavailable": decision.Unavailable,
			"review":      false,
		})
		return result, err
	}

	s.publish(ctx, "exam.failed", session, map[string]any{
		"failure_id":  failureID,
		"score":       score,
		"unavailable": decision.Unavailable,
		"review":      true,
	})
	return result, nil
}

// requestReview сохраняет запись о проваленном экзамене и оповещает
// модераторов и участника. Ошибкой считается только сбой записи.
func (s *ExamService) requestReview(
	ctx context.Context,
	session *model.ExamSession,
	cfg *model.ExamConfig,
	score int,
	reasoning string,
) (int64, error) {
	record := model.ExamFailureRecord{
		ChatID:           session.ChatID,
		UserID:           session.UserID,
		McAnswers:        session.McAnswers,
		ShuffleState:     session.ShuffleState,
		OpenEndedAnswer:  session.OpenEndedAnswer,
		Score:            score,
		PassingThreshold: cfg.PassingThreshold,
		AiEvaluation:     reasoning,
		FailedAt:         s.now(),
	}
	failureID, err := s.deps.Reports.InsertExamFailure(ctx, record)
	if err != nil {
		return 0, fmt.Errorf("failed to insert exam failure: %w", err)
	}

	if s.deps.ReviewChatID != 0 {
		_, err := s.deps.Messenger.SendNotice(ctx, model.Notice{
			ChatID: s.deps.ReviewChatID,
			Key:    NoticeReviewRequest,
			Data: map[string]any{
				"FailureID": failureID,
				"ChatID":    session.ChatID,
				"UserID":    session.UserID,
				"Score":     score,
				"Threshold": cfg.PassingThreshold,
				"Reasoning": reasoning,
			},
			Buttons: []model.NoticeButton{
				{Text: "review.button.approve", Data: moderation.FormatReviewCallback(model.ReviewActionApprove, failureID)},
				{Text: "review.button.deny", Data: moderation.FormatReviewCallback(model.ReviewActionDeny, failureID)},
				{Text: "review.button.ban", Data: moderation.FormatReviewCallback(model.ReviewActionBan, failureID)},
			},
		})
		if err != nil {
			slog.Warn("failed to notify moderators", "failure_id", failureID, "error", err)
		}
	}

	if _, err := s.deps.Messenger.SendNotice(ctx, model.Notice{
		ChatID: session.ChatID,
		Key:    NoticePendingReview,
		Data:   map[string]any{"UserID": session.UserID},
	}); err != nil {
		slog.Warn("failed to send pending review notice", "chat_id", session.ChatID, "user_id", session.UserID, "error", err)
	}
	return failureID, nil
}

func (s *ExamService) renderMcQuestion(ctx context.Context, session *model.ExamSession, cfg *model.ExamConfig, index int) (int, error) {
	question := cfg.McQuestions[index]
	perm := shuffle.Generate(session.ID, index, len(question.Answers))

	total := len(cfg.McQuestions)
	if cfg.HasOpenEnded() {
		total++
	}

	return s.deps.Messenger.SendQuestion(ctx, QuestionPrompt{
		ChatID:    session.ChatID,
		UserID:    session.UserID,
		SessionID: session.ID,
		Index:     index,
		Total:     total,
		Text:      question.Question,
		Choices:   shuffle.Apply(perm, question.Answers),
		ExpiresAt: session.ExpiresAt,
	})
}

func (s *ExamService) renderOpenEnded(ctx context.Context, session *model.ExamSession, cfg *model.ExamConfig) (int, error) {
	index := len(cfg.McQuestions)
	return s.deps.Messenger.SendQuestion(ctx, QuestionPrompt{
		ChatID:    session.ChatID,
		UserID:    session.UserID,
		SessionID: session.ID,
		Index:     index,
		Total:     index + 1,
		Text:      cfg.OpenEndedQuestion,
		ExpiresAt: session.ExpiresAt,
	})
}

func (s *ExamService) renderNext(session *model.ExamSession, render func() error) error {
	err := render()
	if err == nil {
		return nil
	}
	slog.Warn("failed to render next question, retrying",
		"session_id", session.ID, "index", session.CurrentQuestionIndex+1, "error", err)
	return render()
}

func (s *ExamService) deleteMessage(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := s.deps.Messenger.DeleteMessage(ctx, chatID, messageID); err != nil {
		slog.Warn("failed to delete question message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (s *ExamService) cancelDeadline(ctx context.Context, sessionID int64) {
	if err := s.deps.Deadlines.Cancel(ctx, sessionID); err != nil {
		slog.Warn("failed to cancel exam deadline", "session_id", sessionID, "error", err)
	}
}

func (s *ExamService) publish(ctx context.Context, eventType string, session *model.ExamSession, extra map[string]any) {
	payload := map[string]any{
		"session_id": session.ID,
		"chat_id":    session.ChatID,
		"user_id":    session.UserID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.deps.Events.Publish(ctx, eventType, payload); err != nil {
		slog.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
