package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	"github.com/IT-Nick/gatekeeper/internal/infra/metrics"
)

// Ключи уведомлений пользователю
const (
	NoticeApproved = "moderation.approved"
	NoticeDenied   = "moderation.denied"
	NoticeBanned   = "moderation.banned"
)

// Dependencies зависимости сервиса модерации
type Dependencies struct {
	Chats     ModerationOrchestrator
	Prompts   PromptRepository
	Users     UserRepository
	Links     LinkResolver
	Messenger Notifier
	Reviews   ReviewRepository
	Events    EventPublisher
	Now       func() time.Time
}

// ModerationService общие процедуры одобрения и отклонения.
// Автоматический итог экзамена и ручная проверка проходят через одни и те же Approve и Deny.
type ModerationService struct {
	deps Dependencies
	now  func() time.Time
}

// NewModerationService создает новый экземпляр ModerationService
func NewModerationService(deps Dependencies) *ModerationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ModerationService{deps: deps, now: now}
}

// Approve возвращает участнику права в чате.
// Ошибка снятия ограничений прерывает процедуру, остальные шаги выполняются по возможности.
func (s *ModerationService) Approve(ctx context.Context, chatID, userID int64, actor model.Actor, reason string) model.ModerationResult {
	log := slog.With("chat_id", chatID, "user_id", userID, "actor", actor.String())

	if err := s.deps.Chats.RestorePermissions(ctx, chatID, userID); err != nil {
		log.Error("failed to restore permissions", "error", err)
		metrics.ModerationAction(model.ReviewActionApprove, metrics.StatusError)
		return failed(fmt.Errorf("failed to restore permissions: %w", err))
	}

	prompt, err := s.deps.Prompts.GetLatest(ctx, chatID, userID)
	if err != nil {
		log.Warn("failed to get join prompt", "error", err)
	}
	if prompt != nil {
		s.deleteMessage(ctx, chatID, prompt.MessageID)
		if prompt.Status != model.PromptStatusAccepted {
			if _, err := s.deps.Prompts.Transition(ctx, prompt.ID, prompt.Status, model.PromptStatusAccepted, actor, s.now()); err != nil {
				log.Warn("failed to mark join prompt accepted", "prompt_id", prompt.ID, "error", err)
			}
		}
	}

	if err := s.deps.Users.MarkActive(ctx, chatID, userID); err != nil {
		log.Error("failed to mark user active", "error", err)
	}

	link, err := s.deps.Links.ReturnLink(ctx, chatID)
	if err != nil {
		log.Warn("failed to resolve chat link", "error", err)
	}

	s.notify(ctx, log, model.Notice{
		ChatID: userID,
		Key:    NoticeApproved,
		Data:   map[string]any{"Link": link, "Reason": reason},
	})

	log.Info("user approved", "reason", reason)
	metrics.ModerationAction(model.ReviewActionApprove, metrics.StatusOK)
	return model.ModerationResult{Success: true}
}

// Deny удаляет участника из чата: kick при ban=false, блокировка при ban=true.
// Повторный вызов для уже принятого решения ничего не делает.
func (s *ModerationService) Deny(ctx context.Context, chatID, userID int64, ban bool, actor model.Actor, reason string) model.ModerationResult {
	action := model.ReviewActionDeny
	if ban {
		action = model.ReviewActionBan
	}
	log := slog.With("chat_id", chatID, "user_id", userID, "actor", actor.String(), "action", action)

	prompt, err := s.deps.Prompts.GetLatest(ctx, chatID, userID)
	if err != nil {
		log.Warn("failed to get join prompt", "error", err)
	}

	var denied *model.JoinPrompt
	if prompt != nil {
		if !prompt.Pending() {
			log.Info("join prompt already decided, skipping", "prompt_id", prompt.ID, "status", prompt.Status)
			return model.ModerationResult{Success: true}
		}
		ok, err := s.deps.Prompts.Transition(ctx, prompt.ID, model.PromptStatusPending, model.PromptStatusDenied, actor, s.now())
		switch {
		case err != nil:
			log.Warn("failed to mark join prompt denied", "prompt_id", prompt.ID, "error", err)
		case !ok:
			log.Info("join prompt decided concurrently, skipping", "prompt_id", prompt.ID)
			return model.ModerationResult{Success: true}
		default:
			denied = prompt
			s.deleteMessage(ctx, chatID, prompt.MessageID)
		}
	}

	if ban {
		err = s.deps.Chats.BanUser(ctx, chatID, userID)
	} else {
		err = s.deps.Chats.KickFromChat(ctx, chatID, userID)
	}
	if err != nil {
		log.Error("failed to remove user", "error", err)
		if denied != nil {
			if _, rErr := s.deps.Prompts.Transition(ctx, denied.ID, model.PromptStatusDenied, model.PromptStatusPending, actor, s.now()); rErr != nil {
				log.Error("failed to restore join prompt", "prompt_id", denied.ID, "error", rErr)
			}
		}
		metrics.ModerationAction(action, metrics.StatusError)
		return failed(fmt.Errorf("failed to remove user from chat: %w", err))
	}

	if ban {
		if err := s.deps.Users.MarkBanned(ctx, chatID, userID); err != nil {
			log.Error("failed to mark user banned", "error", err)
		}
	}

	key := NoticeDenied
	if ban {
		key = NoticeBanned
	}
	s.notify(ctx, log, model.Notice{
		ChatID: userID,
		Key:    key,
		Data:   map[string]any{"Reason": reason},
	})

	log.Info("user denied", "reason", reason)
	metrics.ModerationAction(action, metrics.StatusOK)
	return model.ModerationResult{Success: true}
}

// ApproveExamFailure одобряет участника по итогам ручной проверки
func (s *ModerationService) ApproveExamFailure(ctx context.Context, failureID int64, actor model.Actor, reason string) model.ModerationResult {
	return s.Review(ctx, failureID, model.ReviewActionApprove, actor, reason)
}

// DenyExamFailure удаляет участника по итогам ручной проверки
func (s *ModerationService) DenyExamFailure(ctx context.Context, failureID int64, actor model.Actor, reason string) model.ModerationResult {
	return s.Review(ctx, failureID, model.ReviewActionDeny, actor, reason)
}

// DenyAndBanExamFailure блокирует участника по итогам ручной проверки
func (s *ModerationService) DenyAndBanExamFailure(ctx context.Context, failureID int64, actor model.Actor, reason string) model.ModerationResult {
	return s.Review(ctx, failureID, model.ReviewActionBan, actor, reason)
}

// Review выполняет решение по проваленному экзамену и записывает его в аудит
func (s *ModerationService) Review(ctx context.Context, failureID int64, action string, actor model.Actor, reason string) model.ModerationResult {
	if !ValidAction(action) {
		return failed(fmt.Errorf("%w: %q", ErrUnknownAction, action))
	}

	record, err := s.deps.Reviews.GetExamFailure(ctx, failureID)
	if err != nil {
		return failed(fmt.Errorf("failed to get exam failure: %w", err))
	}
	if record == nil {
		return failed(fmt.Errorf("%w: %d", ErrFailureNotFound, failureID))
	}

	existing, err := s.deps.Reviews.GetReview(ctx, failureID)
	if err != nil {
		return failed(fmt.Errorf("failed to get review: %w", err))
	}
	if existing != nil {
		// Повторное нажатие той же кнопки ничего не делает.
		if existing.Action == action {
			slog.Debug("exam failure already reviewed with same action",
				"failure_id", failureID, "action", action, "actor_id", actor.ID)
			return model.ModerationResult{Success: true}
		}
		return failed(fmt.Errorf("%w: %s by %s", ErrAlreadyReviewed, existing.Action, existing.Actor.String()))
	}

	var res model.ModerationResult
	switch action {
	case model.ReviewActionApprove:
		res = s.Approve(ctx, record.ChatID, record.UserID, actor, reason)
	case model.ReviewActionDeny:
		res = s.Deny(ctx, record.ChatID, record.UserID, false, actor, reason)
	case model.ReviewActionBan:
		res = s.Deny(ctx, record.ChatID, record.UserID, true, actor, reason)
	}
	if !res.Success {
		return res
	}

	review := model.ExamReview{
		FailureID:  failureID,
		Action:     action,
		Actor:      actor,
		Reason:     reason,
		ReviewedAt: s.now(),
	}
	if err := s.deps.Reviews.InsertReview(ctx, review); err != nil {
		slog.Error("failed to insert exam review", "failure_id", failureID, "action", action, "error", err)
	}

	if err := s.deps.Events.Publish(ctx, reviewEventType(action), map[string]any{
		"failure_id": failureID,
		"chat_id":    record.ChatID,
		"user_id":    record.UserID,
		"actor_id":   actor.ID,
		"reason":     reason,
	}); err != nil {
		slog.Warn("failed to publish review event", "failure_id", failureID, "error", err)
	}

	return res
}

func reviewEventType(action string) string {
	switch action {
	case model.ReviewActionApprove:
		return "review.approved"
	case model.ReviewActionBan:
		return "review.banned"
	default:
		return "review.denied"
	}
}

func (s *ModerationService) deleteMessage(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := s.deps.Messenger.DeleteMessage(ctx, chatID, messageID); err != nil {
		slog.Warn("failed to delete join prompt message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (s *ModerationService) notify(ctx context.Context, log *slog.Logger, n model.Notice) {
	if _, err := s.deps.Messenger.SendNotice(ctx, n); err != nil {
		log.Warn("failed to notify user", "key", n.Key, "error", err)
	}
}

func failed(err error) model.ModerationResult {
	return model.ModerationResult{Success: false, ErrorMessage: err.Error()}
}
