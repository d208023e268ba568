package review_action_handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/IT-Nick/gatekeeper/internal/domain/dto"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	moderationService "github.com/IT-Nick/gatekeeper/internal/domain/moderation/service"
	httpError "github.com/IT-Nick/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
)

// DefaultReason причина решения, если модератор ее не указал
const DefaultReason = "manual review via API"

// Reviewer решения по проваленным экзаменам
type Reviewer interface {
	ApproveExamFailure(ctx context.Context, failureID int64, actor model.Actor, reason string) model.ModerationResult
	DenyExamFailure(ctx context.Context, failureID int64, actor model.Actor, reason string) model.ModerationResult
	DenyAndBanExamFailure(ctx context.Context, failureID int64, actor model.Actor, reason string) model.ModerationResult
}

// ReviewActionHandler POST /exam-failures/{id}/{action}
type ReviewActionHandler struct {
	reviewer Reviewer
}

// NewReviewActionHandler создает новый экземпляр обработчика
func NewReviewActionHandler(reviewer Reviewer) *ReviewActionHandler {
	return &ReviewActionHandler{reviewer: reviewer}
}

// ServeHTTP метод для обработки запроса
func (h *ReviewActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	failureID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || failureID <= 0 {
		httpError.ErrorResponse(w, http.StatusBadRequest, "Invalid exam failure id")
		return
	}

	var request dto.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		httpError.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.ActorID == 0 {
		httpError.ErrorResponse(w, http.StatusBadRequest, "Missing actor_id in request body")
		return
	}
	reason := strings.TrimSpace(request.Reason)
	if reason == "" {
		reason = DefaultReason
	}
	actor := model.Actor{ID: request.ActorID, Name: request.ActorName}

	var res model.ModerationResult
	ctx := r.Context()
	switch chi.URLParam(r, "action") {
	case model.ReviewActionApprove:
		res = h.reviewer.ApproveExamFailure(ctx, failureID, actor, reason)
	case model.ReviewActionDeny:
		res = h.reviewer.DenyExamFailure(ctx, failureID, actor, reason)
	case model.ReviewActionBan:
		res = h.reviewer.DenyAndBanExamFailure(ctx, failureID, actor, reason)
	default:
		httpError.ErrorResponse(w, http.StatusNotFound, "Unknown review action")
		return
	}

	httpError.JSONResponse(w, statusOf(res), res)
}

// statusOf HTTP статус по тексту ошибки модерации
func statusOf(res model.ModerationResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case strings.Contains(res.ErrorMessage, moderationService.ErrFailureNotFound.Error()):
		return http.StatusNotFound
	case strings.Contains(res.ErrorMessage, moderationService.ErrAlreadyReviewed.Error()):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
