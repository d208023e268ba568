package exam_failures_handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/IT-Nick/gatekeeper/internal/domain/dto"
	examsService "github.com/IT-Nick/gatekeeper/internal/domain/exams/service"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	httpError "github.com/IT-Nick/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Reports чтение проваленных экзаменов
type Reports interface {
	ListPending(ctx context.Context, chatID int64, limit int) ([]model.ExamFailureRecord, error)
	GetExamFailure(ctx context.Context, failureID int64) (*model.ExamFailureRecord, error)
	GetReview(ctx context.Context, failureID int64) (*model.ExamReview, error)
}

// ExamConfigs конфигурация экзамена для восстановления вопросов
type ExamConfigs interface {
	GetExamConfig(ctx context.Context, chatID int64) (*model.ExamConfig, error)
}

// ExamFailuresHandler список и карточка проваленных экзаменов
type ExamFailuresHandler struct {
	reports Reports
	configs ExamConfigs
}

// NewExamFailuresHandler создает новый экземпляр обработчика
func NewExamFailuresHandler(reports Reports, configs ExamConfigs) *ExamFailuresHandler {
	return &ExamFailuresHandler{reports: reports, configs: configs}
}

// List GET /exam-failures?chat_id=&limit=
func (h *ExamFailuresHandler) List(w http.ResponseWriter, r *http.Request) {
	chatID, err := queryInt(r, "chat_id", 0)
	if err != nil {
		httpError.ErrorResponse(w, http.StatusBadRequest, "Invalid chat_id")
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		httpError.ErrorResponse(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	records, err := h.reports.ListPending(r.Context(), chatID, int(limit))
	if err != nil {
		httpError.ErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list exam failures: %v", err))
		return
	}

	response := dto.ExamFailuresResponse{
		Total:    len(records),
		Failures: make([]dto.ExamFailureResponse, 0, len(records)),
	}
	for _, record := range records {
		response.Failures = append(response.Failures, dto.NewExamFailureResponse(record))
	}
	httpError.JSONResponse(w, http.StatusOK, response)
}

// Get GET /exam-failures/{id}: запись, решение и ответы в том порядке, в каком их видел пользователь
func (h *ExamFailuresHandler) Get(w http.ResponseWriter, r *http.Request) {
	failureID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || failureID <= 0 {
		httpError.ErrorResponse(w, http.StatusBadRequest, "Invalid exam failure id")
		return
	}

	ctx := r.Context()
	record, err := h.reports.GetExamFailure(ctx, failureID)
	if err != nil {
		httpError.ErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get exam failure: %v", err))
		return
	}
	if record == nil {
		httpError.ErrorResponse(w, http.StatusNotFound, fmt.Sprintf("Exam failure %d not found", failureID))
		return
	}

	response := dto.NewExamFailureResponse(*record)

	review, err := h.reports.GetReview(ctx, failureID)
	if err != nil {
		httpError.ErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get review: %v", err))
		return
	}
	response.Review = review

	cfg, err := h.configs.GetExamConfig(ctx, record.ChatID)
	if err != nil {
		slog.Warn("exam config unavailable for replay", "chat_id", record.ChatID, "error", err)
	} else {
		response.Replay = examsService.Replay(record, cfg)
	}

	httpError.JSONResponse(w, http.StatusOK, response)
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
