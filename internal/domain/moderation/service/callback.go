package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// ReviewCallbackPrefix префикс данных кнопок в чате модераторов
const ReviewCallbackPrefix = "review"

// ErrMalformedReviewCallback данные кнопки не соответствуют формату review:{action}:{failureId}
var ErrMalformedReviewCallback = errors.New("malformed review callback")

// FormatReviewCallback формирует данные кнопки решения
func FormatReviewCallback(action string, failureID int64) string {
	return fmt.Sprintf("%s:%s:%d", ReviewCallbackPrefix, action, failureID)
}

// ParseReviewCallback разбирает данные кнопки решения
func ParseReviewCallback(data string) (action string, failureID int64, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != ReviewCallbackPrefix {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedReviewCallback, data)
	}
	if !ValidAction(parts[1]) {
		return "", 0, fmt.Errorf("%w: unknown action %q", ErrMalformedReviewCallback, parts[1])
	}
	failureID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || failureID <= 0 {
		return "", 0, fmt.Errorf("%w: failure id %q", ErrMalformedReviewCallback, parts[2])
	}
	return parts[1], failureID, nil
}

// ValidAction проверяет действие ручной проверки
func ValidAction(action string) bool {
	switch action {
	case model.ReviewActionApprove, model.ReviewActionDeny, model.ReviewActionBan:
		return true
	}
	return false
}
