package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CallbackPrefix префикс данных кнопки ответа
const CallbackPrefix = "exam"

// ErrMalformedCallback данные кнопки не соответствуют формату exam:{session}:{question}:{answer}
var ErrMalformedCallback = errors.New("malformed exam callback")

// McAnswer нажатие кнопки ответа
type McAnswer struct {
	SessionID     int64
	QuestionIndex int
	AnswerIndex   int
	UserID        int64
	MessageID     int
}

// FormatCallback формирует данные кнопки ответа
func FormatCallback(sessionID int64, questionIndex, answerIndex int) string {
	return fmt.Sprintf("%s:%d:%d:%d", CallbackPrefix, sessionID, questionIndex, answerIndex)
}

// ParseCallback разбирает данные кнопки ответа
func ParseCallback(data string) (sessionID int64, questionIndex, answerIndex int, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != CallbackPrefix {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
	}

	sessionID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: session id: %v", ErrMalformedCallback, err)
	}
	questionIndex, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: question index: %v", ErrMalformedCallback, err)
	}
	answerIndex, err = strconv.Atoi(parts[3])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: answer index: %v", ErrMalformedCallback, err)
	}
	if questionIndex < 0 || answerIndex < 0 {
		return 0, 0, 0, fmt.Errorf("%w: negative index", ErrMalformedCallback)
	}
	return sessionID, questionIndex, answerIndex, nil
}
