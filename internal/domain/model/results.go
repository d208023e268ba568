package model

// ExamStartResult результат запуска экзамена
type ExamStartResult struct {
	Success         bool `json:"success"`
	PromptMessageID int  `json:"prompt_message_id"`
}

// ExamAnswerResult результат обработки ответа.
// Passed равен nil, пока экзамен не завершен.
type ExamAnswerResult struct {
	Complete     bool  `json:"complete"`
	Passed       *bool `json:"passed"`
	SentToReview bool  `json:"sent_to_review"`
	GroupChatID  int64 `json:"group_chat_id"`
}

// ModerationResult результат одобрения или отклонения
type ModerationResult struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// BoolPtr вспомогательная функция для Passed
func BoolPtr(v bool) *bool {
	return &v
}
