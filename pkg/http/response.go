package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody тело ответа с ошибкой
type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse отправляет JSON с описанием ошибки
func ErrorResponse(w http.ResponseWriter, status int, message string) {
	JSONResponse(w, status, errorBody{Error: message})
}

// JSONResponse отправляет значение в формате JSON
func JSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
