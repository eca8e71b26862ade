package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/middleware"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/repository"
	"github.com/chatsync/internal/service"
)

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeText — ответ мутаций: код статуса и короткий текст без структуры.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// decodeBody разбирает JSON и проверяет теги validate; любая ошибка — 422.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// statusOf переводит ошибку сервиса в HTTP-статус. upstream — статус сбоя хранилища/шины на этом маршруте.
func statusOf(err error, upstream int) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindConflict:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return upstream
	}
}

func writeServiceText(w http.ResponseWriter, r *http.Request, err error, upstream int) {
	status := statusOf(err, upstream)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeText(w, status, service.Message(err))
}

func writeServiceJSON(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err, http.StatusInternalServerError)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, service.Message(err))
}

// currentUser загружает профиль владельца сессии; запись пропала — как нет сессии.
func currentUser(ctx context.Context, users *repository.UserRepository) (*model.User, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, service.ErrUnauthorized
	}
	u, err := users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, service.ErrUnauthorized
	}
	if err != nil {
		return nil, service.Upstream("Internal Server Error", err)
	}
	return u, nil
}
