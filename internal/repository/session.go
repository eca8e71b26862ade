package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chatsync/internal/storage"
)

func sessionKey(token string) string { return "session:" + token }

// SessionRepository — сессии хранятся в том же хранилище: session:<token> → user id.
// Выдача сессий (вход) — внешняя система; здесь только проверка и dev-выдача.
type SessionRepository struct {
	store storage.Store
}

func NewSessionRepository(store storage.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Create выдаёт новый токен для userID.
func (r *SessionRepository) Create(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := r.store.Set(ctx, sessionKey(token), userID); err != nil {
		return "", fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return token, nil
}

// UserID возвращает владельца токена или ErrNotFound.
func (r *SessionRepository) UserID(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotFound
	}
	id, err := r.store.Get(ctx, sessionKey(token))
	if errors.Is(err, storage.ErrNil) || (err == nil && id == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sessionRepo.UserID: %w", err)
	}
	return id, nil
}
