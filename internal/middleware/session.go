package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/repository"
)

// SessionLookup — проверка токена сессии (repository.SessionRepository).
type SessionLookup interface {
	UserID(ctx context.Context, token string) (string, error)
}

// SessionToken достаёт токен: Authorization: Bearer, X-Session-Id или ?session_id= (для WebSocket).
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if s := r.Header.Get("X-Session-Id"); s != "" {
		return s
	}
	return r.URL.Query().Get("session_id")
}

// TokenAuth пропускает запрос только с действующей сессией; иначе 401 "Unauthorized" текстом.
func TokenAuth(sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			userID, err := sessions.UserID(r.Context(), token)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					logger.Errorf("session middleware session_id=%s: %v", MaskSessionID(token), err)
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := WithUserID(r.Context(), userID)
			ctx = context.WithValue(ctx, SessionIDKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
