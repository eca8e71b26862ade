package handler

import (
	"net/http"

	"github.com/chatsync/internal/repository"
)

type UserHandler struct {
	users *repository.UserRepository
}

func NewUserHandler(users *repository.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Me — GET /api/users/me: профиль владельца сессии.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := currentUser(r.Context(), h.users)
	if err != nil {
		writeServiceJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}
