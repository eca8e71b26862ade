package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/repository"
)

// DevHandler выдаёт пользователей и сессии без внешнего входа. Маршрут регистрируется только с -dev.
type DevHandler struct {
	users    *repository.UserRepository
	sessions *repository.SessionRepository
}

func NewDevHandler(users *repository.UserRepository, sessions *repository.SessionRepository) *DevHandler {
	return &DevHandler{users: users, sessions: sessions}
}

type devRegisterRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
	Image string `json:"image" validate:"omitempty,url"`
}

type devRegisterResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register — POST /api/dev/register {name, email, image}. Повтор с тем же email выдаёт новую сессию существующему пользователю.
func (h *DevHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req devRegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	ctx := r.Context()

	var u *model.User
	id, err := h.users.IDByEmail(ctx, req.Email)
	switch {
	case err == nil:
		u, err = h.users.GetByID(ctx, id)
		if err != nil {
			logger.Errorf("dev register: load %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	case errors.Is(err, repository.ErrNotFound):
		u = &model.User{
			ID:    uuid.NewString(),
			Name:  strings.TrimSpace(req.Name),
			Email: repository.NormalizeEmail(req.Email),
			Image: req.Image,
		}
		if err := h.users.Create(ctx, u); err != nil {
			logger.Errorf("dev register: create: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		logger.Infof("dev register: user %s created", u.ID)
	default:
		logger.Errorf("dev register: lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	token, err := h.sessions.Create(ctx, u.ID)
	if err != nil {
		logger.Errorf("dev register: session: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, devRegisterResponse{User: u, Token: token})
}
