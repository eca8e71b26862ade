package handler

import (
	"net/http"

	"github.com/chatsync/internal/middleware"
	"github.com/chatsync/internal/repository"
	"github.com/chatsync/internal/service"
)

// FriendHandler — заявки в друзья. Мутации отвечают текстом, чтения — JSON.
type FriendHandler struct {
	friends *service.FriendService
	users   *repository.UserRepository
}

func NewFriendHandler(friends *service.FriendService, users *repository.UserRepository) *FriendHandler {
	return &FriendHandler{friends: friends, users: users}
}

type addFriendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type friendIDRequest struct {
	ID string `json:"id" validate:"required"`
}

// Add — POST /api/friends/add {email}.
func (h *FriendHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addFriendRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	me, err := currentUser(r.Context(), h.users)
	if err != nil {
		writeServiceText(w, r, err, http.StatusBadRequest)
		return
	}
	if err := h.friends.SendRequest(r.Context(), me, req.Email); err != nil {
		writeServiceText(w, r, err, http.StatusBadRequest)
		return
	}
	writeText(w, http.StatusOK, "OK")
}

// Accept — POST /api/friends/accept {id}.
func (h *FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req friendIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.friends.Accept(r.Context(), userID, req.ID); err != nil {
		writeServiceText(w, r, err, http.StatusBadRequest)
		return
	}
	writeText(w, http.StatusOK, "Ok")
}

// Deny — POST /api/friends/deny {id}.
func (h *FriendHandler) Deny(w http.ResponseWriter, r *http.Request) {
	var req friendIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.friends.Deny(r.Context(), userID, req.ID); err != nil {
		writeServiceText(w, r, err, http.StatusBadRequest)
		return
	}
	writeText(w, http.StatusOK, "Ok")
}

// List — GET /api/friends: профили друзей.
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	friends, err := h.friends.Friends(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

// Requests — GET /api/friends/requests: входящие заявки и снимок счётчика для бейджа.
func (h *FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	reqs, err := h.friends.IncomingRequests(r.Context(), userID)
	if err != nil {
		writeServiceJSON(w, r, err)
		return
	}
	count, err := h.friends.PendingCount(r.Context(), userID)
	if err != nil {
		writeServiceJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "requests": reqs})
}
