package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chatsync/internal/middleware"
	"github.com/chatsync/internal/repository"
	"github.com/chatsync/internal/service"
)

type MessageHandler struct {
	chats *service.ChatService
	users *repository.UserRepository
}

func NewMessageHandler(chats *service.ChatService, users *repository.UserRepository) *MessageHandler {
	return &MessageHandler{chats: chats, users: users}
}

type sendMessageRequest struct {
	Text   string `json:"text"`
	ChatID string `json:"chatId" validate:"required"`
}

// Send — POST /api/message/send {text, chatId}. Сбой хранилища или шины — 500.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	me, err := currentUser(r.Context(), h.users)
	if err != nil {
		writeServiceText(w, r, err, http.StatusInternalServerError)
		return
	}
	if _, err := h.chats.Send(r.Context(), me, req.ChatID, req.Text); err != nil {
		writeServiceText(w, r, err, http.StatusInternalServerError)
		return
	}
	writeText(w, http.StatusOK, "Ok")
}

// History — GET /api/chats/{chatId}/messages: вся переписка по возрастанию времени.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	msgs, err := h.chats.History(r.Context(), middleware.GetUserID(r.Context()), chatID)
	if err != nil {
		writeServiceJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// Recent — GET /api/chats: друзья с последним сообщением.
func (h *MessageHandler) Recent(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.RecentChats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}
