package handler

import (
	"net/http"

	"github.com/chatsync/internal/config"
	"github.com/chatsync/internal/middleware"
	"github.com/chatsync/internal/protocol"
)

// ConfigHandler отдаёт клиенту параметры realtime и push.
type ConfigHandler struct {
	cfg      *config.Config
	channels protocol.Channels
}

func NewConfigHandler(cfg *config.Config, channels protocol.Channels) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, channels: channels}
}

type realtimeConfig struct {
	Namespace string   `json:"namespace"`
	WSPath    string   `json:"wsPath"`
	Channels  []string `json:"channels"`
}

// GetRealtime — GET /api/config/realtime: namespace каналов и собственные каналы пользователя.
func (h *ConfigHandler) GetRealtime(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	writeJSON(w, http.StatusOK, realtimeConfig{
		Namespace: h.channels.Namespace,
		WSPath:    "/ws",
		Channels:  h.channels.UserChannels(userID),
	})
}

// GetPushConfig возвращает публичный VAPID-ключ для подписки на пуши (если включены).
func (h *ConfigHandler) GetPushConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PushServiceURL == "" || h.cfg.PushVAPIDPublicKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":          true,
		"vapid_public_key": h.cfg.PushVAPIDPublicKey,
	})
}
