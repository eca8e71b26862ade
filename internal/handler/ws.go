package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/middleware"
	"github.com/chatsync/internal/ws"
)

// WSHandler принимает realtime-соединения и отдаёт их хабу.
type WSHandler struct {
	hub      *ws.Hub
	anyOrig  bool
	origins  map[string]struct{}
	upgrader websocket.Upgrader
}

// NewWSHandler: allowedOrigins — тот же список, что для CORS (через запятую; "*" или пусто — любой).
func NewWSHandler(hub *ws.Hub, allowedOrigins string) *WSHandler {
	h := &WSHandler{hub: hub, origins: make(map[string]struct{})}
	for _, o := range strings.Split(allowedOrigins, ",") {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			h.anyOrig = true
		default:
			h.origins[o] = struct{}{}
		}
	}
	if len(h.origins) == 0 {
		h.anyOrig = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

// originAllowed: запрос без Origin (не браузер) пропускаем.
func (h *WSHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if h.anyOrig || origin == "" {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}

// ServeWS проверяет сессию, origin и лимит соединений до upgrade,
// чтобы отказ пришёл обычным HTTP-ответом. Подписки клиент шлёт кадрами subscribe/unsubscribe.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !h.originAllowed(r) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err := h.hub.Admit(); err != nil {
		if errors.Is(err, ws.ErrHubFull) {
			logger.Errorf("ws reject user=%s: %v", userID, err)
			writeError(w, http.StatusServiceUnavailable, "Too many connections")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade user=%s: %v", userID, err)
		return
	}
	// соединение живёт дольше запроса: отмену запроса не наследуем
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	client := ws.NewClient(h.hub, conn, userID)
	client.Start(ctx, cancel)
	h.hub.Register(client)
	logger.Debugf("ws connected user=%s connections=%d", userID, h.hub.Connections())
}
