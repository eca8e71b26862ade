package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/middleware"
	"github.com/chatsync/internal/storage"
)

const notificationTTL = 30

var validate = validator.New()

func SubscriptionsKey(userID string) string { return "user:" + userID + ":push_subscriptions" }

// Server — push-сервис: подписки хранятся в общем KV (множество JSON на пользователя), отправка через VAPID.
type Server struct {
	store     storage.Store
	vapid     *webpush.Options
	publicKey string
}

// NewServer создаёт сервер. keys == nil — подписки сохраняются, отправка не выполняется.
func NewServer(store storage.Store, keys *VAPIDKeys, subscriber string) *Server {
	s := &Server{store: store}
	if keys != nil && keys.PublicKey != "" && keys.PrivateKey != "" {
		s.vapid = keys.Options(subscriber, notificationTTL)
		s.publicKey = keys.PublicKey
	}
	return s
}

// Routes — маршруты push-сервиса. /api/* доступен только из внутренней сети или с секретом.
func (s *Server) Routes(internalSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover)
	r.Use(middleware.RequestLog)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/api/vapid-public", s.handleVAPIDPublic)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.InternalOnly(internalSecret))
		r.Post("/subscribe", s.handleSubscribe)
		r.Delete("/subscribe", s.handleUnsubscribe)
		r.Post("/notify", s.handleNotify)
	})
	return r
}

func (s *Server) handleVAPIDPublic(w http.ResponseWriter, r *http.Request) {
	if s.publicKey == "" {
		http.Error(w, "push not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(s.publicKey))
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "user_id and subscription (endpoint, keys.p256dh, keys.auth) required", http.StatusBadRequest)
		return
	}
	if err := s.Save(r.Context(), strings.TrimSpace(req.UserID), req.Subscription); err != nil {
		logger.Errorf("push subscribe: %v", err)
		http.Error(w, "failed to save subscription", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "user_id and endpoint required", http.StatusBadRequest)
		return
	}
	if err := s.Remove(r.Context(), strings.TrimSpace(req.UserID), req.Endpoint); err != nil {
		logger.Errorf("push unsubscribe: %v", err)
		http.Error(w, "failed to remove subscription", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if _, err := s.Send(ctx, strings.TrimSpace(req.UserID), req); err != nil {
		logger.Errorf("push notify: %v", err)
		http.Error(w, "failed to get subscriptions", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Subscriptions — подписки пользователя; битые записи пропускаются.
func (s *Server) Subscriptions(ctx context.Context, userID string) (map[string]Subscription, error) {
	members, err := s.store.SMembers(ctx, SubscriptionsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("push subscriptions %s: %w", userID, err)
	}
	out := make(map[string]Subscription, len(members))
	for _, m := range members {
		var sub Subscription
		if json.Unmarshal([]byte(m), &sub) == nil && sub.Endpoint != "" {
			out[m] = sub
		}
	}
	return out, nil
}

// Save заменяет подписку с тем же endpoint на новую (ключи браузера могли смениться).
func (s *Server) Save(ctx context.Context, userID string, sub Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	existing, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return err
	}
	key := SubscriptionsKey(userID)
	ops := []storage.Op{storage.SAdd(key, string(raw))}
	for member, old := range existing {
		if old.Endpoint == sub.Endpoint && member != string(raw) {
			ops = append(ops, storage.SRem(key, member))
		}
	}
	return s.store.Exec(ctx, ops...)
}

func (s *Server) Remove(ctx context.Context, userID, endpoint string) error {
	existing, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return err
	}
	key := SubscriptionsKey(userID)
	var ops []storage.Op
	for member, sub := range existing {
		if sub.Endpoint == endpoint {
			ops = append(ops, storage.SRem(key, member))
		}
	}
	if len(ops) == 0 {
		return nil
	}
	return s.store.Exec(ctx, ops...)
}

// Send рассылает уведомление по всем подпискам пользователя и возвращает число доставленных.
// Подписки, на которые сервис ответил 404/410, удаляются.
func (s *Server) Send(ctx context.Context, userID string, req NotifyRequest) (int, error) {
	subs, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.vapid == nil || len(subs) == 0 {
		return 0, nil
	}
	payload, err := json.Marshal(map[string]any{"title": req.Title, "body": req.Body, "data": req.Data})
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, sub := range subs {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("push send %s: %v", sub.Endpoint[:min(50, len(sub.Endpoint))], err)
			continue
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			if err := s.Remove(ctx, userID, sub.Endpoint); err != nil {
				logger.Errorf("push remove expired: %v", err)
			}
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			sent++
		default:
			logger.Errorf("push send %s: status %d", sub.Endpoint[:min(50, len(sub.Endpoint))], resp.StatusCode)
		}
	}
	return sent, nil
}
