package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chatsync/internal/middleware"
)

// Router — обработчики и параметры маршрутов API.
type Router struct {
	Sessions middleware.SessionLookup

	Friends  *FriendHandler
	Messages *MessageHandler
	Users    *UserHandler
	Config   *ConfigHandler
	Push     *PushHandler
	WS       *WSHandler
	// Dev — только в режиме -dev; nil — маршрут не регистрируется.
	Dev *DevHandler

	CORSAllowedOrigins string
	RateLimitPerIP     int
	RateLimitPerUser   int
}

// Handler собирает chi-роутер: общие middleware, публичные маршруты и группу с сессией.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover)
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimit(rt.RateLimitPerIP, 0))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(rt.CORSAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok") })
	r.Get("/api/config/push", rt.Config.GetPushConfig)
	if rt.Dev != nil {
		r.Post("/api/dev/register", rt.Dev.Register)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(rt.Sessions))
		r.Use(middleware.RateLimit(0, rt.RateLimitPerUser))
		r.Get("/api/users/me", rt.Users.Me)
		r.Get("/api/config/realtime", rt.Config.GetRealtime)

		r.Post("/api/friends/add", rt.Friends.Add)
		r.Post("/api/friends/accept", rt.Friends.Accept)
		r.Post("/api/friends/deny", rt.Friends.Deny)
		r.Get("/api/friends", rt.Friends.List)
		r.Get("/api/friends/requests", rt.Friends.Requests)

		r.Post("/api/message/send", rt.Messages.Send)
		r.Get("/api/chats", rt.Messages.Recent)
		r.Get("/api/chats/{chatId}/messages", rt.Messages.History)

		r.Post("/api/push/subscribe", rt.Push.Subscribe)
		r.Delete("/api/push/subscribe", rt.Push.Unsubscribe)
		if rt.WS != nil {
			r.Get("/ws", rt.WS.ServeWS)
		}
	})
	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
