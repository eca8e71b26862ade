package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const rateLimitWindow = time.Minute

type rateLimiter struct {
	mu     sync.Mutex
	times  map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{times: make(map[string][]time.Time), max: max, window: window, now: time.Now}
}

// allow — скользящее окно; max <= 0 отключает лимит.
func (r *rateLimiter) allow(key string) bool {
	if r.max <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	cutoff := now.Add(-r.window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= r.max {
		r.times[key] = slice
		return false
	}
	r.times[key] = append(slice, now)
	return true
}

func clientIP(r *http.Request) string {
	if x := r.Header.Get("X-Real-Ip"); x != "" {
		return x
	}
	if x := r.Header.Get("X-Forwarded-For"); x != "" {
		if idx := strings.Index(x, ","); idx > 0 {
			return strings.TrimSpace(x[:idx])
		}
		return x
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit ограничивает запросы к /api/* по IP и по user_id (если он уже в контексте). 429 при превышении.
func RateLimit(perIP, perUser int) func(http.Handler) http.Handler {
	byIP := newRateLimiter(perIP, rateLimitWindow)
	byUser := newRateLimiter(perUser, rateLimitWindow)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !byIP.allow(clientIP(r)) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			if userID := GetUserID(r.Context()); userID != "" {
				if !byUser.allow("u:" + userID) {
					http.Error(w, "Too many requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
