package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/repository"
	"github.com/chatsync/internal/storage/memory"
)

func echoUser(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetUserID(r.Context())))
}

func TestTokenAuth(t *testing.T) {
	sessions := repository.NewSessionRepository(memory.New())
	token, err := sessions.Create(context.Background(), "u1")
	require.NoError(t, err)
	h := TokenAuth(sessions)(http.HandlerFunc(echoUser))

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		status int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "/", http.StatusOK},
		{"header", func(r *http.Request) { r.Header.Set("X-Session-Id", token) }, "/", http.StatusOK},
		{"query", func(r *http.Request) {}, "/?session_id=" + token, http.StatusOK},
		{"missing", func(r *http.Request) {}, "/", http.StatusUnauthorized},
		{"unknown", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "/", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.target, nil)
			tc.setup(r)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			} else {
				assert.Equal(t, "Unauthorized\n", w.Body.String())
			}
		})
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("k"))
	assert.True(t, rl.allow("k"))
	assert.False(t, rl.allow("k"))
	assert.True(t, rl.allow("other"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("k"))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(1, 0)(http.HandlerFunc(echoUser))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-Ip", "10.0.0.1")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error\n", w.Body.String())
}

func TestInternalOnly(t *testing.T) {
	h := InternalOnly("s3cret")(http.HandlerFunc(echoUser))

	r := httptest.NewRequest(http.MethodPost, "/notify", nil)
	r.RemoteAddr = "8.8.8.8:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r.Header.Set("X-Internal-Secret", "s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/notify", nil)
	r.RemoteAddr = "10.1.2.3:1234"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "****", MaskSessionID("short"))
	assert.Equal(t, "abcd***yz", MaskSessionID("abcdefghijklmnopqrstuvwxyz"))
}
