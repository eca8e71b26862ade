package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/storage/memory"
)

// browserSubscription имитирует подписку браузера на endpoint.
func browserSubscription(t *testing.T, endpoint string) Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return Subscription{
		Endpoint: endpoint,
		Keys: Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func testKeys(t *testing.T) *VAPIDKeys {
	t.Helper()
	keys, err := EnsureVAPIDKeys(filepath.Join(t.TempDir(), "vapid.json"))
	require.NoError(t, err)
	return keys
}

func TestEnsureVAPIDKeysPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vapid.json")
	first, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	require.NotEmpty(t, first.PublicKey)
	require.NotEmpty(t, first.PrivateKey)

	second, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestServerSaveReplacesSameEndpoint(t *testing.T) {
	ctx := context.Background()
	s := NewServer(memory.New(), nil, "test")

	a := browserSubscription(t, "https://push.example.com/a")
	require.NoError(t, s.Save(ctx, "u1", a))
	require.NoError(t, s.Save(ctx, "u1", browserSubscription(t, "https://push.example.com/a")))
	require.NoError(t, s.Save(ctx, "u1", browserSubscription(t, "https://push.example.com/b")))

	subs, err := s.Subscriptions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	require.NoError(t, s.Remove(ctx, "u1", "https://push.example.com/a"))
	subs, err = s.Subscriptions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	for _, sub := range subs {
		assert.Equal(t, "https://push.example.com/b", sub.Endpoint)
	}
}

func TestServerSendDropsGoneSubscriptions(t *testing.T) {
	ctx := context.Background()
	var delivered atomic.Int32
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "vapid "))
		if strings.HasSuffix(r.URL.Path, "/gone") {
			w.WriteHeader(http.StatusGone)
			return
		}
		delivered.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(endpoint.Close)

	s := NewServer(memory.New(), testKeys(t), "ops@example.com")
	require.NoError(t, s.Save(ctx, "u2", browserSubscription(t, endpoint.URL+"/live")))
	require.NoError(t, s.Save(ctx, "u2", browserSubscription(t, endpoint.URL+"/gone")))

	sent, err := s.Send(ctx, "u2", NotifyRequest{UserID: "u2", Title: "Ann", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.EqualValues(t, 1, delivered.Load())

	subs, err := s.Subscriptions(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestServerWithoutKeysStoresButDoesNotSend(t *testing.T) {
	ctx := context.Background()
	s := NewServer(memory.New(), nil, "test")
	require.NoError(t, s.Save(ctx, "u1", browserSubscription(t, "https://push.example.com/a")))
	sent, err := s.Send(ctx, "u1", NotifyRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, sent)

	w := httptest.NewRecorder()
	s.Routes("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vapid-public", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClientAgainstServer(t *testing.T) {
	ctx := context.Background()
	var delivered atomic.Int32
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(endpoint.Close)

	store := memory.New()
	s := NewServer(store, testKeys(t), "ops@example.com")
	srv := httptest.NewServer(s.Routes("s3cret"))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "s3cret")
	require.NoError(t, c.Subscribe(ctx, "u2", browserSubscription(t, endpoint.URL+"/x")))

	msg := model.UnseenMessage{
		Message:    model.Message{ID: "m1", SenderID: "u1", Text: "hi", Timestamp: 1},
		SenderName: "Ann",
	}
	require.NoError(t, c.NotifyMessage(ctx, "u2", msg))
	assert.EqualValues(t, 1, delivered.Load())

	require.NoError(t, c.Unsubscribe(ctx, "u2", endpoint.URL+"/x"))
	subs, err := s.Subscriptions(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, subs)

	err = c.Subscribe(ctx, "u2", Subscription{Endpoint: "not a url"})
	assert.Error(t, err)
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient("", "")
	assert.False(t, c.Enabled())
	assert.NoError(t, c.NotifyMessage(context.Background(), "u2", model.UnseenMessage{}))
}
