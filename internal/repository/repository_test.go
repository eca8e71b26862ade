package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/storage"
	"github.com/chatsync/internal/storage/memory"
	redisstore "github.com/chatsync/internal/storage/redis"
)

func newRedisStore(t *testing.T) storage.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := redisstore.New(context.Background(), "redis://"+mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(memory.New())

	u := &model.User{ID: "u1", Name: "Ann", Email: "Ann@Example.com"}
	require.NoError(t, users.Create(ctx, u))

	got, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	id, err := users.IDByEmail(ctx, " ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = users.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = users.IDByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionRepository(memory.New())

	token, err := sessions.Create(ctx, "u1")
	require.NoError(t, err)
	id, err := sessions.UserID(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = sessions.UserID(ctx, "bogus")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = sessions.UserID(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSocialGraphLink(t *testing.T) {
	ctx := context.Background()
	g := NewSocialGraph(memory.New())

	require.NoError(t, g.AddPending(ctx, "u2", "u1"))
	pending, err := g.IsPending(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, pending)
	n, err := g.PendingCount(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, g.Link(ctx, "u2", "u1"))

	ab, ba, err := g.Edges(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, ab)
	assert.True(t, ba)
	pending, err = g.IsPending(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, pending)

	friends, err := g.Friends(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, friends)
}

func TestSocialGraphRepairHalfEdge(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g := NewSocialGraph(store)

	require.NoError(t, store.SAdd(ctx, FriendsKey("u1"), "u2"))
	half, err := g.HalfLinked(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, half)

	require.NoError(t, g.Repair(ctx, "u1", "u2"))
	half, err = g.HalfLinked(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, half)
	ok, err := g.AreFriends(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMessageLog(t *testing.T) {
	ctx := context.Background()
	log := NewMessageLog(memory.New())

	latest, err := log.Latest(ctx, "u1--u2")
	require.NoError(t, err)
	assert.Nil(t, latest)

	second := &model.Message{ID: "b", SenderID: "u2", Text: "there", Timestamp: 2000}
	first := &model.Message{ID: "a", SenderID: "u1", Text: "hi", Timestamp: 1000}
	require.NoError(t, log.Append(ctx, "u1--u2", second))
	require.NoError(t, log.Append(ctx, "u1--u2", first))

	msgs, err := log.History(ctx, "u1--u2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)

	latest, err = log.Latest(ctx, "u1--u2")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "b", latest.ID)
}

func TestMessageLogCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log := NewMessageLog(store)

	require.NoError(t, log.Append(ctx, "c", &model.Message{ID: "a", SenderID: "u1", Text: "ok", Timestamp: 1}))
	require.NoError(t, store.ZAdd(ctx, MessagesKey("c"), 2, "{not json"))

	_, err := log.History(ctx, "c")
	assert.ErrorIs(t, err, ErrCorruptLog)
}

func TestMessageLogEqualTimestampsKeepInsertionOrder(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.Store{
		"memory": func(*testing.T) storage.Store { return memory.New() },
		"redis":  newRedisStore,
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := NewMessageLog(newStore(t))

			for _, id := range []string{"c", "a", "b"} {
				require.NoError(t, log.Append(ctx, "u1--u2", &model.Message{ID: id, SenderID: "u1", Text: id, Timestamp: 1000}))
			}
			msgs, err := log.History(ctx, "u1--u2")
			require.NoError(t, err)
			var ids []string
			for _, m := range msgs {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, []string{"c", "a", "b"}, ids)

			latest, err := log.Latest(ctx, "u1--u2")
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Equal(t, "b", latest.ID)
		})
	}
}

func TestMessageLogHas(t *testing.T) {
	ctx := context.Background()
	log := NewMessageLog(memory.New())

	ok, err := log.Has(ctx, "u1--u2", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, log.Append(ctx, "u1--u2", &model.Message{ID: "a", SenderID: "u1", Text: "hi", Timestamp: 1}))
	ok, err = log.Has(ctx, "u1--u2", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = log.Has(ctx, "u1--u3", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
