package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	busmemory "github.com/chatsync/internal/bus/memory"
	"github.com/chatsync/internal/config"
	"github.com/chatsync/internal/handler"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
	"github.com/chatsync/internal/push"
	"github.com/chatsync/internal/repository"
	"github.com/chatsync/internal/service"
	"github.com/chatsync/internal/storage/memory"
	"github.com/chatsync/internal/ws"
)

const waitFor = 2 * time.Second

type recordMachine struct {
	mu     sync.Mutex
	got    []string
	inside func()
}

func (m *recordMachine) Handle(channel string, ev protocol.Event) {
	m.mu.Lock()
	m.got = append(m.got, channel+"/"+string(ev.Name()))
	inside := m.inside
	m.mu.Unlock()
	if inside != nil {
		inside()
	}
}

func (m *recordMachine) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.got...)
}

func newBusTransport(t *testing.T) (*BusTransport, *busmemory.Bus) {
	t.Helper()
	b := busmemory.New()
	tr, err := NewBusTransport(context.Background(), b)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr, b
}

func TestMountReceivesOwnChannelsOnly(t *testing.T) {
	ctx := context.Background()
	tr, b := newBusTransport(t)
	a, other := &recordMachine{}, &recordMachine{}

	ma, err := NewMount(ctx, tr, a, "ch-a")
	require.NoError(t, err)
	defer ma.Close(ctx)
	mb, err := NewMount(ctx, tr, other, "ch-b")
	require.NoError(t, err)
	defer mb.Close(ctx)
	assert.Equal(t, Subscribed, ma.State())

	require.NoError(t, b.Publish(ctx, "ch-b", protocol.DenyFriend{}))
	require.Eventually(t, func() bool { return len(other.events()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Empty(t, a.events())
}

func TestMountSharedChannelIsReferenceCounted(t *testing.T) {
	ctx := context.Background()
	tr, b := newBusTransport(t)
	first, second := &recordMachine{}, &recordMachine{}

	m1, err := NewMount(ctx, tr, first, "shared")
	require.NoError(t, err)
	m2, err := NewMount(ctx, tr, second, "shared")
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Refs("shared"))

	require.NoError(t, m1.Close(ctx))
	assert.Equal(t, 1, tr.Refs("shared"))

	require.NoError(t, b.Publish(ctx, "shared", protocol.DenyFriend{}))
	require.Eventually(t, func() bool { return len(second.events()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Empty(t, first.events())

	require.NoError(t, m2.Close(ctx))
	assert.Equal(t, 0, tr.Refs("shared"))
}

func TestMountCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, _ := newBusTransport(t)
	m, err := NewMount(ctx, tr, &recordMachine{}, "a", "b", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.Channels())

	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, Unsubscribed, m.State())
	assert.Equal(t, 0, tr.Refs("a"))
	assert.Empty(t, m.Channels())
}

func TestMountStateWhileHandling(t *testing.T) {
	ctx := context.Background()
	tr, b := newBusTransport(t)
	rec := &recordMachine{}
	m, err := NewMount(ctx, tr, rec, "ch")
	require.NoError(t, err)
	defer m.Close(ctx)

	seen := make(chan State, 1)
	rec.mu.Lock()
	rec.inside = func() { seen <- m.State() }
	rec.mu.Unlock()

	require.NoError(t, b.Publish(ctx, "ch", protocol.DenyFriend{}))
	select {
	case st := <-seen:
		assert.Equal(t, Updating, st)
	case <-time.After(waitFor):
		t.Fatal("event not handled")
	}
	require.Eventually(t, func() bool { return m.State() == Subscribed }, waitFor, 10*time.Millisecond)
}

// failingTransport отказывает в подписке на канал fail.
type failingTransport struct {
	*dispatcher
	fail     string
	released []string
}

func (f *failingTransport) Subscribe(ctx context.Context, ch string) error {
	return f.acquire(ctx, ch, func(context.Context, string) error {
		if ch == f.fail {
			return errors.New("denied")
		}
		return nil
	})
}

func (f *failingTransport) Unsubscribe(ctx context.Context, ch string) error {
	return f.release(ctx, ch, func(context.Context, string) error {
		f.released = append(f.released, ch)
		return nil
	})
}

func TestMountReleasesOnSetupFailure(t *testing.T) {
	ctx := context.Background()
	ft := &failingTransport{dispatcher: newDispatcher(), fail: "c"}
	rec := &recordMachine{}

	m, err := NewMount(ctx, ft, rec, "a", "b", "c")
	require.Error(t, err)
	assert.Nil(t, m)
	assert.Equal(t, []string{"a", "b"}, ft.released)
	assert.Equal(t, 0, ft.Refs("a"))

	ft.dispatch("a", protocol.DenyFriend{})
	assert.Empty(t, rec.events())
}

func TestUnsubscribeUnknownChannel(t *testing.T) {
	tr, _ := newBusTransport(t)
	assert.ErrorIs(t, tr.Unsubscribe(context.Background(), "nope"), ErrNotSubscribed)
}

// stack — полный API-процесс в памяти: хранилище, шина, хаб и роутер.
type stack struct {
	url      string
	channels protocol.Channels
	sessions *repository.SessionRepository
	users    *repository.UserRepository
}

func newStack(t *testing.T) *stack {
	t.Helper()
	store := memory.New()
	b := busmemory.New()
	channels := protocol.NewChannels("test")
	users := repository.NewUserRepository(store)
	sessions := repository.NewSessionRepository(store)
	graph := repository.NewSocialGraph(store)

	hub := ws.NewHub(b, channels, ws.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Run(ctx) }()
	<-hub.Ready()

	rt := &handler.Router{
		Sessions: sessions,
		Friends:  handler.NewFriendHandler(service.NewFriendService(users, graph, b, channels), users),
		Messages: handler.NewMessageHandler(service.NewChatService(users, graph, repository.NewMessageLog(store), b, channels, 2000), users),
		Users:    handler.NewUserHandler(users),
		Config:   handler.NewConfigHandler(&config.Config{}, channels),
		Push:     handler.NewPushHandler(push.NewClient("", "")),
		WS:       handler.NewWSHandler(hub, "*"),
	}
	srv := httptest.NewServer(rt.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-errc
	})
	return &stack{url: srv.URL, channels: channels, sessions: sessions, users: users}
}

func (s *stack) login(t *testing.T, id, name string) (*model.User, *API) {
	t.Helper()
	ctx := context.Background()
	u := &model.User{ID: id, Name: name, Email: id + "@example.com"}
	require.NoError(t, s.users.Create(ctx, u))
	token, err := s.sessions.Create(ctx, id)
	require.NoError(t, err)
	return u, NewAPI(s.url, token)
}

func TestWSTransportEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	ann, annAPI := s.login(t, "u1", "Ann")
	bob, bobAPI := s.login(t, "u2", "Bob")

	me, err := bobAPI.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, me.ID)

	tr, err := DialWS(ctx, bobAPI.WSURL(), bobAPI.token)
	require.NoError(t, err)
	defer tr.Close()

	_, count, err := bobAPI.Requests(ctx)
	require.NoError(t, err)
	badge := NewRequestBadge(bob.ID, count)
	requests := NewRequestList(bob.ID, nil)
	friends := NewFriendList(bob.ID, nil)
	unseen := NewUnseenTracker(bob.ID, nil)

	var mounts []*Mount
	for _, m := range []interface {
		Machine
		Channels(protocol.Channels) []string
	}{badge, requests, friends, unseen} {
		mt, err := NewMount(ctx, tr, m, m.Channels(s.channels)...)
		require.NoError(t, err)
		mounts = append(mounts, mt)
	}
	assert.Equal(t, 2, tr.Refs(s.channels.Friends(bob.ID)))

	require.NoError(t, annAPI.AddFriend(ctx, bob.Email))
	require.Eventually(t, func() bool { return badge.Count() == 1 && len(requests.Requests()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, ann.ID, requests.Requests()[0].SenderID)

	require.NoError(t, bobAPI.AcceptFriend(ctx, ann.ID))
	requests.Remove(ann.ID)
	require.Eventually(t, func() bool { return len(friends.Friends()) == 1 && badge.Count() == 0 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, ann.ID, friends.Friends()[0].ID)

	cid := protocol.ConversationID(ann.ID, bob.ID)
	history, err := bobAPI.History(ctx, cid)
	require.NoError(t, err)
	view := NewChatView(cid, history)
	viewMount, err := NewMount(ctx, tr, view, view.Channels(s.channels)...)
	require.NoError(t, err)
	mounts = append(mounts, viewMount)

	require.NoError(t, annAPI.Send(ctx, cid, "hi"))
	require.Eventually(t, func() bool { return len(view.Messages()) == 1 && unseen.Count(ann.ID) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, "hi", view.Messages()[0].Text)

	unseen.Navigate(cid)
	assert.Equal(t, 0, unseen.Count(ann.ID))

	require.NoError(t, Resync(ctx, bobAPI, badge, requests, friends, unseen, view))
	assert.EqualValues(t, 0, badge.Count())
	assert.Len(t, friends.Friends(), 1)
	assert.Len(t, view.Messages(), 1)

	for _, m := range mounts {
		require.NoError(t, m.Close(ctx))
	}
	assert.Equal(t, 0, tr.Refs(s.channels.Friends(bob.ID)))
}

func TestWSTransportRejectsForeignChannel(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	_, annAPI := s.login(t, "u1", "Ann")

	tr, err := DialWS(ctx, annAPI.WSURL(), annAPI.token)
	require.NoError(t, err)
	defer tr.Close()

	_, err = NewMount(ctx, tr, &recordMachine{}, s.channels.Chats("u1"), s.channels.Friends("u2"))
	require.Error(t, err)
	assert.Equal(t, 0, tr.Refs(s.channels.Chats("u1")))
}

func TestDialWSWithoutSession(t *testing.T) {
	s := newStack(t)
	_, err := DialWS(context.Background(), NewAPI(s.url, "").WSURL(), "")
	require.Error(t, err)
}

func TestAPIErrorCarriesStatusAndText(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	_, annAPI := s.login(t, "u1", "Ann")

	err := annAPI.AddFriend(ctx, "nobody@example.com")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "This person does not exist", apiErr.Text)

	_, err = annAPI.History(ctx, "x--y")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "Unauthorized", apiErr.Text)
}
