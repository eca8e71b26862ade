package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
)

func unseenFrom(sender, id string) protocol.Event {
	return protocol.NewUnseenMessage{Message: model.UnseenMessage{
		Message:    model.Message{ID: id, SenderID: sender, Text: "hi " + id, Timestamp: 1},
		SenderName: sender,
	}}
}

func TestUnseenTrackerCountsAndNavigate(t *testing.T) {
	var notified []string
	tr := NewUnseenTracker("me", func(m model.UnseenMessage) { notified = append(notified, m.ID) })
	tr.Navigate(protocol.ConversationID("me", "z"))

	for _, id := range []string{"1", "2", "3"} {
		tr.Handle("", unseenFrom("x", id))
	}
	tr.Handle("", unseenFrom("y", "4"))

	assert.Equal(t, 3, tr.Count("x"))
	assert.Equal(t, 1, tr.Count("y"))
	assert.Equal(t, []string{"1", "2", "3", "4"}, notified)

	tr.Navigate(protocol.ConversationID("x", "me"))
	assert.Equal(t, 0, tr.Count("x"))
	assert.Equal(t, 1, tr.Count("y"))
}

func TestUnseenTrackerNewestFirst(t *testing.T) {
	tr := NewUnseenTracker("me", nil)
	tr.Handle("", unseenFrom("x", "1"))
	tr.Handle("", unseenFrom("y", "2"))

	got := tr.Unseen()
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "1", got[1].ID)
}

func TestUnseenTrackerSuppressesActiveConversation(t *testing.T) {
	calls := 0
	tr := NewUnseenTracker("me", func(model.UnseenMessage) { calls++ })
	tr.Navigate(protocol.ConversationID("me", "x"))

	tr.Handle("", unseenFrom("x", "1"))
	assert.Equal(t, 0, tr.Count("x"))
	assert.Equal(t, 0, calls)

	tr.Navigate("")
	tr.Handle("", unseenFrom("x", "2"))
	assert.Equal(t, 1, tr.Count("x"))
	assert.Equal(t, 1, calls)
}

func TestUnseenTrackerIgnoresOtherEvents(t *testing.T) {
	tr := NewUnseenTracker("me", nil)
	tr.Handle("", protocol.NewFriend{Friend: model.Friend{ID: "x"}})
	assert.Empty(t, tr.Unseen())
}

func TestRequestBadgeNetZero(t *testing.T) {
	b := NewRequestBadge("me", 2)
	b.Handle("", protocol.IncomingFriendRequest{Request: model.IncomingFriendRequest{SenderID: "x"}})
	assert.EqualValues(t, 3, b.Count())
	b.Handle("", protocol.DenyFriend{})
	assert.EqualValues(t, 2, b.Count())
}

func TestRequestBadgeNeverNegative(t *testing.T) {
	b := NewRequestBadge("me", 1)
	b.Handle("", protocol.NewFriend{Friend: model.Friend{ID: "x"}})
	b.Handle("", protocol.DenyFriend{})
	b.Handle("", protocol.DenyFriend{})
	assert.EqualValues(t, 0, b.Count())

	assert.EqualValues(t, 0, NewRequestBadge("me", -4).Count())
}

func TestFriendListDedupAndSort(t *testing.T) {
	l := NewFriendList("me", []model.Friend{{ID: "b", Name: "bob"}})
	l.Handle("", protocol.NewFriend{Friend: model.Friend{ID: "a", Name: "Ann"}})
	l.Handle("", protocol.NewFriend{Friend: model.Friend{ID: "a", Name: "Ann"}})
	l.Handle("", protocol.DenyFriend{})

	assert.Equal(t, []string{"b", "a"}, friendIDs(l.Friends()))
	assert.Equal(t, []string{"a", "b"}, friendIDs(l.Sorted()))
}

func friendIDs(fs []model.Friend) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}

func TestRequestList(t *testing.T) {
	l := NewRequestList("me", []model.IncomingFriendRequest{{SenderID: "x", SenderEmail: "x@example.com"}})
	l.Handle("", protocol.IncomingFriendRequest{Request: model.IncomingFriendRequest{SenderID: "y", SenderEmail: "y@example.com"}})
	l.Handle("", protocol.IncomingFriendRequest{Request: model.IncomingFriendRequest{SenderID: "x", SenderEmail: "x@example.com"}})
	require.Len(t, l.Requests(), 2)

	l.Remove("x")
	assert.Equal(t, []model.IncomingFriendRequest{{SenderID: "y", SenderEmail: "y@example.com"}}, l.Requests())
}

func TestChatViewDedupByID(t *testing.T) {
	v := NewChatView("a--b", []model.Message{{ID: "1", SenderID: "a", Text: "one", Timestamp: 1}})
	v.Handle("", protocol.NewMessage{Message: model.Message{ID: "2", SenderID: "b", Text: "two", Timestamp: 2}})
	v.Handle("", protocol.NewMessage{Message: model.Message{ID: "1", SenderID: "a", Text: "one", Timestamp: 1}})

	msgs := v.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, "2", msgs[1].ID)
}

type staticSource struct {
	snap    *Snapshot
	err     error
	chatIDs []string
}

func (s *staticSource) Snapshot(ctx context.Context, chatIDs ...string) (*Snapshot, error) {
	s.chatIDs = chatIDs
	return s.snap, s.err
}

func TestResyncReseedsEveryMachine(t *testing.T) {
	unseen := NewUnseenTracker("me", nil)
	unseen.Handle("", unseenFrom("x", "1"))
	friends := NewFriendList("me", nil)
	badge := NewRequestBadge("me", 5)
	requests := NewRequestList("me", nil)
	view := NewChatView("me--x", nil)

	src := &staticSource{snap: &Snapshot{
		Friends:      []model.Friend{{ID: "x", Name: "X"}},
		Requests:     []model.IncomingFriendRequest{{SenderID: "y"}},
		PendingCount: 1,
		History:      map[string][]model.Message{"me--x": {{ID: "m1", SenderID: "x", Text: "t", Timestamp: 1}}},
	}}
	require.NoError(t, Resync(context.Background(), src, unseen, friends, badge, requests, view))

	assert.Equal(t, []string{"me--x"}, src.chatIDs)
	assert.Empty(t, unseen.Unseen())
	assert.Equal(t, []string{"x"}, friendIDs(friends.Friends()))
	assert.EqualValues(t, 1, badge.Count())
	assert.Len(t, requests.Requests(), 1)
	assert.Len(t, view.Messages(), 1)
}

func TestResyncFailureKeepsState(t *testing.T) {
	badge := NewRequestBadge("me", 5)
	src := &staticSource{err: errors.New("offline")}
	require.Error(t, Resync(context.Background(), src, badge))
	assert.EqualValues(t, 5, badge.Count())
}
