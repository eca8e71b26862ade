package protocol

import (
	"testing"

	"github.com/chatsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDIsSymmetric(t *testing.T) {
	pairs := [][2]string{{"u1", "u2"}, {"b", "a"}, {"same", "same"}, {"7f3c", "00aa"}}
	for _, p := range pairs {
		assert.Equal(t, ConversationID(p[0], p[1]), ConversationID(p[1], p[0]))
	}
	assert.Equal(t, "u1--u2", ConversationID("u2", "u1"))
}

func TestPartner(t *testing.T) {
	p, ok := Partner("u1--u2", "u1")
	assert.True(t, ok)
	assert.Equal(t, "u2", p)

	p, ok = Partner("u1--u2", "u2")
	assert.True(t, ok)
	assert.Equal(t, "u1", p)

	_, ok = Partner("u1--u2", "u3")
	assert.False(t, ok)

	_, ok = Partner("garbage", "u1")
	assert.False(t, ok)
}

func TestParseConversationIDRejectsMalformed(t *testing.T) {
	for _, cid := range []string{"", "u1", "--u2", "u1--", "a--b--c"} {
		_, _, err := ParseConversationID(cid)
		assert.ErrorIs(t, err, ErrInvalidConversation, cid)
	}
}

func TestChannelsRoundTrip(t *testing.T) {
	ch := NewChannels("test")

	assert.Equal(t, "test__user__u1__friends", ch.Friends("u1"))
	assert.Equal(t, "test__chat__u1--u2__messages", ch.Messages("u1--u2"))

	cases := map[string]Scope{
		ch.Friends("u1"):          {Kind: KindFriends, Owner: "u1"},
		ch.Chats("u1"):            {Kind: KindChats, Owner: "u1"},
		ch.IncomingRequests("u1"): {Kind: KindIncomingRequests, Owner: "u1"},
		ch.Messages("u1--u2"):     {Kind: KindMessages, Owner: "u1--u2"},
	}
	for name, want := range cases {
		got, err := ch.Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	_, err := ch.Parse("other__user__u1__friends")
	assert.ErrorIs(t, err, ErrUnknownChannel)
	_, err = ch.Parse("test__user__u1__unknown")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestEventEnvelope(t *testing.T) {
	msg := model.Message{ID: "m1", SenderID: "u1", Text: "hi", Timestamp: 1700000000000}
	events := []Event{
		NewMessage{Message: msg},
		NewUnseenMessage{Message: model.UnseenMessage{Message: msg, SenderName: "Ann", SenderImage: "a.png"}},
		NewFriend{Friend: model.Friend{ID: "u2", Name: "Bob", Email: "bob@example.com"}},
		DenyFriend{},
		IncomingFriendRequest{Request: model.IncomingFriendRequest{SenderID: "u1", SenderEmail: "ann@example.com"}},
	}
	for _, ev := range events {
		raw, err := Encode(ev)
		require.NoError(t, err)
		got, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"typing","data":{}}`))
	assert.Error(t, err)
}
