package protocol

import (
	"errors"
	"strings"
)

// DefaultNamespace prefixes every channel name when no namespace is configured.
const DefaultNamespace = "chatsync"

const keySep = "__"

var ErrUnknownChannel = errors.New("unknown channel")

// ChannelKind is the single semantic category of events a channel carries.
type ChannelKind string

const (
	KindFriends          ChannelKind = "friends"
	KindChats            ChannelKind = "chats"
	KindIncomingRequests ChannelKind = "incoming_friend_requests"
	KindMessages         ChannelKind = "messages"
)

// Scope is the entity a channel belongs to, recovered by Channels.Parse.
// For KindMessages Owner holds the conversation id, otherwise the user id.
type Scope struct {
	Kind  ChannelKind
	Owner string
}

// Channels builds namespaced channel names. The store key form
// (user:<id>:friends) is kept; ':' is replaced so names stay valid on
// brokers that reserve it.
type Channels struct {
	Namespace string
}

func NewChannels(namespace string) Channels {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Channels{Namespace: namespace}
}

func (c Channels) key(k string) string {
	return c.Namespace + keySep + strings.ReplaceAll(k, ":", keySep)
}

func (c Channels) Friends(userID string) string {
	return c.key("user:" + userID + ":" + string(KindFriends))
}

func (c Channels) Chats(userID string) string {
	return c.key("user:" + userID + ":" + string(KindChats))
}

func (c Channels) IncomingRequests(userID string) string {
	return c.key("user:" + userID + ":" + string(KindIncomingRequests))
}

func (c Channels) Messages(cid string) string {
	return c.key("chat:" + cid + ":" + string(KindMessages))
}

// UserChannels lists every personal channel of userID.
func (c Channels) UserChannels(userID string) []string {
	return []string{c.Friends(userID), c.Chats(userID), c.IncomingRequests(userID)}
}

// Parse recovers the scope of a channel built by c.
func (c Channels) Parse(channel string) (Scope, error) {
	rest, ok := strings.CutPrefix(channel, c.Namespace+keySep)
	if !ok {
		return Scope{}, ErrUnknownChannel
	}
	if owner, ok := cutBoth(rest, "chat"+keySep, keySep+string(KindMessages)); ok {
		return Scope{Kind: KindMessages, Owner: owner}, nil
	}
	for _, kind := range []ChannelKind{KindIncomingRequests, KindFriends, KindChats} {
		if owner, ok := cutBoth(rest, "user"+keySep, keySep+string(kind)); ok {
			return Scope{Kind: kind, Owner: owner}, nil
		}
	}
	return Scope{}, ErrUnknownChannel
}

func cutBoth(s, prefix, suffix string) (string, bool) {
	s, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return "", false
	}
	s, ok = strings.CutSuffix(s, suffix)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
