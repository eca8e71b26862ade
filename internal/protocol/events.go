package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/chatsync/internal/model"
)

type EventName string

const (
	EventNewMessage            EventName = "new_message"
	EventNewUnseenMessage      EventName = "new_unseenMessage"
	EventNewFriend             EventName = "new_friend"
	EventDenyFriend            EventName = "deny_friend"
	EventIncomingFriendRequest EventName = "incoming_friend_requests"
)

// Event is the closed set of realtime events. Consumers switch on the
// concrete type instead of binding handlers to names.
type Event interface {
	Name() EventName
	isEvent()
}

// NewMessage is published on the conversation channel.
type NewMessage struct {
	Message model.Message
}

// NewUnseenMessage is published on the recipient's chats channel.
type NewUnseenMessage struct {
	Message model.UnseenMessage
}

// NewFriend is published on each party's friends channel and carries the counterpart.
type NewFriend struct {
	Friend model.Friend
}

// DenyFriend is a signal without data.
type DenyFriend struct{}

// IncomingFriendRequest is published on the recipient's request channel.
type IncomingFriendRequest struct {
	Request model.IncomingFriendRequest
}

func (NewMessage) Name() EventName            { return EventNewMessage }
func (NewUnseenMessage) Name() EventName      { return EventNewUnseenMessage }
func (NewFriend) Name() EventName             { return EventNewFriend }
func (DenyFriend) Name() EventName            { return EventDenyFriend }
func (IncomingFriendRequest) Name() EventName { return EventIncomingFriendRequest }

func (NewMessage) isEvent()            {}
func (NewUnseenMessage) isEvent()      {}
func (NewFriend) isEvent()             {}
func (DenyFriend) isEvent()            {}
func (IncomingFriendRequest) isEvent() {}

// Envelope is the wire form of an event. Channel is filled on websocket
// frames and left empty on the bus, where the channel is implicit.
type Envelope struct {
	Channel string          `json:"channel,omitempty"`
	Event   EventName       `json:"event"`
	Data    json.RawMessage `json:"data"`
}

func payload(ev Event) any {
	switch e := ev.(type) {
	case NewMessage:
		return e.Message
	case NewUnseenMessage:
		return e.Message
	case NewFriend:
		return e.Friend
	case DenyFriend:
		return struct{}{}
	case IncomingFriendRequest:
		return e.Request
	}
	return nil
}

// Wrap builds the envelope of ev for channel.
func Wrap(channel string, ev Event) (Envelope, error) {
	data, err := json.Marshal(payload(ev))
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return Envelope{Channel: channel, Event: ev.Name(), Data: data}, nil
}

// Encode returns the JSON envelope of ev without a channel.
func Encode(ev Event) ([]byte, error) {
	env, err := Wrap("", ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses a JSON envelope produced by Encode.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Unwrap()
}

// Unwrap decodes the payload into the variant named by env.Event.
func (env Envelope) Unwrap() (Event, error) {
	var (
		ev  Event
		err error
	)
	switch env.Event {
	case EventNewMessage:
		var e NewMessage
		err = json.Unmarshal(env.Data, &e.Message)
		ev = e
	case EventNewUnseenMessage:
		var e NewUnseenMessage
		err = json.Unmarshal(env.Data, &e.Message)
		ev = e
	case EventNewFriend:
		var e NewFriend
		err = json.Unmarshal(env.Data, &e.Friend)
		ev = e
	case EventDenyFriend:
		ev = DenyFriend{}
	case EventIncomingFriendRequest:
		var e IncomingFriendRequest
		err = json.Unmarshal(env.Data, &e.Request)
		ev = e
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return ev, nil
}
