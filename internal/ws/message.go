package ws

import (
	"encoding/json"

	"github.com/chatsync/internal/protocol"
)

type FrameType string

const (
	FrameSubscribe    FrameType = "subscribe"
	FrameUnsubscribe  FrameType = "unsubscribe"
	FrameSubscribed   FrameType = "subscribed"
	FrameUnsubscribed FrameType = "unsubscribed"
	FrameEvent        FrameType = "event"
	FrameError        FrameType = "error"
)

// IncomingFrame is what the client sends: a channel subscription change.
type IncomingFrame struct {
	Type    FrameType `json:"type"`
	Channel string    `json:"channel"`
}

// OutgoingFrame is what the server sends. Event frames carry the
// protocol envelope fields; control frames carry Type and Channel.
type OutgoingFrame struct {
	Type    FrameType          `json:"type"`
	Channel string             `json:"channel,omitempty"`
	Event   protocol.EventName `json:"event,omitempty"`
	Data    json.RawMessage    `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// EventFrame wraps a bus delivery for the wire.
func EventFrame(channel string, ev protocol.Event) (OutgoingFrame, error) {
	env, err := protocol.Wrap(channel, ev)
	if err != nil {
		return OutgoingFrame{}, err
	}
	return OutgoingFrame{Type: FrameEvent, Channel: env.Channel, Event: env.Event, Data: env.Data}, nil
}

// Envelope returns the protocol envelope of an event frame.
func (f OutgoingFrame) Envelope() protocol.Envelope {
	return protocol.Envelope{Channel: f.Channel, Event: f.Event, Data: f.Data}
}
