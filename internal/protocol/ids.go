// Package protocol describes the realtime contract shared by the server and
// its clients: conversation ids, channel names and the event vocabulary.
package protocol

import (
	"errors"
	"sort"
	"strings"
)

// ConversationSeparator joins the two participant ids of a direct chat.
const ConversationSeparator = "--"

var ErrInvalidConversation = errors.New("invalid conversation id")

// ConversationID returns the id both participants compute for their chat,
// independent of argument order.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ConversationSeparator + ids[1]
}

// ParseConversationID splits a conversation id into its two participants.
func ParseConversationID(cid string) (string, string, error) {
	a, b, ok := strings.Cut(cid, ConversationSeparator)
	if !ok || a == "" || b == "" || strings.Contains(b, ConversationSeparator) {
		return "", "", ErrInvalidConversation
	}
	return a, b, nil
}

// Partner returns the other participant of cid as seen by userID.
// ok is false when userID does not take part in the conversation.
func Partner(cid, userID string) (partner string, ok bool) {
	a, b, err := ParseConversationID(cid)
	if err != nil {
		return "", false
	}
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}
