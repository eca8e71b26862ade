package client

import (
	"sync"

	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
)

// ChatView — открытая переписка: история с сервера плюс new_message. Сообщение с уже известным id не добавляется.
type ChatView struct {
	chatID string

	mu       sync.Mutex
	messages []model.Message
	seen     map[string]struct{}
}

func NewChatView(chatID string, history []model.Message) *ChatView {
	v := &ChatView{chatID: chatID}
	v.seed(history)
	return v
}

func (v *ChatView) ChatID() string { return v.chatID }

func (v *ChatView) Channels(c protocol.Channels) []string {
	return []string{c.Messages(v.chatID)}
}

func (v *ChatView) Handle(_ string, ev protocol.Event) {
	e, ok := ev.(protocol.NewMessage)
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.add(e.Message)
}

func (v *ChatView) add(m model.Message) {
	if _, dup := v.seen[m.ID]; dup {
		return
	}
	v.seen[m.ID] = struct{}{}
	v.messages = append(v.messages, m)
}

func (v *ChatView) seed(history []model.Message) {
	v.messages = nil
	v.seen = make(map[string]struct{}, len(history))
	for _, m := range history {
		v.add(m)
	}
}

// Messages — в порядке поступления (история по возрастанию времени, затем live).
func (v *ChatView) Messages() []model.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Message(nil), v.messages...)
}

// Reseed заменяет содержимое историей из снимка, если снимок её содержит.
func (v *ChatView) Reseed(s *Snapshot) {
	history, ok := s.History[v.chatID]
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seed(history)
}
