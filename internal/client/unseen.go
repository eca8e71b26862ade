package client

import (
	"sync"

	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
)

// UnseenTracker — непрочитанные сообщения для бейджей сайдбара и тостов.
// Список хранится от новых к старым; счётчик по другу считается из списка.
type UnseenTracker struct {
	userID string
	notify func(model.UnseenMessage)

	mu     sync.Mutex
	active string
	unseen []model.UnseenMessage
}

// NewUnseenTracker — трекер пользователя userID. notify (может быть nil) вызывается для каждого нового непрочитанного.
func NewUnseenTracker(userID string, notify func(model.UnseenMessage)) *UnseenTracker {
	return &UnseenTracker{userID: userID, notify: notify}
}

// Channels — каналы, которые слушает трекер.
func (u *UnseenTracker) Channels(c protocol.Channels) []string {
	return []string{c.Chats(u.userID)}
}

// Handle: сообщение из открытой сейчас переписки не попадает ни в список, ни в уведомления.
func (u *UnseenTracker) Handle(_ string, ev protocol.Event) {
	e, ok := ev.(protocol.NewUnseenMessage)
	if !ok {
		return
	}
	u.mu.Lock()
	if u.viewing(e.Message.SenderID) {
		u.mu.Unlock()
		return
	}
	u.unseen = append([]model.UnseenMessage{e.Message}, u.unseen...)
	u.mu.Unlock()

	if u.notify != nil {
		u.notify(e.Message)
	}
}

func (u *UnseenTracker) viewing(senderID string) bool {
	partner, ok := protocol.Partner(u.active, u.userID)
	return ok && partner == senderID
}

// Navigate переключает активный вид. Переход в переписку убирает все записи её собеседника,
// включая накопленные до перехода. Пустой cid — вид вне переписок.
func (u *UnseenTracker) Navigate(cid string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = cid
	partner, ok := protocol.Partner(cid, u.userID)
	if !ok {
		return
	}
	kept := u.unseen[:0]
	for _, m := range u.unseen {
		if m.SenderID != partner {
			kept = append(kept, m)
		}
	}
	clear(u.unseen[len(kept):])
	u.unseen = kept
}

// Count — непрочитанные от friendID.
func (u *UnseenTracker) Count(friendID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, m := range u.unseen {
		if m.SenderID == friendID {
			n++
		}
	}
	return n
}

// Unseen — копия списка, от новых к старым.
func (u *UnseenTracker) Unseen() []model.UnseenMessage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]model.UnseenMessage(nil), u.unseen...)
}

// Reseed: сервер не хранит непрочитанные, после перезагрузки список пуст.
func (u *UnseenTracker) Reseed(*Snapshot) {
	u.mu.Lock()
	u.unseen = nil
	u.mu.Unlock()
}
