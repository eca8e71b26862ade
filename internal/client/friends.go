package client

import (
	"slices"
	"strings"
	"sync"

	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
)

// FriendList — список активных чатов: начальный список плюс new_friend. Повтор события по тому же id не дублирует запись.
type FriendList struct {
	userID string

	mu      sync.Mutex
	friends []model.Friend
}

func NewFriendList(userID string, initial []model.Friend) *FriendList {
	l := &FriendList{userID: userID}
	l.seed(initial)
	return l
}

func (l *FriendList) Channels(c protocol.Channels) []string {
	return []string{c.Friends(l.userID)}
}

func (l *FriendList) Handle(_ string, ev protocol.Event) {
	e, ok := ev.(protocol.NewFriend)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(e.Friend)
}

func (l *FriendList) add(f model.Friend) {
	if slices.ContainsFunc(l.friends, func(x model.Friend) bool { return x.ID == f.ID }) {
		return
	}
	l.friends = append(l.friends, f)
}

func (l *FriendList) seed(friends []model.Friend) {
	l.friends = nil
	for _, f := range friends {
		l.add(f)
	}
}

// Friends — в порядке поступления.
func (l *FriendList) Friends() []model.Friend {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Friend(nil), l.friends...)
}

// Sorted — по имени без учёта регистра, при равенстве — в порядке поступления.
func (l *FriendList) Sorted() []model.Friend {
	out := l.Friends()
	slices.SortStableFunc(out, func(a, b model.Friend) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

func (l *FriendList) Reseed(s *Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seed(s.Friends)
}

// RequestBadge — счётчик заявок в сайдбаре. Считает только дельты от снимка и не опускается ниже нуля;
// пропущенные при обрыве события исправляет только новый снимок (Reseed).
type RequestBadge struct {
	userID string

	mu    sync.Mutex
	count int64
}

func NewRequestBadge(userID string, snapshot int64) *RequestBadge {
	return &RequestBadge{userID: userID, count: max(snapshot, 0)}
}

func (b *RequestBadge) Channels(c protocol.Channels) []string {
	return []string{c.IncomingRequests(b.userID), c.Friends(b.userID)}
}

func (b *RequestBadge) Handle(_ string, ev protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch ev.(type) {
	case protocol.IncomingFriendRequest:
		b.count++
	case protocol.NewFriend, protocol.DenyFriend:
		if b.count > 0 {
			b.count--
		}
	}
}

func (b *RequestBadge) Count() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *RequestBadge) Reseed(s *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count = max(s.PendingCount, 0)
}

// RequestList — страница входящих заявок. Принятая или отклонённая заявка убирается локально через Remove:
// deny_friend не несёт отправителя.
type RequestList struct {
	userID string

	mu       sync.Mutex
	requests []model.IncomingFriendRequest
}

func NewRequestList(userID string, initial []model.IncomingFriendRequest) *RequestList {
	l := &RequestList{userID: userID}
	l.seed(initial)
	return l
}

func (l *RequestList) Channels(c protocol.Channels) []string {
	return []string{c.IncomingRequests(l.userID)}
}

func (l *RequestList) Handle(_ string, ev protocol.Event) {
	e, ok := ev.(protocol.IncomingFriendRequest)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(e.Request)
}

func (l *RequestList) add(r model.IncomingFriendRequest) {
	if slices.ContainsFunc(l.requests, func(x model.IncomingFriendRequest) bool { return x.SenderID == r.SenderID }) {
		return
	}
	l.requests = append(l.requests, r)
}

func (l *RequestList) seed(reqs []model.IncomingFriendRequest) {
	l.requests = nil
	for _, r := range reqs {
		l.add(r)
	}
}

// Remove убирает заявку senderID после accept/deny.
func (l *RequestList) Remove(senderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = slices.DeleteFunc(l.requests, func(x model.IncomingFriendRequest) bool { return x.SenderID == senderID })
}

func (l *RequestList) Requests() []model.IncomingFriendRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.IncomingFriendRequest(nil), l.requests...)
}

func (l *RequestList) Reseed(s *Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seed(s.Requests)
}
