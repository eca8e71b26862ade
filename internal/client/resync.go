package client

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chatsync/internal/model"
)

// Snapshot — состояние с сервера, которым пересобираются машины после обрыва соединения.
type Snapshot struct {
	Friends      []model.Friend
	Requests     []model.IncomingFriendRequest
	PendingCount int64
	History      map[string][]model.Message
}

// Source отдаёт снимок; chatIDs — переписки, история которых нужна.
type Source interface {
	Snapshot(ctx context.Context, chatIDs ...string) (*Snapshot, error)
}

type Reseeder interface {
	Reseed(s *Snapshot)
}

// Snapshot собирает снимок параллельными запросами.
func (a *API) Snapshot(ctx context.Context, chatIDs ...string) (*Snapshot, error) {
	s := &Snapshot{History: make(map[string][]model.Message, len(chatIDs))}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		friends, err := a.Friends(gctx)
		s.Friends = friends
		return err
	})
	g.Go(func() error {
		reqs, count, err := a.Requests(gctx)
		s.Requests, s.PendingCount = reqs, count
		return err
	})
	for _, cid := range chatIDs {
		cid := cid
		g.Go(func() error {
			msgs, err := a.History(gctx, cid)
			if err != nil {
				return err
			}
			mu.Lock()
			s.History[cid] = msgs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

// Resync берёт один снимок и пересобирает им все машины. Ошибка снимка оставляет машины как есть.
func Resync(ctx context.Context, src Source, machines ...Reseeder) error {
	var chatIDs []string
	for _, m := range machines {
		if v, ok := m.(*ChatView); ok {
			chatIDs = append(chatIDs, v.ChatID())
		}
	}
	s, err := src.Snapshot(ctx, chatIDs...)
	if err != nil {
		return err
	}
	for _, m := range machines {
		m.Reseed(s)
	}
	return nil
}
