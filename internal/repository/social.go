package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/storage"
)

func FriendsKey(userID string) string  { return "user:" + userID + ":friends" }
func RequestsKey(userID string) string { return "user:" + userID + ":incoming_friend_requests" }

// SocialGraph — дружба и входящие заявки.
// Дружба симметрична: a ∈ friends(b) ⇔ b ∈ friends(a). Заявка хранится у получателя.
type SocialGraph struct {
	store storage.Store
}

func NewSocialGraph(store storage.Store) *SocialGraph {
	return &SocialGraph{store: store}
}

// AreFriends проверяет ребро a → b.
func (g *SocialGraph) AreFriends(ctx context.Context, a, b string) (bool, error) {
	ok, err := g.store.SIsMember(ctx, FriendsKey(a), b)
	if err != nil {
		return false, fmt.Errorf("socialGraph.AreFriends: %w", err)
	}
	return ok, nil
}

// Edges возвращает оба направления ребра; ab != ba означает полуребро.
func (g *SocialGraph) Edges(ctx context.Context, a, b string) (ab, ba bool, err error) {
	if ab, err = g.AreFriends(ctx, a, b); err != nil {
		return false, false, err
	}
	if ba, err = g.AreFriends(ctx, b, a); err != nil {
		return false, false, err
	}
	return ab, ba, nil
}

// HalfLinked — ровно одно направление дружбы присутствует.
func (g *SocialGraph) HalfLinked(ctx context.Context, a, b string) (bool, error) {
	ab, ba, err := g.Edges(ctx, a, b)
	if err != nil {
		return false, err
	}
	return ab != ba, nil
}

// IsPending — есть ли заявка от sender у recipient.
func (g *SocialGraph) IsPending(ctx context.Context, recipient, sender string) (bool, error) {
	ok, err := g.store.SIsMember(ctx, RequestsKey(recipient), sender)
	if err != nil {
		return false, fmt.Errorf("socialGraph.IsPending: %w", err)
	}
	return ok, nil
}

func (g *SocialGraph) AddPending(ctx context.Context, recipient, sender string) error {
	if err := g.store.SAdd(ctx, RequestsKey(recipient), sender); err != nil {
		return fmt.Errorf("socialGraph.AddPending: %w", err)
	}
	return nil
}

func (g *SocialGraph) RemovePending(ctx context.Context, recipient, sender string) error {
	if err := g.store.SRem(ctx, RequestsKey(recipient), sender); err != nil {
		return fmt.Errorf("socialGraph.RemovePending: %w", err)
	}
	return nil
}

// Friends — id друзей пользователя.
func (g *SocialGraph) Friends(ctx context.Context, userID string) ([]string, error) {
	defer logger.DeferLogDuration("socialGraph.Friends", time.Now())()
	ids, err := g.store.SMembers(ctx, FriendsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("socialGraph.Friends: %w", err)
	}
	return ids, nil
}

// Pending — id отправителей входящих заявок.
func (g *SocialGraph) Pending(ctx context.Context, userID string) ([]string, error) {
	ids, err := g.store.SMembers(ctx, RequestsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("socialGraph.Pending: %w", err)
	}
	return ids, nil
}

func (g *SocialGraph) PendingCount(ctx context.Context, userID string) (int64, error) {
	n, err := g.store.SCard(ctx, RequestsKey(userID))
	if err != nil {
		return 0, fmt.Errorf("socialGraph.PendingCount: %w", err)
	}
	return n, nil
}

// Link принимает заявку requester → accepter: оба ребра и удаление заявки одной транзакцией.
func (g *SocialGraph) Link(ctx context.Context, accepter, requester string) error {
	defer logger.DeferLogDuration("socialGraph.Link", time.Now())()
	err := g.store.Exec(ctx,
		storage.SAdd(FriendsKey(accepter), requester),
		storage.SAdd(FriendsKey(requester), accepter),
		storage.SRem(RequestsKey(accepter), requester),
	)
	if err != nil {
		return fmt.Errorf("socialGraph.Link: %w", err)
	}
	return nil
}

// Repair достраивает полуребро до симметричной дружбы.
func (g *SocialGraph) Repair(ctx context.Context, a, b string) error {
	err := g.store.Exec(ctx,
		storage.SAdd(FriendsKey(a), b),
		storage.SAdd(FriendsKey(b), a),
	)
	if err != nil {
		return fmt.Errorf("socialGraph.Repair: %w", err)
	}
	return nil
}
