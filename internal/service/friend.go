package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
	"github.com/chatsync/internal/repository"
)

var validate = validator.New()

// FriendService — заявки в друзья и дружба.
// События публикуются до записи: ответ API остаётся источником истины при перезагрузке страницы.
type FriendService struct {
	users    *repository.UserRepository
	graph    *repository.SocialGraph
	pub      bus.Publisher
	channels protocol.Channels
}

func NewFriendService(users *repository.UserRepository, graph *repository.SocialGraph, pub bus.Publisher, channels protocol.Channels) *FriendService {
	return &FriendService{users: users, graph: graph, pub: pub, channels: channels}
}

// AreFriends — ребро from → to.
func (s *FriendService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	ok, err := s.graph.AreFriends(ctx, a, b)
	if err != nil {
		return false, Upstream("Invalid request", err)
	}
	return ok, nil
}

// SendRequest отправляет заявку пользователю с указанным email.
func (s *FriendService) SendRequest(ctx context.Context, from *model.User, email string) error {
	defer logger.DeferLogDuration("friend.SendRequest", time.Now())()
	if err := validate.Var(email, "required,email"); err != nil {
		return Validation("Invalid request payload", err)
	}
	toID, err := s.users.IDByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnknownRecipient
	}
	if err != nil {
		return Upstream("Invalid request", err)
	}
	if toID == from.ID {
		return ErrSelfRequest
	}
	pending, err := s.graph.IsPending(ctx, toID, from.ID)
	if err != nil {
		return Upstream("Invalid request", err)
	}
	if pending {
		return ErrAlreadyRequested
	}
	friends, err := s.graph.AreFriends(ctx, from.ID, toID)
	if err != nil {
		return Upstream("Invalid request", err)
	}
	if friends {
		return ErrAlreadyFriends
	}

	ev := protocol.IncomingFriendRequest{Request: model.IncomingFriendRequest{SenderID: from.ID, SenderEmail: from.Email}}
	if err := s.pub.Publish(ctx, s.channels.IncomingRequests(toID), ev); err != nil {
		return Upstream("Invalid request", err)
	}
	if err := s.graph.AddPending(ctx, toID, from.ID); err != nil {
		return Upstream("Invalid request", err)
	}
	logger.Infof("friend request %s -> %s", from.ID, toID)
	return nil
}

// Accept принимает заявку requesterID. Три мутации идут одной транзакцией
// параллельно с двумя публикациями new_friend.
func (s *FriendService) Accept(ctx context.Context, accepterID, requesterID string) error {
	defer logger.DeferLogDuration("friend.Accept", time.Now())()
	if err := validate.Var(requesterID, "required"); err != nil {
		return Validation("Invalid request payload", err)
	}
	ab, ba, err := s.graph.Edges(ctx, accepterID, requesterID)
	if err != nil {
		return Upstream("Invalid request", err)
	}
	if ab || ba {
		if ab != ba {
			// полуребро: достраиваем и отвечаем как на повторный accept
			logger.Errorf("friend.Accept: half edge %s/%s, repairing", accepterID, requesterID)
			if err := s.graph.Link(ctx, accepterID, requesterID); err != nil {
				return Upstream("Invalid request", err)
			}
		}
		return ErrAlreadyFriends
	}
	pending, err := s.graph.IsPending(ctx, accepterID, requesterID)
	if err != nil {
		return Upstream("Invalid request", err)
	}
	if !pending {
		return ErrNoSuchRequest
	}

	var accepter, requester *model.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accepter, err = s.users.GetByID(gctx, accepterID)
		return err
	})
	g.Go(func() (err error) {
		requester, err = s.users.GetByID(gctx, requesterID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Upstream("Invalid request", err)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pub.Publish(gctx, s.channels.Friends(requesterID), protocol.NewFriend{Friend: accepter.ToFriend()})
	})
	g.Go(func() error {
		return s.pub.Publish(gctx, s.channels.Friends(accepterID), protocol.NewFriend{Friend: requester.ToFriend()})
	})
	g.Go(func() error {
		return s.graph.Link(gctx, accepterID, requesterID)
	})
	if err := g.Wait(); err != nil {
		return Upstream("Invalid request", err)
	}
	logger.Infof("friend request accepted %s <- %s", accepterID, requesterID)
	return nil
}

// RepairFriendship достраивает симметрию дружбы, если найдено одно направление.
// Возвращает true, если ремонт понадобился.
func (s *FriendService) RepairFriendship(ctx context.Context, a, b string) (bool, error) {
	half, err := s.graph.HalfLinked(ctx, a, b)
	if err != nil {
		return false, Upstream("Invalid request", err)
	}
	if !half {
		return false, nil
	}
	if err := s.graph.Repair(ctx, a, b); err != nil {
		return false, Upstream("Invalid request", err)
	}
	logger.Infof("friendship repaired %s/%s", a, b)
	return true, nil
}

// Deny отклоняет заявку: сигнал deny_friend без данных, затем удаление заявки.
func (s *FriendService) Deny(ctx context.Context, recipientID, requesterID string) error {
	if err := validate.Var(requesterID, "required"); err != nil {
		return Validation("Invalid request payload", err)
	}
	pending, err := s.graph.IsPending(ctx, recipientID, requesterID)
	if err != nil {
		return Upstream("Invalid request", err)
	}
	if !pending {
		return ErrNoSuchRequest
	}
	if err := s.pub.Publish(ctx, s.channels.IncomingRequests(recipientID), protocol.DenyFriend{}); err != nil {
		return Upstream("Invalid request", err)
	}
	if err := s.graph.RemovePending(ctx, recipientID, requesterID); err != nil {
		return Upstream("Invalid request", err)
	}
	return nil
}

// Friends — профили друзей (страница чатов и сайдбар).
func (s *FriendService) Friends(ctx context.Context, userID string) ([]model.Friend, error) {
	ids, err := s.graph.Friends(ctx, userID)
	if err != nil {
		return nil, Upstream("Internal Server Error", err)
	}
	return s.profiles(ctx, ids)
}

// IncomingRequests — входящие заявки с email отправителей.
func (s *FriendService) IncomingRequests(ctx context.Context, userID string) ([]model.IncomingFriendRequest, error) {
	ids, err := s.graph.Pending(ctx, userID)
	if err != nil {
		return nil, Upstream("Internal Server Error", err)
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.IncomingFriendRequest, len(profiles))
	for i, p := range profiles {
		out[i] = model.IncomingFriendRequest{SenderID: p.ID, SenderEmail: p.Email}
	}
	return out, nil
}

// PendingCount — снимок счётчика заявок для бейджа.
func (s *FriendService) PendingCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.graph.PendingCount(ctx, userID)
	if err != nil {
		return 0, Upstream("Internal Server Error", err)
	}
	return n, nil
}

func (s *FriendService) profiles(ctx context.Context, ids []string) ([]model.Friend, error) {
	out := make([]model.Friend, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			u, err := s.users.GetByID(gctx, id)
			if err != nil {
				return err
			}
			out[i] = u.ToFriend()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Upstream("Internal Server Error", err)
	}
	return out, nil
}
