package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
	"github.com/chatsync/internal/repository"
)

var errCannotChat = newError(KindUnauthorized, "Unauthorized: You can't chat with this person")

// notifyTimeout ограничивает фоновую отправку push после ответа клиенту.
const notifyTimeout = 10 * time.Second

// Notifier получает уведомление о новом сообщении для офлайн-доставки (Web Push).
type Notifier interface {
	NotifyMessage(ctx context.Context, recipientID string, msg model.UnseenMessage) error
}

type ChatService struct {
	users    *repository.UserRepository
	graph    *repository.SocialGraph
	log      *repository.MessageLog
	pub      bus.Publisher
	channels protocol.Channels
	maxLen   int
	notifier Notifier
	now      func() time.Time
}

func NewChatService(users *repository.UserRepository, graph *repository.SocialGraph, log *repository.MessageLog, pub bus.Publisher, channels protocol.Channels, maxLen int) *ChatService {
	if maxLen <= 0 {
		maxLen = model.DefaultMaxMessageLength
	}
	return &ChatService{
		users: users, graph: graph, log: log, pub: pub, channels: channels,
		maxLen: maxLen,
		now:    time.Now,
	}
}

// SetNotifier подключает push-уведомления; nil отключает.
func (s *ChatService) SetNotifier(n Notifier) { s.notifier = n }

// SetClock подменяет часы (тесты).
func (s *ChatService) SetClock(now func() time.Time) { s.now = now }

// Send собирает сообщение от sender (новый id, текущее время) и добавляет его в переписку.
func (s *ChatService) Send(ctx context.Context, sender *model.User, chatID, text string) (*model.Message, error) {
	msg := &model.Message{
		ID:        uuid.NewString(),
		SenderID:  sender.ID,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.AppendMessage(ctx, chatID, msg, sender); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ChatService) validateMessage(msg *model.Message) error {
	if err := validate.Struct(msg); err != nil {
		return Validation("Invalid request payload", err)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return Validation("Invalid request payload", nil)
	}
	if utf8.RuneCountInString(msg.Text) > s.maxLen {
		return Validation("Message is too long", nil)
	}
	id, err := uuid.Parse(msg.ID)
	if err != nil || id.Version() != 4 {
		return Validation("Invalid message id", err)
	}
	return nil
}

// AppendMessage проверяет сообщение и права отправителя, публикует new_message
// в канал переписки и new_unseenMessage собеседнику, затем пишет в лог.
func (s *ChatService) AppendMessage(ctx context.Context, chatID string, msg *model.Message, sender *model.User) error {
	defer logger.DeferLogDuration("chat.AppendMessage", time.Now())()
	if err := s.validateMessage(msg); err != nil {
		return err
	}
	if sender == nil || sender.ID != msg.SenderID {
		return ErrUnauthorized
	}
	partner, ok := protocol.Partner(chatID, msg.SenderID)
	if !ok {
		return ErrUnauthorized
	}
	ab, ba, err := s.graph.Edges(ctx, msg.SenderID, partner)
	if err != nil {
		return Upstream("Internal Server Error", err)
	}
	if !ab || !ba {
		return errCannotChat
	}
	seen, err := s.log.Has(ctx, chatID, msg.ID)
	if err != nil {
		return Upstream("Internal Server Error", err)
	}
	if seen {
		return Validation("Invalid message id", nil)
	}

	if err := s.pub.Publish(ctx, s.channels.Messages(chatID), protocol.NewMessage{Message: *msg}); err != nil {
		return Upstream("Internal Server Error", err)
	}
	unseen := model.UnseenMessage{Message: *msg, SenderName: sender.Name, SenderImage: sender.Image}
	if err := s.pub.Publish(ctx, s.channels.Chats(partner), protocol.NewUnseenMessage{Message: unseen}); err != nil {
		return Upstream("Internal Server Error", err)
	}
	if err := s.log.Append(ctx, chatID, msg); err != nil {
		return Upstream("Internal Server Error", err)
	}

	if s.notifier != nil {
		s.notifyAsync(ctx, partner, unseen)
	}
	return nil
}

// notifyAsync шлёт push в фоне: ответ отправителю не ждёт push-сервис,
// а отмена запроса не отменяет уведомление.
func (s *ChatService) notifyAsync(ctx context.Context, recipientID string, msg model.UnseenMessage) {
	n := s.notifier
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := n.NotifyMessage(ctx, recipientID, msg); err != nil {
			logger.Errorf("chat.AppendMessage push %s: %v", recipientID, err)
		}
	}()
}

// History возвращает переписку по возрастанию времени. viewerID должен быть участником.
// Любая ошибка хранилища или одна битая запись — ErrNotFound для всего вызова.
func (s *ChatService) History(ctx context.Context, viewerID, chatID string) ([]model.Message, error) {
	if _, ok := protocol.Partner(chatID, viewerID); !ok {
		return nil, ErrUnauthorized
	}
	msgs, err := s.log.History(ctx, chatID)
	if err != nil {
		logger.Errorf("chat.History %s: %v", chatID, err)
		return nil, &Error{Kind: KindNotFound, Msg: ErrNotFound.Msg, Err: err}
	}
	for i := range msgs {
		if err := validate.Struct(&msgs[i]); err != nil {
			logger.Errorf("chat.History %s: entry %d: %v", chatID, i, err)
			return nil, &Error{Kind: KindNotFound, Msg: ErrNotFound.Msg, Err: err}
		}
	}
	return msgs, nil
}

// RecentChats — друзья пользователя с последним сообщением каждой переписки.
func (s *ChatService) RecentChats(ctx context.Context, userID string) ([]model.ChatPreview, error) {
	defer logger.DeferLogDuration("chat.RecentChats", time.Now())()
	ids, err := s.graph.Friends(ctx, userID)
	if err != nil {
		return nil, Upstream("Internal Server Error", err)
	}
	out := make([]model.ChatPreview, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			u, err := s.users.GetByID(gctx, id)
			if err != nil {
				return err
			}
			cid := protocol.ConversationID(userID, id)
			last, err := s.log.Latest(gctx, cid)
			if err != nil {
				return err
			}
			out[i] = model.ChatPreview{Friend: u.ToFriend(), ChatID: cid, LastMessage: last}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Upstream("Internal Server Error", err)
	}
	return out, nil
}
