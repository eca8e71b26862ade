package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/storage"
)

// ErrCorruptLog — запись в логе чата не разбирается как сообщение.
var ErrCorruptLog = errors.New("corrupt message log")

func MessagesKey(chatID string) string   { return "chat:" + chatID + ":messages" }
func MessageIDsKey(chatID string) string { return "chat:" + chatID + ":message_ids" }
func messageSeqKey(chatID string) string { return "chat:" + chatID + ":seq" }

// seqWidth — ширина hex-префикса member: при равных timestamp Redis сортирует по member,
// так что префикс с порядковым номером сохраняет порядок вставки.
const seqWidth = 16

// MessageLog — лог сообщений переписки: sorted set, score = timestamp,
// member = "<seq hex>|<JSON сообщения>". Id сообщений хранятся отдельным множеством.
type MessageLog struct {
	store storage.Store
}

func NewMessageLog(store storage.Store) *MessageLog {
	return &MessageLog{store: store}
}

func (l *MessageLog) Append(ctx context.Context, chatID string, msg *model.Message) error {
	defer logger.DeferLogDuration("messageLog.Append", time.Now())()
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("messageLog.Append encode: %w", err)
	}
	seq, err := l.store.Incr(ctx, messageSeqKey(chatID))
	if err != nil {
		return fmt.Errorf("messageLog.Append seq: %w", err)
	}
	member := fmt.Sprintf("%0*x|%s", seqWidth, seq, raw)
	if err := l.store.Exec(ctx,
		storage.ZAdd(MessagesKey(chatID), float64(msg.Timestamp), member),
		storage.SAdd(MessageIDsKey(chatID), msg.ID),
	); err != nil {
		return fmt.Errorf("messageLog.Append: %w", err)
	}
	return nil
}

// Has — есть ли в переписке сообщение с таким id.
func (l *MessageLog) Has(ctx context.Context, chatID, id string) (bool, error) {
	ok, err := l.store.SIsMember(ctx, MessageIDsKey(chatID), id)
	if err != nil {
		return false, fmt.Errorf("messageLog.Has %s: %w", chatID, err)
	}
	return ok, nil
}

// History возвращает весь лог по возрастанию timestamp.
// Одна битая запись — ошибка ErrCorruptLog для всего вызова.
func (l *MessageLog) History(ctx context.Context, chatID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("messageLog.History", time.Now())()
	return l.rangeDecode(ctx, chatID, 0, -1)
}

// Latest — последнее сообщение или nil, если переписка пуста.
func (l *MessageLog) Latest(ctx context.Context, chatID string) (*model.Message, error) {
	msgs, err := l.rangeDecode(ctx, chatID, -1, -1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (l *MessageLog) rangeDecode(ctx context.Context, chatID string, start, stop int64) ([]model.Message, error) {
	raws, err := l.store.ZRange(ctx, MessagesKey(chatID), start, stop)
	if err != nil {
		return nil, fmt.Errorf("messageLog.ZRange %s: %w", chatID, err)
	}
	out := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		var m model.Message
		if err := json.Unmarshal([]byte(memberBody(raw)), &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLog, chatID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func memberBody(raw string) string {
	prefix, body, ok := strings.Cut(raw, "|")
	if !ok || len(prefix) != seqWidth || strings.ContainsAny(prefix, "{\"") {
		return raw
	}
	return body
}
