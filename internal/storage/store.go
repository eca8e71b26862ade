package storage

import (
	"context"
	"errors"
)

// ErrNil — ключа нет (аналог redis.Nil).
var ErrNil = errors.New("storage: nil")

// OpKind — команда внутри атомарного пакета Exec.
type OpKind int

const (
	OpSAdd OpKind = iota + 1
	OpSRem
	OpZAdd
)

// Op — одна мутация пакета. Score используется только для OpZAdd.
type Op struct {
	Kind   OpKind
	Key    string
	Member string
	Score  float64
}

func SAdd(key, member string) Op { return Op{Kind: OpSAdd, Key: key, Member: member} }
func SRem(key, member string) Op { return Op{Kind: OpSRem, Key: key, Member: member} }
func ZAdd(key string, score float64, member string) Op {
	return Op{Kind: OpZAdd, Key: key, Member: member, Score: score}
}

// Store — key-value хранилище: строки, множества, sorted set.
// Реализации: redis.Client (прод), memory.Client (для -dev и тестов).
// Каждая команда атомарна сама по себе; Exec применяет несколько мутаций одной транзакцией.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	// Incr — атомарный счётчик (INCR): отсутствующий ключ считается 0.
	Incr(ctx context.Context, key string) (int64, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRange — индексы как в Redis: отрицательные считаются с конца, порядок по возрастанию score.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Exec(ctx context.Context, ops ...Op) error
	Close() error
}
