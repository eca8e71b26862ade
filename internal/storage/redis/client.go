package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chatsync/internal/storage"
)

type Client struct {
	cli *redis.Client
}

// New подключается по URL хранилища; token (если задан) перекрывает пароль из URL.
func New(ctx context.Context, url, token string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Raw отдаёт клиент go-redis для шины событий.
func (c *Client) Raw() *redis.Client { return c.cli }

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.cli.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNil
	}
	return val, err
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	return c.cli.Set(ctx, key, value, 0).Err()
}

func (c *Client) SAdd(ctx context.Context, key, member string) error {
	return c.cli.SAdd(ctx, key, member).Err()
}

func (c *Client) SRem(ctx context.Context, key, member string) error {
	return c.cli.SRem(ctx, key, member).Err()
}

func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return c.cli.SIsMember(ctx, key, member).Result()
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.cli.SMembers(ctx, key).Result()
}

func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	return c.cli.SCard(ctx, key).Result()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.cli.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.cli.ZRange(ctx, key, start, stop).Result()
}

// Exec выполняет мутации в MULTI/EXEC: либо применяются все, либо ни одна.
func (c *Client) Exec(ctx context.Context, ops ...storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := c.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case storage.OpSAdd:
				pipe.SAdd(ctx, op.Key, op.Member)
			case storage.OpSRem:
				pipe.SRem(ctx, op.Key, op.Member)
			case storage.OpZAdd:
				pipe.ZAdd(ctx, op.Key, redis.Z{Score: op.Score, Member: op.Member})
			default:
				return fmt.Errorf("redis exec: unknown op %d", op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}
