package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/chatsync/internal/storage"
)

type zmember struct {
	member string
	score  float64
	seq    uint64
}

// Client — хранилище в памяти процесса для -dev без Redis и для тестов.
// При равных score порядок в sorted set — порядок вставки.
type Client struct {
	mu      sync.RWMutex
	strings map[string]string
	sets    map[string]map[string]struct{}
	zsets   map[string][]zmember
	seq     uint64
}

func New() *Client {
	return &Client{
		strings: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string][]zmember),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.strings[key]
	if !ok {
		return "", storage.ErrNil
	}
	return v, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strings[key] = value
	return nil
}

func (c *Client) SAdd(ctx context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sadd(key, member)
	return nil
}

func (c *Client) SRem(ctx context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.srem(key, member)
	return nil
}

func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sets[key][member]
	return ok, nil
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.sets[key])), nil
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if v, ok := c.strings[key]; ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("memory incr %s: value is not an integer", key)
		}
		n = parsed
	}
	n++
	c.strings[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zadd(key, score, member)
	return nil
}

func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	z := c.zsets[key]
	n := int64(len(z))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []string{}, nil
	}
	out := make([]string, 0, stop-start+1)
	for _, m := range z[start : stop+1] {
		out = append(out, m.member)
	}
	return out, nil
}

// Exec применяет все мутации под одной блокировкой.
func (c *Client) Exec(ctx context.Context, ops ...storage.Op) error {
	for _, op := range ops {
		switch op.Kind {
		case storage.OpSAdd, storage.OpSRem, storage.OpZAdd:
		default:
			return fmt.Errorf("memory exec: unknown op %d", op.Kind)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case storage.OpSAdd:
			c.sadd(op.Key, op.Member)
		case storage.OpSRem:
			c.srem(op.Key, op.Member)
		case storage.OpZAdd:
			c.zadd(op.Key, op.Score, op.Member)
		}
	}
	return nil
}

func (c *Client) sadd(key, member string) {
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	set[member] = struct{}{}
}

func (c *Client) srem(key, member string) {
	set, ok := c.sets[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(c.sets, key)
	}
}

// zadd: повторный member обновляет score (как ZADD), seq сохраняется.
func (c *Client) zadd(key string, score float64, member string) {
	z := c.zsets[key]
	seq := c.seq
	found := false
	for i := range z {
		if z[i].member == member {
			seq = z[i].seq
			z = append(z[:i], z[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		c.seq++
	}
	z = append(z, zmember{member: member, score: score, seq: seq})
	sort.SliceStable(z, func(i, j int) bool {
		if z[i].score != z[j].score {
			return z[i].score < z[j].score
		}
		return z[i].seq < z[j].seq
	})
	c.zsets[key] = z
}
