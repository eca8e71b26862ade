package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/chatsync/internal/logger"
	redisstorage "github.com/chatsync/internal/storage/redis"
)

var (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// ConnectStoreWithRetry подключается к Redis-хранилищу с повторами до maxWait.
// logPrefix добавляется к сообщениям лога (например "api: ").
func ConnectStoreWithRetry(ctx context.Context, url, token string, maxWait time.Duration, logPrefix string) (*redisstorage.Client, error) {
	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := redisstorage.New(pingCtx, url, token)
		cancel()
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%sstore (gave up after %v): %w", logPrefix, maxWait, err)
		}
		logger.Errorf("%sstore connect failed, retry in %v: %v", logPrefix, backoff, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
