package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/bus/bustest"
)

func TestContract(t *testing.T) {
	var cli *goredis.Client
	bustest.Run(t,
		func(t *testing.T) bus.Bus {
			mr := miniredis.RunT(t)
			cli = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = cli.Close() })
			return New(cli)
		},
		func(t *testing.T, channel string) {
			require.Eventually(t, func() bool {
				n, err := cli.PubSubNumSub(context.Background(), channel).Result()
				return err == nil && n[channel] > 0
			}, 2*time.Second, 10*time.Millisecond)
		},
	)
}
