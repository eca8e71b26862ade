// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/storage"
)

// Run exercises newStore against the storage.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, storage.ErrNil)
	})

	t.Run("SetGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "user:email:a@b.c", "u1"))
		v, err := s.Get(ctx, "user:email:a@b.c")
		require.NoError(t, err)
		assert.Equal(t, "u1", v)
	})

	t.Run("Sets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SAdd(ctx, "k", "a"))
		require.NoError(t, s.SAdd(ctx, "k", "b"))
		require.NoError(t, s.SAdd(ctx, "k", "a"))

		ok, err := s.SIsMember(ctx, "k", "a")
		require.NoError(t, err)
		assert.True(t, ok)

		n, err := s.SCard(ctx, "k")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		members, err := s.SMembers(ctx, "k")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, members)

		require.NoError(t, s.SRem(ctx, "k", "a"))
		ok, err = s.SIsMember(ctx, "k", "a")
		require.NoError(t, err)
		assert.False(t, ok)

		members, err = s.SMembers(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("SortedSet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.ZAdd(ctx, "z", 30, "c"))
		require.NoError(t, s.ZAdd(ctx, "z", 10, "a"))
		require.NoError(t, s.ZAdd(ctx, "z", 20, "b"))

		all, err := s.ZRange(ctx, "z", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, all)

		last, err := s.ZRange(ctx, "z", -1, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, last)

		empty, err := s.ZRange(ctx, "missing", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Incr", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		n, err := s.Incr(ctx, "seq")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		n, err = s.Incr(ctx, "seq")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		require.NoError(t, s.Set(ctx, "word", "abc"))
		_, err = s.Incr(ctx, "word")
		assert.Error(t, err)
	})

	t.Run("Exec", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SAdd(ctx, "pending", "u2"))
		require.NoError(t, s.Exec(ctx,
			storage.SAdd("u1:friends", "u2"),
			storage.SAdd("u2:friends", "u1"),
			storage.SRem("pending", "u2"),
			storage.ZAdd("log", 5, "m"),
		))

		ok, err := s.SIsMember(ctx, "u1:friends", "u2")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.SIsMember(ctx, "u2:friends", "u1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.SIsMember(ctx, "pending", "u2")
		require.NoError(t, err)
		assert.False(t, ok)
		log, err := s.ZRange(ctx, "log", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"m"}, log)

		assert.Error(t, s.Exec(ctx, storage.Op{Kind: 99, Key: "x"}))
	})
}
