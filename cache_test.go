package strix_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixdb/strix"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("GetSet", func(t *testing.T) {
		c := strix.NewMemoryCache()
		v, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, v)

		require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
		v, err = c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)
	})

	t.Run("TTL", func(t *testing.T) {
		c := strix.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Nanosecond))
		require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Hour))
		time.Sleep(time.Millisecond)

		v, err := c.Get(ctx, "short")
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = c.Get(ctx, "long")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)
	})

	t.Run("Delete", func(t *testing.T) {
		c := strix.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, c.Delete(ctx, "k"))
		v, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("DeletePrefix", func(t *testing.T) {
		c := strix.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "users:all", []byte("a"), 0))
		require.NoError(t, c.Set(ctx, "users:first", []byte("b"), 0))
		require.NoError(t, c.Set(ctx, "posts:all", []byte("c"), 0))

		require.NoError(t, c.DeletePrefix(ctx, "users:"))
		v, _ := c.Get(ctx, "users:all")
		assert.Nil(t, v)
		v, _ = c.Get(ctx, "users:first")
		assert.Nil(t, v)
		v, _ = c.Get(ctx, "posts:all")
		assert.Equal(t, []byte("c"), v)
	})

	t.Run("Clear", func(t *testing.T) {
		c := strix.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
		require.NoError(t, c.Clear(ctx))
		v, _ := c.Get(ctx, "a")
		assert.Nil(t, v)
		v, _ = c.Get(ctx, "b")
		assert.Nil(t, v)
	})
}

func TestCacheKey(t *testing.T) {
	k := strix.CacheKey{
		Table:     "users",
		Operation: "all",
		SQL:       `SELECT * FROM "users"`,
		Args:      "[]",
	}
	assert.Equal(t, `users:all:SELECT * FROM "users":[]`, k.String())
}
