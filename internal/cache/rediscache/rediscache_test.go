package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()

	_, ok, err := c.Get(ctx, "record:AB123456789GB")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "record:AB123456789GB", []byte(`{"identifier":"AB123456789GB"}`), time.Minute))

	b, ok, err := c.Get(ctx, "record:AB123456789GB")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"identifier":"AB123456789GB"}`), b)

	require.NoError(t, c.Del(ctx, "record:AB123456789GB"))
	_, ok, err = c.Get(ctx, "record:AB123456789GB")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_TTLExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))

	mr.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
