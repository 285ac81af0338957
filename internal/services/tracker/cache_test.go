package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *mapCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func TestService_Get_ReadsThroughCache(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	c := newMapCache()
	svc := New(st, pr, nil, c, 10*time.Minute)

	_, err := svc.Add(context.Background(), "AB123456789GB", true)
	require.NoError(t, err)

	// Add обновил кэш от источника истины; Get записи идёт мимо БД.
	before := st.getCalls
	rec, _, err := svc.Get(context.Background(), "AB123456789GB")
	require.NoError(t, err)
	require.Equal(t, "AB123456789GB", rec.Identifier)
	require.Equal(t, before, st.getCalls)
}

func TestService_Get_CacheMissFallsBackToStore(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	c := newMapCache()
	svc := New(st, pr, nil, c, 10*time.Minute)

	_, err := svc.Add(context.Background(), "AB123456789GB", true)
	require.NoError(t, err)
	require.NoError(t, c.Del(context.Background(), "tracking:AB123456789GB:current"))

	rec, _, err := svc.Get(context.Background(), "AB123456789GB")
	require.NoError(t, err)
	require.Equal(t, "AB123456789GB", rec.Identifier)

	// Промах заполнил кэш обратно.
	_, ok, err := c.Get(context.Background(), "tracking:AB123456789GB:current")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestService_CacheRefreshedAfterCheckMutation(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	c := newMapCache()
	svc := New(st, pr, nil, c, 10*time.Minute)

	_, err := svc.Add(context.Background(), "AB123456789GB", true)
	require.NoError(t, err)

	pr.set("In transit", false)
	_, err = svc.Check(context.Background(), "AB123456789GB")
	require.NoError(t, err)

	// Кэш отражает состояние после мутации.
	rec, _, err := svc.Get(context.Background(), "AB123456789GB")
	require.NoError(t, err)
	require.NotNil(t, rec.LastStatus)
	require.Equal(t, "In transit", *rec.LastStatus)
}

func TestService_Delete_InvalidatesCache(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	c := newMapCache()
	svc := New(st, pr, nil, c, 10*time.Minute)

	_, err := svc.Add(context.Background(), "AB123456789GB", true)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), "AB123456789GB"))

	_, ok, err := c.Get(context.Background(), "tracking:AB123456789GB:current")
	require.NoError(t, err)
	require.False(t, ok)
}
