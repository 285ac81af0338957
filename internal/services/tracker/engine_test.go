package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEngine_Run_StopsOnContextCancel(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	svc := New(st, pr, nil, nil, 0)
	e := NewEngine(svc, 5*time.Millisecond)

	_, err := svc.Add(context.Background(), "AB123456789GB", true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	// Движок подхватывает активный трек из стора и начинает проверять.
	require.Eventually(t, func() bool {
		return e.Stats().TotalChecks >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting engine to stop")
	}
	require.Zero(t, e.Stats().Tracked)
}

func TestEngine_Add_SchedulesAndDeliveredUnschedules(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	svc := New(st, pr, nil, nil, 0)
	e := NewEngine(svc, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	_, err := e.Add(ctx, "AB123456789GB", true)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return e.Stats().Tracked == 1 && e.Stats().TotalChecks >= 1
	}, 2*time.Second, 10*time.Millisecond)

	pr.set("Delivered and signed for", true)
	require.Eventually(t, func() bool {
		return e.Stats().Tracked == 0
	}, 2*time.Second, 10*time.Millisecond)

	rec, _, err := e.Get(ctx, "AB123456789GB")
	require.NoError(t, err)
	require.True(t, rec.Delivered)

	// Доставленный трек больше не опрашивается.
	calls := pr.calls
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, calls, pr.calls)
}

func TestEngine_Delete_CancelsScheduleBeforeReturn(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	svc := New(st, pr, nil, nil, 0)
	e := NewEngine(svc, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	_, err := e.Add(ctx, "AB123456789GB", true)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return e.Stats().TotalChecks >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.Delete(ctx, "AB123456789GB"))
	require.Zero(t, e.Stats().Tracked)

	// После Stop истории по треку не появляется.
	time.Sleep(50 * time.Millisecond)
	evs, err := st.ListHistory(ctx, "AB123456789GB")
	require.NoError(t, err)
	require.Empty(t, evs)
}

func TestEngine_AddBeforeRun_Pending(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	svc := New(st, pr, nil, nil, 0)
	e := NewEngine(svc, 5*time.Millisecond)

	_, err := e.Add(context.Background(), "AB123456789GB", true)
	require.NoError(t, err)
	require.Equal(t, 1, e.Stats().Tracked)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	require.Eventually(t, func() bool {
		return e.Stats().TotalChecks >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_CheckFailureCountsAndRetries(t *testing.T) {
	st := newFakeStore()
	pr := &scriptedProvider{}
	pr.set("Item received", false)
	svc := New(st, pr, nil, nil, 0)
	e := NewEngine(svc, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	_, err := e.Add(ctx, "AB123456789GB", true)
	require.NoError(t, err)

	pr.mu.Lock()
	pr.err = context.DeadlineExceeded
	pr.mu.Unlock()

	require.Eventually(t, func() bool {
		return e.Stats().TotalFailures >= 2
	}, 2*time.Second, 10*time.Millisecond)
	require.NotEmpty(t, e.Stats().LastError)
	require.Equal(t, 1, e.Stats().Tracked) // расписание не снято, ретраи продолжаются

	// Источник ожил — следующий тик фиксирует смену.
	pr.mu.Lock()
	pr.err = nil
	pr.res.Status = "In transit"
	pr.mu.Unlock()

	require.Eventually(t, func() bool {
		return e.Stats().TotalChanges >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Успешная проверка убирает устаревшую ошибку из /stats.
	require.Empty(t, e.Stats().LastError)
}
