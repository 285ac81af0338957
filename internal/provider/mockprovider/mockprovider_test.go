package mockprovider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProvider_BucketProgression(t *testing.T) {
	p := New(time.Minute)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		elapsed   time.Duration
		status    string
		delivered bool
	}{
		{0, "Item received", false},
		{30 * time.Second, "Item received", false},
		{1 * time.Minute, "In transit", false},
		{2 * time.Minute, "Arrived at delivery office", false},
		{3 * time.Minute, "Out for delivery", false},
		{4 * time.Minute, "Delivered and signed for", true},
		{90 * time.Minute, "Delivered and signed for", true},
	}
	for _, c := range cases {
		res, err := p.FetchStatus(context.Background(), "AB123456789GB", start, start.Add(c.elapsed))
		require.NoError(t, err)
		require.Equal(t, c.status, res.Status, "elapsed=%s", c.elapsed)
		require.Equal(t, c.delivered, res.Delivered, "elapsed=%s", c.elapsed)
	}
}

func TestProvider_NegativeElapsedClampsToFirstBucket(t *testing.T) {
	p := New(time.Minute)
	start := time.Now().UTC()
	res, err := p.FetchStatus(context.Background(), "AB123456789GB", start, start.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, "Item received", res.Status)
	require.False(t, res.Delivered)
}

func TestProvider_Monotonic(t *testing.T) {
	p := New(time.Second)
	start := time.Now().UTC()

	seen := map[string]int{}
	order := 0
	var prevDelivered bool
	for e := time.Duration(0); e <= 10*time.Second; e += 500 * time.Millisecond {
		res, err := p.FetchStatus(context.Background(), "AB123456789GB", start, start.Add(e))
		require.NoError(t, err)
		if _, ok := seen[res.Status]; !ok {
			seen[res.Status] = order
			order++
		}
		// Доставленный флаг не откатывается.
		if prevDelivered {
			require.True(t, res.Delivered)
		}
		prevDelivered = res.Delivered
	}
	require.True(t, prevDelivered)
	require.Len(t, seen, 5)
}
