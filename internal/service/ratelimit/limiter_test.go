package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesBurstPerKey(t *testing.T) {
	l := New(0.001, 2)
	assert.True(t, l.Allow("finnhub"))
	assert.True(t, l.Allow("finnhub"))
	assert.False(t, l.Allow("finnhub"))
	assert.True(t, l.Allow("yahoo"), "keys must not share a bucket")
}

func TestSetLimitOverridesDefault(t *testing.T) {
	l := New(0.001, 1)
	l.SetLimit("groq", 0.001, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("groq"))
	}
	assert.False(t, l.Allow("groq"))
}

func TestNonPositiveRateIsUnlimited(t *testing.T) {
	l := New(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("any"))
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	require.True(t, l.Allow("k"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}

func TestIdleBucketsAreEvicted(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	l := New(0.001, 1, WithIdleTTL(10*time.Minute), WithClock(func() time.Time { return now }))
	l.SetLimit("finnhub", 0.001, 1)

	require.True(t, l.Allow("ip:10.0.0.1"))
	require.True(t, l.Allow("ip:10.0.0.2"))
	require.True(t, l.Allow("finnhub"))
	assert.Equal(t, 3, l.Len())

	now = now.Add(5 * time.Minute)
	assert.False(t, l.Allow("ip:10.0.0.2"), "active bucket keeps its state")

	now = now.Add(6 * time.Minute)
	l.Allow("ip:10.0.0.3")
	assert.Equal(t, 3, l.Len(), "idle client dropped, pinned key kept")
	assert.True(t, l.Allow("ip:10.0.0.1"), "evicted client starts with a full bucket")
}

func TestZeroIdleTTLKeepsBuckets(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	l := New(0.001, 1, WithClock(func() time.Time { return now }))
	l.Allow("a")
	now = now.Add(24 * time.Hour)
	l.Allow("b")
	assert.Equal(t, 2, l.Len())
}
