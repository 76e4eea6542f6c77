package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, ttl time.Duration) (*FreshnessCache[string], *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c, err := New[string](ttl, WithName("test"), WithClock(clk.Now))
	require.NoError(t, err)
	return c, clk
}

func TestNewRejectsNonPositiveTTL(t *testing.T) {
	_, err := New[string](0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestGetRespectsTTLBoundary(t *testing.T) {
	c, clk := newTestCache(t, time.Hour)
	e := c.Set("btc", "v1")
	assert.Equal(t, e.GeneratedAt.Add(time.Hour), e.ExpiresAt)
	assert.True(t, e.ExpiresAt.After(e.GeneratedAt))

	clk.Advance(time.Hour - time.Nanosecond)
	got, ok := c.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, "v1", got.Payload)

	clk.Advance(time.Nanosecond)
	_, ok = c.Get("BTC")
	assert.False(t, ok, "entry must be invalid at exactly expiresAt")

	clk.Advance(time.Nanosecond)
	_, ok = c.Get("BTC")
	assert.False(t, ok)
}

func TestGetDoesNotEvict(t *testing.T) {
	c, clk := newTestCache(t, time.Minute)
	c.Set("eth", "v")
	clk.Advance(2 * time.Minute)
	_, ok := c.Get("eth")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestSetOverwritesUnconditionally(t *testing.T) {
	c, clk := newTestCache(t, time.Hour)
	c.Set("AAPL", "old")
	clk.Advance(10 * time.Minute)
	e := c.Set(" aapl ", "new")
	got, ok := c.Get("Aapl")
	require.True(t, ok)
	assert.Equal(t, "new", got.Payload)
	assert.Equal(t, e.GeneratedAt, got.GeneratedAt)
	assert.Equal(t, "AAPL", got.Key)
}

func TestSweepExpired(t *testing.T) {
	c, clk := newTestCache(t, time.Hour)
	c.Set("A", "a")
	clk.Advance(30 * time.Minute)
	c.Set("B", "b")
	clk.Advance(30 * time.Minute)

	assert.Equal(t, 1, c.SweepExpired())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"B"}, c.Keys())
}

func TestRestoreKeepsGenerationTime(t *testing.T) {
	c, clk := newTestCache(t, time.Hour)
	generated := clk.Now().Add(-20 * time.Minute)

	e, ok := c.Restore("sol", "snap", generated)
	require.True(t, ok)
	assert.Equal(t, generated.Add(time.Hour), e.ExpiresAt)

	_, ok = c.Restore("stale", "snap", clk.Now().Add(-2*time.Hour))
	assert.False(t, ok)

	c.Set("sol", "fresh")
	_, ok = c.Restore("sol", "older", generated)
	assert.False(t, ok)
	got, _ := c.Get("SOL")
	assert.Equal(t, "fresh", got.Payload)
}
