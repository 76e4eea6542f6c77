package usecase

import (
	"context"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct{ n, calls int }

func (s *countingSweeper) SweepExpired() int {
	s.calls++
	return s.n
}

func targets(keys ...string) StaticTargets {
	return StaticTargets(models.BuildTargets(keys, ""))
}

func TestRoundRobinIndexFollowsAbsoluteHour(t *testing.T) {
	ts := targets("BTC", "ETH", "AAPL")
	rr := RoundRobin{Cadence: time.Hour}

	at := time.Unix(0, 0).UTC().Add(7 * time.Hour) // hour 7 -> 7 mod 3 = 1
	got := rr.Select(ts, at)
	require.Len(t, got, 1)
	assert.Equal(t, "ETH", got[0].Key)

	got = rr.Select(ts, at.Add(59*time.Minute))
	assert.Equal(t, "ETH", got[0].Key, "same hour keeps the same target")

	got = rr.Select(ts, at.Add(time.Hour))
	assert.Equal(t, "AAPL", got[0].Key)

	assert.Empty(t, rr.Select(nil, at))
}

func TestRoundRobinVisitsEveryTargetOncePerRotation(t *testing.T) {
	ts := targets("A", "B", "C", "D")
	rr := RoundRobin{Cadence: time.Hour}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seen := map[string]int{}
	for h := 0; h < len(ts); h++ {
		seen[rr.Select(ts, start.Add(time.Duration(h)*time.Hour))[0].Key]++
	}
	assert.Len(t, seen, 4)
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestRunOnceAllTargetsInOrderAndSweeps(t *testing.T) {
	ref := &scriptedRefresher{}
	sweeper := &countingSweeper{n: 2}
	logs := &fakeRefreshLog{}
	events := &fakeEvents{}
	m := newFakeMetrics()

	s := NewScheduler("quotes", 15*time.Minute, targets("AAPL", "MSFT", "TSLA"), AllTargets{}, ref, sweeper,
		WithRefreshLog(logs), WithEventPublisher(events), WithSchedulerMetrics(m))

	report, ran := s.RunOnce(context.Background())
	require.True(t, ran)
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, ref.Seen())
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Swept)
	assert.Equal(t, 1, sweeper.calls)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, logs.Records(), 3)
	assert.Len(t, events.Events(), 3)
	assert.Equal(t, report.RunID, events.Events()[0].RunID)
}

func TestRunOnceIsolatesFailuresAndPanics(t *testing.T) {
	ref := &scriptedRefresher{
		fail:    map[string]error{"MSFT": errBoom},
		panicOn: map[string]bool{"AAPL": true},
	}
	logs := &fakeRefreshLog{}
	events := &fakeEvents{}
	s := NewScheduler("quotes", time.Minute, targets("AAPL", "MSFT", "TSLA"), AllTargets{}, ref, nil,
		WithRefreshLog(logs), WithEventPublisher(events))

	report, ran := s.RunOnce(context.Background())
	require.True(t, ran)
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, ref.Seen())
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Succeeded)

	recs := logs.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, OutcomePanic, recs[0].Outcome)
	assert.Equal(t, OutcomeFailed, recs[1].Outcome)
	assert.Equal(t, OutcomeOK, recs[2].Outcome)
	assert.Len(t, events.Events(), 1, "only stored refreshes are published")
}

func TestOverlappingRunIsDropped(t *testing.T) {
	ref := &scriptedRefresher{block: make(chan struct{}), started: make(chan string, 4)}
	m := newFakeMetrics()
	s := NewScheduler("intelligence", time.Hour, targets("BTC"), AllTargets{}, ref, nil, WithSchedulerMetrics(m))

	require.True(t, s.TriggerNow(context.Background()))
	<-ref.started
	assert.True(t, s.Running())

	_, ran := s.RunOnce(context.Background())
	assert.False(t, ran)
	assert.False(t, s.TriggerNow(context.Background()))
	assert.ErrorIs(t, s.RefreshKey(context.Background(), "BTC"), models.ErrRefreshInProgress)
	assert.ErrorIs(t, s.TriggerKey(context.Background(), "BTC"), models.ErrRefreshInProgress)
	assert.Equal(t, 4, m.Dropped())

	close(ref.block)
	s.Wait()
	assert.False(t, s.Running())
	assert.Equal(t, []string{"BTC"}, ref.Seen())
}

func TestRefreshKeyInfersUnknownTargets(t *testing.T) {
	ref := &scriptedRefresher{}
	s := NewScheduler("intelligence", time.Hour, targets("BTC"), RoundRobin{Cadence: time.Hour}, ref, nil)

	require.NoError(t, s.RefreshKey(context.Background(), " doge "))
	assert.Equal(t, []string{"DOGE"}, ref.Seen())
	assert.Error(t, s.RefreshKey(context.Background(), "  "))
}

func TestKeyRefreshDoesNotDropScheduledTick(t *testing.T) {
	ref := &scriptedRefresher{
		block:   make(chan struct{}),
		blockOn: map[string]bool{"AAPL": true},
		started: make(chan string, 4),
	}
	m := newFakeMetrics()
	clk := newFakeClock()
	ts := targets("AAPL", "BTC", "ETH")
	s := NewScheduler("intelligence", time.Hour, ts, RoundRobin{Cadence: time.Hour}, ref, nil,
		WithSchedulerClock(clk.Now), WithSchedulerMetrics(m))
	hourly := RoundRobin{Cadence: time.Hour}.Select(ts, clk.Now())[0].Key
	require.NotEqual(t, "AAPL", hourly)

	require.NoError(t, s.TriggerKey(context.Background(), "aapl"))
	require.Equal(t, "AAPL", <-ref.started)
	assert.ErrorIs(t, s.RefreshKey(context.Background(), "AAPL"), models.ErrRefreshInProgress)

	report, ran := s.RunOnce(context.Background())
	require.True(t, ran, "a key refresh must not take the cycle's slot")
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, hourly, <-ref.started)

	close(ref.block)
	s.Wait()
	assert.ElementsMatch(t, []string{"AAPL", hourly}, ref.Seen())
	assert.Equal(t, 1, m.Dropped())
	require.NoError(t, s.RefreshKey(context.Background(), "AAPL"), "key guard is released")
}

func TestTracksOnlyConfiguredTargets(t *testing.T) {
	s := NewScheduler("intelligence", time.Hour, targets("BTC", "AAPL"), AllTargets{}, &scriptedRefresher{}, nil)
	assert.True(t, s.Tracks(" btc "))
	assert.True(t, s.Tracks("AAPL"))
	assert.False(t, s.Tracks("RANDOM-GARBAGE-KEY"))
	assert.False(t, s.Tracks(""))
}

func TestStartRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ref := &scriptedRefresher{started: make(chan string, 8)}
	clk := newFakeClock()
	s := NewScheduler("intelligence", time.Hour, targets("BTC", "ETH"), RoundRobin{Cadence: time.Hour}, ref, nil,
		WithSchedulerClock(clk.Now))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case key := <-ref.started:
		want := RoundRobin{Cadence: time.Hour}.Select(targets("BTC", "ETH"), clk.Now())[0].Key
		assert.Equal(t, want, key)
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStartRejectsZeroCadence(t *testing.T) {
	s := NewScheduler("x", 0, targets("A"), AllTargets{}, &scriptedRefresher{}, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestConcurrentRunVisitsEveryTarget(t *testing.T) {
	ref := &scriptedRefresher{}
	s := NewScheduler("quotes", time.Minute, targets("A", "B", "C", "D", "E"), AllTargets{}, ref, nil, WithConcurrency(3))

	report, ran := s.RunAll(context.Background())
	require.True(t, ran)
	assert.Equal(t, 5, report.Succeeded)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D", "E"}, ref.Seen())
}
