package usecase

import (
	"context"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	dservice "MarketPulse/internal/domain/service"
	icache "MarketPulse/internal/service/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryRecorder struct{ got []models.IntelligenceSummary }

func (r *summaryRecorder) OnSummary(s models.IntelligenceSummary) { r.got = append(r.got, s) }

func newIntelCache(t *testing.T, clk *fakeClock) *icache.FreshnessCache[models.IntelligenceSummary] {
	t.Helper()
	c, err := icache.New[models.IntelligenceSummary](24*time.Hour, icache.WithName(models.CacheIntelligence), icache.WithClock(clk.Now))
	require.NoError(t, err)
	return c
}

func newQuoteCache(t *testing.T, clk *fakeClock) *icache.FreshnessCache[models.MarketQuote] {
	t.Helper()
	c, err := icache.New[models.MarketQuote](time.Hour, icache.WithName(models.CacheQuotes), icache.WithClock(clk.Now))
	require.NoError(t, err)
	return c
}

func TestIntelligenceRefreshStoresTaggedSummary(t *testing.T) {
	clk := newFakeClock()
	c := newIntelCache(t, clk)
	snaps := &fakeSnapshots{}
	rec := &summaryRecorder{}
	chain := NewProviderChain([]ChainLink{
		{Provider: &fakeProvider{name: "gemini", configured: true, text: validAnalysis}, Tier: models.TierPrimaryAI},
	}, BreakerSettings{}, nil)

	r := NewIntelligenceRefresher(IntelligenceConfig{CommentLimit: 2},
		c,
		&fakeVotes{sentiment: models.SentimentTally{Bullish: 3, Bearish: 1}, intents: models.IntentTally{Buy: 1, Sell: 1, Hold: 2}},
		&fakeComments{comments: []models.Comment{{Text: "a"}, {Text: "b"}, {Text: "c"}}},
		nil, chain, snaps, nil)
	r.SetClock(clk.Now)
	r.AddListener(rec)

	out, err := r.Refresh(context.Background(), models.NewTarget("btc", ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out.Outcome)
	assert.Equal(t, string(models.TierPrimaryAI), out.Tier)
	assert.True(t, out.Stored())

	e, ok := c.Get("BTC")
	require.True(t, ok)
	s := e.Payload
	assert.Equal(t, models.AssetTypeCrypto, s.AssetType)
	assert.Equal(t, "final", s.FinalSummary)
	assert.Equal(t, 2, s.DataPoints.CommentsCount)
	assert.Equal(t, 4, s.DataPoints.SentimentVotesCount)
	assert.Equal(t, 75.0, s.DataPoints.BullishPercent)
	assert.Equal(t, 50.0, s.DataPoints.HoldPercent)
	assert.Equal(t, clk.Now(), s.GeneratedAt)

	require.Len(t, snaps.summaries, 1)
	require.Len(t, rec.got, 1)
	assert.Equal(t, "BTC", rec.got[0].Asset)
}

func TestIntelligenceRefreshTreatsReadFailuresAsNoData(t *testing.T) {
	clk := newFakeClock()
	c := newIntelCache(t, clk)
	chain := NewProviderChain(nil, BreakerSettings{}, nil)

	r := NewIntelligenceRefresher(IntelligenceConfig{NewsLimit: 5}, c,
		&fakeVotes{err: errBoom}, &fakeComments{err: errBoom}, &fakeNews{err: errBoom},
		chain, nil, nil)
	r.SetClock(clk.Now)

	out, err := r.Refresh(context.Background(), models.NewTarget("AAPL", models.AssetTypeStock))
	require.NoError(t, err)
	assert.Equal(t, string(models.TierHeuristic), out.Tier)

	e, ok := c.Get("AAPL")
	require.True(t, ok)
	dp := e.Payload.DataPoints
	assert.Equal(t, 50.0, dp.BullishPercent)
	assert.Equal(t, 50.0, dp.BearishPercent)
	assert.Equal(t, 33.3, dp.BuyPercent)
	assert.Equal(t, 33.4, dp.HoldPercent)
	assert.Equal(t, 0, dp.CommentsCount)
	assert.NotEmpty(t, e.Payload.GlobalNewsSummary)
}

func TestQuoteRefreshFirstKnownSourceWins(t *testing.T) {
	clk := newFakeClock()
	c := newQuoteCache(t, clk)
	failing := &fakeQuoteSource{name: "finnhub", err: models.NewProviderError("finnhub", models.ErrProviderTransient, models.ErrRateLimited)}
	working := &fakeQuoteSource{name: "yahoo", quote: models.RawQuote{Price: "110", PrevClose: "100"}}
	snaps := &fakeSnapshots{}

	r := NewQuoteRefresher([]dservice.QuoteSource{failing, working}, c, snaps, time.Second, nil)
	r.SetClock(clk.Now)

	out, err := r.Refresh(context.Background(), models.NewTarget("aapl", models.AssetTypeStock))
	require.NoError(t, err)
	assert.Equal(t, "yahoo", out.Tier)
	assert.Equal(t, 1, failing.calls)

	e, ok := c.Get("AAPL")
	require.True(t, ok)
	require.NotNil(t, e.Payload.Price)
	assert.Equal(t, 110.0, *e.Payload.Price)
	require.NotNil(t, e.Payload.Change)
	assert.Equal(t, 10.0, *e.Payload.Change)
	assert.Len(t, snaps.quotes, 1)
}

func TestQuoteRefreshStoresUnknownWhenAllFail(t *testing.T) {
	clk := newFakeClock()
	c := newQuoteCache(t, clk)
	src := &fakeQuoteSource{name: "finnhub", err: models.NewProviderError("finnhub", models.ErrProviderMalformed, models.ErrNotFound)}

	r := NewQuoteRefresher([]dservice.QuoteSource{src}, c, nil, time.Second, nil)
	r.SetClock(clk.Now)

	out, err := r.Refresh(context.Background(), models.NewTarget("ZZZZ", models.AssetTypeStock))
	require.Error(t, err)
	assert.Equal(t, OutcomeUnavailable, out.Outcome)

	e, ok := c.Get("ZZZZ")
	require.True(t, ok)
	assert.False(t, e.Payload.Known())
	assert.Nil(t, e.Payload.Change)
	assert.Equal(t, models.QuoteSourceUnavailable, e.Payload.Source)
}

func TestQuoteRefreshKeepsValidEntryWhenAllFail(t *testing.T) {
	clk := newFakeClock()
	c := newQuoteCache(t, clk)
	prev := c.Set("MSFT", models.MarketQuote{Symbol: "MSFT", Price: models.Float(400), Source: "finnhub"})

	src := &fakeQuoteSource{name: "finnhub", err: models.NewProviderError("finnhub", models.ErrProviderTransient, errBoom)}
	r := NewQuoteRefresher([]dservice.QuoteSource{src}, c, nil, time.Second, nil)
	r.SetClock(clk.Now)

	clk.Advance(15 * time.Minute)
	out, err := r.Refresh(context.Background(), models.NewTarget("MSFT", models.AssetTypeStock))
	require.Error(t, err)
	assert.Equal(t, OutcomeStaleKept, out.Outcome)
	assert.False(t, out.Stored())

	e, ok := c.Get("MSFT")
	require.True(t, ok)
	assert.Equal(t, prev.GeneratedAt, e.GeneratedAt)
	assert.Equal(t, 400.0, *e.Payload.Price)
}
