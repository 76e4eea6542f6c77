package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() models.AssetContext {
	return models.AssetContext{
		Asset:     "BTC",
		AssetType: models.AssetTypeCrypto,
		Comments:  []string{"to the moon", "buying more"},
		Sentiment: models.SentimentBreakdown{BullishPercent: 75, BearishPercent: 25, Total: 4},
		Intent:    models.IntentBreakdown{BuyPercent: 50, SellPercent: 25, HoldPercent: 25, Total: 4},
	}
}

func TestChainFirstSuccessWins(t *testing.T) {
	primary := &fakeProvider{name: "gemini", configured: true, text: validAnalysis}
	secondary := &fakeProvider{name: "groq", configured: true, text: validAnalysis}
	chain := NewProviderChain([]ChainLink{
		{Provider: primary, Tier: models.TierPrimaryAI},
		{Provider: secondary, Tier: models.TierSecondaryAI},
	}, BreakerSettings{}, nil)

	res := chain.Generate(context.Background(), testContext())
	assert.Equal(t, models.TierPrimaryAI, res.Tier)
	assert.Equal(t, "gemini", res.ProviderName)
	assert.Equal(t, "final", res.Sections.FinalSummary)
	assert.Equal(t, 0, secondary.Calls())
}

func TestChainSkipsUnconfiguredWithoutCalling(t *testing.T) {
	primary := &fakeProvider{name: "gemini", configured: false, text: validAnalysis}
	secondary := &fakeProvider{name: "groq", configured: true, text: validAnalysis}
	chain := NewProviderChain([]ChainLink{
		{Provider: primary, Tier: models.TierPrimaryAI},
		{Provider: secondary, Tier: models.TierSecondaryAI},
	}, BreakerSettings{}, nil)

	res := chain.Generate(context.Background(), testContext())
	assert.Equal(t, 0, primary.Calls())
	assert.Equal(t, models.TierSecondaryAI, res.Tier)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "skipped", res.Attempts[0].Outcome)
	assert.ErrorIs(t, res.Attempts[0].Err, models.ErrNotConfigured)
}

func TestChainFallsBackToHeuristic(t *testing.T) {
	primary := &fakeProvider{name: "gemini", configured: true, err: models.NewProviderError("gemini", models.ErrProviderTransient, errBoom)}
	secondary := &fakeProvider{name: "groq", configured: true, text: "nothing useful here"}
	chain := NewProviderChain([]ChainLink{
		{Provider: primary, Tier: models.TierPrimaryAI},
		{Provider: secondary, Tier: models.TierSecondaryAI},
	}, BreakerSettings{}, nil)

	in := testContext()
	res := chain.Generate(context.Background(), in)
	assert.Equal(t, models.TierHeuristic, res.Tier)
	assert.Equal(t, "heuristic", res.ProviderName)
	assert.Equal(t, HeuristicSections(in), res.Sections)
	require.Len(t, res.Attempts, 2)
	assert.ErrorIs(t, res.Attempts[1].Err, models.ErrProviderMalformed)
}

func TestChainBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	flaky := &fakeProvider{name: "gemini", configured: true, err: errors.New("timeout")}
	chain := NewProviderChain([]ChainLink{{Provider: flaky, Tier: models.TierPrimaryAI}}, BreakerSettings{MaxFailures: 2}, nil)

	for i := 0; i < 4; i++ {
		res := chain.Generate(context.Background(), testContext())
		assert.Equal(t, models.TierHeuristic, res.Tier)
	}
	assert.Equal(t, 2, flaky.Calls(), "open breaker must skip the provider")
}

func TestChainUnavailableDoesNotTripBreaker(t *testing.T) {
	p := &fakeProvider{name: "openai", configured: true, err: models.NewProviderError("openai", models.ErrProviderUnavailable, errBoom)}
	chain := NewProviderChain([]ChainLink{{Provider: p, Tier: models.TierSecondaryAI}}, BreakerSettings{MaxFailures: 1}, nil)

	chain.Generate(context.Background(), testContext())
	chain.Generate(context.Background(), testContext())
	assert.Equal(t, 2, p.Calls())
}

func TestChainRejectedKeyTripsBreaker(t *testing.T) {
	perr := models.NewProviderError("openai", models.ErrProviderUnavailable, errors.Join(models.ErrNotConfigured, errBoom))
	perr.Status = 401
	p := &fakeProvider{name: "openai", configured: true, err: perr}
	chain := NewProviderChain([]ChainLink{{Provider: p, Tier: models.TierSecondaryAI}}, BreakerSettings{MaxFailures: 1, OpenTimeout: time.Hour}, nil)

	chain.Generate(context.Background(), testContext())
	res := chain.Generate(context.Background(), testContext())
	assert.Equal(t, 1, p.Calls(), "a revoked key must open the breaker")
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, "skipped", res.Attempts[0].Outcome)
}

func TestChainTimeoutFallsThroughToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "gemini", configured: true, hang: true}
	secondary := &fakeProvider{name: "groq", configured: true, text: validAnalysis}
	chain := NewProviderChain([]ChainLink{
		{Provider: primary, Tier: models.TierPrimaryAI, Timeout: 50 * time.Millisecond},
		{Provider: secondary, Tier: models.TierSecondaryAI, Timeout: time.Second},
	}, BreakerSettings{}, nil)

	start := time.Now()
	res := chain.Generate(context.Background(), testContext())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.TierSecondaryAI, res.Tier)
	assert.Equal(t, "groq", res.ProviderName)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "failed", res.Attempts[0].Outcome)
	assert.ErrorIs(t, res.Attempts[0].Err, context.DeadlineExceeded)
}

func TestChainAllLinksTimingOutUseHeuristic(t *testing.T) {
	primary := &fakeProvider{name: "gemini", configured: true, hang: true}
	secondary := &fakeProvider{name: "groq", configured: true, hang: true}
	chain := NewProviderChain([]ChainLink{
		{Provider: primary, Tier: models.TierPrimaryAI, Timeout: 30 * time.Millisecond},
		{Provider: secondary, Tier: models.TierSecondaryAI, Timeout: 30 * time.Millisecond},
	}, BreakerSettings{}, nil)

	in := testContext()
	start := time.Now()
	res := chain.Generate(context.Background(), in)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.TierHeuristic, res.Tier)
	assert.Equal(t, HeuristicSections(in), res.Sections)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestChainCancelledContextSkipsProviders(t *testing.T) {
	p := &fakeProvider{name: "gemini", configured: true, text: validAnalysis}
	chain := NewProviderChain([]ChainLink{{Provider: p, Tier: models.TierPrimaryAI}}, BreakerSettings{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := chain.Generate(ctx, testContext())
	assert.Equal(t, models.TierHeuristic, res.Tier)
	assert.Equal(t, 0, p.Calls())
}

func TestHeuristicIsDeterministic(t *testing.T) {
	in := testContext()
	a := HeuristicSections(in)
	b := HeuristicSections(in)
	assert.Equal(t, a, b)
	assert.Equal(t, 4, a.Filled())
	assert.Contains(t, a.FinalSummary, "bullish")
	assert.Contains(t, a.FinalSummary, "buy")
	assert.Contains(t, a.UserCommentsSummary, "optimistic")
}

func TestHeuristicNeutralWithoutData(t *testing.T) {
	s := HeuristicSections(models.AssetContext{Asset: "AAPL"})
	assert.Equal(t, 4, s.Filled())
	assert.Contains(t, s.MarketSentimentSummary, "neutral")
	assert.Contains(t, s.FinalSummary, "neutral")
}
