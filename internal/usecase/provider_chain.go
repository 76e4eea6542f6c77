package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	dservice "MarketPulse/internal/domain/service"
	"MarketPulse/internal/services/normalize"
	applogger "MarketPulse/pkg/logger"

	"github.com/sony/gobreaker"
)

// ChainLink is one analysis strategy in priority order.
type ChainLink struct {
	Provider dservice.AnalysisProvider
	Tier     models.ProviderTier
	Timeout  time.Duration
}

// BreakerSettings configures the per-provider circuit breaker.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

// ChainAttempt records what happened to one link during a Generate call.
type ChainAttempt struct {
	Provider string
	Outcome  string
	Err      error
}

type ChainResult struct {
	Sections     models.AnalysisSections
	Tier         models.ProviderTier
	ProviderName string
	Attempts     []ChainAttempt
}

type chainLink struct {
	ChainLink
	breaker *gobreaker.CircuitBreaker
}

// ProviderChain tries each analysis provider in order and falls back to the
// local heuristic. Generate never fails.
type ProviderChain struct {
	links []chainLink
	log   *applogger.Logger
}

func NewProviderChain(links []ChainLink, bs BreakerSettings, l *applogger.Logger) *ProviderChain {
	if l == nil {
		l = applogger.NewNop()
	}
	if bs.MaxFailures == 0 {
		bs.MaxFailures = 3
	}
	c := &ProviderChain{log: l}
	for _, link := range links {
		if link.Provider == nil {
			continue
		}
		if link.Timeout <= 0 {
			link.Timeout = 60 * time.Second
		}
		c.links = append(c.links, chainLink{ChainLink: link, breaker: newBreaker(link.Provider.Name(), bs, l)})
	}
	return c
}

func newBreaker(name string, bs BreakerSettings, l *applogger.Logger) *gobreaker.CircuitBreaker {
	maxFailures := bs.MaxFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    bs.Interval,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || missingCredentials(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("chain.breaker_state",
				applogger.String("provider", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})
}

// missingCredentials reports a provider that was never reachable because no
// key is configured. A status-coded rejection (revoked or invalid key) is a
// real failure and counts against the breaker.
func missingCredentials(err error) bool {
	if !errors.Is(err, models.ErrProviderUnavailable) {
		return false
	}
	var pe *models.ProviderError
	return !errors.As(err, &pe) || pe.Status == 0
}

// Generate runs the chain for one asset context.
func (c *ProviderChain) Generate(ctx context.Context, in models.AssetContext) ChainResult {
	var attempts []ChainAttempt

	for _, link := range c.links {
		name := link.Provider.Name()
		if ctx.Err() != nil {
			attempts = append(attempts, ChainAttempt{Provider: name, Outcome: "skipped", Err: ctx.Err()})
			continue
		}
		if !link.Provider.Configured() {
			attempts = append(attempts, ChainAttempt{Provider: name, Outcome: "skipped", Err: models.ErrNotConfigured})
			continue
		}
		if link.breaker.State() == gobreaker.StateOpen {
			attempts = append(attempts, ChainAttempt{Provider: name, Outcome: "skipped", Err: gobreaker.ErrOpenState})
			continue
		}

		sections, err := c.call(ctx, link, in)
		if err == nil {
			attempts = append(attempts, ChainAttempt{Provider: name, Outcome: "ok"})
			return ChainResult{Sections: sections, Tier: link.Tier, ProviderName: name, Attempts: attempts}
		}

		outcome := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "skipped"
		}
		attempts = append(attempts, ChainAttempt{Provider: name, Outcome: outcome, Err: err})
		c.log.Warn("chain.provider_failed",
			applogger.String("asset", in.Asset),
			applogger.String("provider", name),
			applogger.String("kind", kindLabel(err)),
			applogger.Error(err),
		)
	}

	return ChainResult{
		Sections:     HeuristicSections(in),
		Tier:         models.TierHeuristic,
		ProviderName: "heuristic",
		Attempts:     attempts,
	}
}

func (c *ProviderChain) call(ctx context.Context, link chainLink, in models.AssetContext) (models.AnalysisSections, error) {
	res, err := link.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, link.Timeout)
		defer cancel()

		text, err := link.Provider.GenerateAnalysis(callCtx, in)
		if err != nil {
			return nil, err
		}
		sections, err := normalize.ParseAnalysisSections(text, in.Asset)
		if err != nil {
			return nil, models.NewProviderError(link.Provider.Name(), models.ErrProviderMalformed, fmt.Errorf("parse sections: %w", err))
		}
		return sections, nil
	})
	if err != nil {
		return models.AnalysisSections{}, err
	}
	return res.(models.AnalysisSections), nil
}

func kindLabel(err error) string {
	switch models.ClassifyProviderError(err) {
	case models.ErrProviderUnavailable:
		return "unavailable"
	case models.ErrProviderMalformed:
		return "malformed"
	default:
		return "transient"
	}
}
