package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	dservice "MarketPulse/internal/domain/service"
	icache "MarketPulse/internal/service/cache"
	"MarketPulse/internal/services/normalize"
	applogger "MarketPulse/pkg/logger"
)

// QuoteRefresher fetches a quote from the first source that answers with a
// price. Sources pace themselves through the shared rate limiter.
type QuoteRefresher struct {
	sources      []dservice.QuoteSource
	cache        *icache.FreshnessCache[models.MarketQuote]
	snapshots    drepo.SnapshotStore
	timeout      time.Duration
	writeTimeout time.Duration
	log          *applogger.Logger
	now          func() time.Time
}

func NewQuoteRefresher(
	sources []dservice.QuoteSource,
	cache *icache.FreshnessCache[models.MarketQuote],
	snapshots drepo.SnapshotStore,
	timeout time.Duration,
	l *applogger.Logger,
) *QuoteRefresher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &QuoteRefresher{
		sources:      sources,
		cache:        cache,
		snapshots:    snapshots,
		timeout:      timeout,
		writeTimeout: 5 * time.Second,
		log:          l,
		now:          time.Now,
	}
}

func (r *QuoteRefresher) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Refresh stores the first usable quote. When every source fails a still
// valid entry is kept; otherwise an all-unknown quote tagged "unavailable"
// is stored so readers get a well-formed answer.
func (r *QuoteRefresher) Refresh(ctx context.Context, t models.Target) (RefreshOutcome, error) {
	var errs []error

	for _, src := range r.sources {
		q, err := r.fetch(ctx, src, t)
		if err != nil {
			errs = append(errs, err)
			r.log.Debug("quotes.source_failed",
				applogger.String("symbol", t.Key),
				applogger.String("source", src.Name()),
				applogger.Error(err),
			)
			continue
		}
		return r.store(ctx, t, q, src.Name(), OutcomeOK), nil
	}

	failure := errors.Join(errs...)
	if _, ok := r.cache.Get(t.Key); ok {
		return RefreshOutcome{Tier: "none", Outcome: OutcomeStaleKept}, failure
	}
	return r.store(ctx, t, models.UnknownQuote(t.Key, models.QuoteSourceUnavailable), models.QuoteSourceUnavailable, OutcomeUnavailable), failure
}

func (r *QuoteRefresher) fetch(ctx context.Context, src dservice.QuoteSource, t models.Target) (models.MarketQuote, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := src.FetchQuote(callCtx, t.Key, t.AssetType)
	if err != nil {
		return models.MarketQuote{}, err
	}
	q := normalize.Quote(raw, r.now())
	if !q.Known() {
		return models.MarketQuote{}, models.NewProviderError(src.Name(), models.ErrProviderMalformed, fmt.Errorf("quote %s has no price", t.Key))
	}
	q.Symbol = t.Key
	return q, nil
}

func (r *QuoteRefresher) store(ctx context.Context, t models.Target, q models.MarketQuote, tier, outcome string) RefreshOutcome {
	if q.FetchedAt.IsZero() {
		q.FetchedAt = r.now()
	}
	entry := r.cache.Set(t.Key, q)
	if r.snapshots != nil && q.Known() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
		if err := r.snapshots.UpsertQuote(wctx, q); err != nil {
			r.log.Warn("quotes.snapshot_failed", applogger.String("symbol", t.Key), applogger.Error(err))
		}
		cancel()
	}
	return RefreshOutcome{Tier: tier, Outcome: outcome, GeneratedAt: entry.GeneratedAt, ExpiresAt: entry.ExpiresAt}
}
