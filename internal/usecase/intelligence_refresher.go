package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	icache "MarketPulse/internal/service/cache"
	"MarketPulse/internal/services/aggregation"
	applogger "MarketPulse/pkg/logger"
)

// SummaryListener is notified after a summary is stored.
type SummaryListener interface {
	OnSummary(s models.IntelligenceSummary)
}

type IntelligenceConfig struct {
	VoteWindow   time.Duration
	CommentLimit int
	NewsLimit    int
	WriteTimeout time.Duration
}

// IntelligenceRefresher gathers local community data for an asset, runs the
// provider chain and stores the resulting summary.
type IntelligenceRefresher struct {
	cfg       IntelligenceConfig
	cache     *icache.FreshnessCache[models.IntelligenceSummary]
	votes     drepo.VoteReader
	comments  drepo.CommentReader
	news      drepo.NewsReader
	chain     *ProviderChain
	snapshots drepo.SnapshotStore
	listeners []SummaryListener
	log       *applogger.Logger
	now       func() time.Time
}

func NewIntelligenceRefresher(
	cfg IntelligenceConfig,
	cache *icache.FreshnessCache[models.IntelligenceSummary],
	votes drepo.VoteReader,
	comments drepo.CommentReader,
	news drepo.NewsReader,
	chain *ProviderChain,
	snapshots drepo.SnapshotStore,
	l *applogger.Logger,
) *IntelligenceRefresher {
	if cfg.VoteWindow <= 0 {
		cfg.VoteWindow = 24 * time.Hour
	}
	if cfg.CommentLimit <= 0 {
		cfg.CommentLimit = 50
	}
	if cfg.NewsLimit < 0 {
		cfg.NewsLimit = 0
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &IntelligenceRefresher{
		cfg:       cfg,
		cache:     cache,
		votes:     votes,
		comments:  comments,
		news:      news,
		chain:     chain,
		snapshots: snapshots,
		log:       l,
		now:       time.Now,
	}
}

// AddListener registers a listener; call before the scheduler starts.
func (r *IntelligenceRefresher) AddListener(l SummaryListener) {
	if l != nil {
		r.listeners = append(r.listeners, l)
	}
}

// SetClock overrides the time source for GeneratedAt stamps.
func (r *IntelligenceRefresher) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func (r *IntelligenceRefresher) Refresh(ctx context.Context, t models.Target) (RefreshOutcome, error) {
	in, comments := r.gather(ctx, t)
	res := r.chain.Generate(ctx, in)

	dp := models.NewDataPoints(comments, in.Sentiment, in.Intent)
	summary := models.NewIntelligenceSummary(t, res.Sections, dp, res.Tier, res.ProviderName, r.now())
	entry := r.cache.Set(t.Key, summary)

	if r.snapshots != nil {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.WriteTimeout)
		if err := r.snapshots.UpsertSummary(wctx, summary); err != nil {
			r.log.Warn("intelligence.snapshot_failed", applogger.String("asset", t.Key), applogger.Error(err))
		}
		cancel()
	}
	for _, l := range r.listeners {
		l.OnSummary(summary)
	}

	return RefreshOutcome{
		Tier:        string(res.Tier),
		Outcome:     OutcomeOK,
		GeneratedAt: entry.GeneratedAt,
		ExpiresAt:   entry.ExpiresAt,
	}, nil
}

// gather reads votes, intents, comments and headlines. Read failures are
// logged and treated as no data.
func (r *IntelligenceRefresher) gather(ctx context.Context, t models.Target) (models.AssetContext, int) {
	var (
		sentiment models.SentimentTally
		intents   models.IntentTally
		comments  []models.Comment
		headlines []string
		err       error
	)

	if r.votes != nil {
		if sentiment, err = r.votes.ReadRecentSentiment(ctx, t.Key, r.cfg.VoteWindow); err != nil {
			r.readFailed(t, "sentiment", err)
			sentiment = models.SentimentTally{}
		}
		if intents, err = r.votes.ReadRecentIntents(ctx, t.Key, r.cfg.VoteWindow); err != nil {
			r.readFailed(t, "intents", err)
			intents = models.IntentTally{}
		}
	}
	if r.comments != nil {
		if comments, err = r.comments.ReadRecentComments(ctx, t.Key, r.cfg.VoteWindow, r.cfg.CommentLimit); err != nil {
			r.readFailed(t, "comments", err)
			comments = nil
		}
		if len(comments) > r.cfg.CommentLimit {
			comments = comments[:r.cfg.CommentLimit]
		}
	}
	if r.news != nil && r.cfg.NewsLimit > 0 {
		if headlines, err = r.news.ReadRecentHeadlines(ctx, t.Key, r.cfg.NewsLimit); err != nil {
			r.readFailed(t, "news", err)
			headlines = nil
		}
		if len(headlines) > r.cfg.NewsLimit {
			headlines = headlines[:r.cfg.NewsLimit]
		}
	}

	return models.AssetContext{
		Asset:     t.Key,
		AssetType: t.AssetType,
		Comments:  models.CommentTexts(comments),
		Headlines: headlines,
		Sentiment: aggregation.ComputeSentimentBreakdown(sentiment),
		Intent:    aggregation.ComputeIntentBreakdown(intents),
	}, len(comments)
}

func (r *IntelligenceRefresher) readFailed(t models.Target, source string, err error) {
	r.log.Warn("intelligence.read_failed",
		applogger.String("asset", t.Key),
		applogger.String("source", source),
		applogger.Error(err),
	)
}
