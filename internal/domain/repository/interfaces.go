package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// VoteReader reads vote tallies over a trailing time window.
type VoteReader interface {
	ReadRecentSentiment(ctx context.Context, asset string, window time.Duration) (models.SentimentTally, error)
	ReadRecentIntents(ctx context.Context, asset string, window time.Duration) (models.IntentTally, error)
}

type CommentReader interface {
	ReadRecentComments(ctx context.Context, asset string, window time.Duration, limit int) ([]models.Comment, error)
}

type NewsReader interface {
	ReadRecentHeadlines(ctx context.Context, asset string, limit int) ([]string, error)
}

// SnapshotStore durably keeps the latest payload per key so a restart can
// serve last-known-good data before the first refresh cycle completes.
type SnapshotStore interface {
	UpsertSummary(ctx context.Context, s models.IntelligenceSummary) error
	LoadSummaries(ctx context.Context) ([]models.IntelligenceSummary, error)
	UpsertQuote(ctx context.Context, q models.MarketQuote) error
	LoadQuotes(ctx context.Context) ([]models.MarketQuote, error)
}

type RefreshLog interface {
	Record(ctx context.Context, rec models.RefreshRecord) error
	Close() error
}

type EventPublisher interface {
	PublishRefresh(ctx context.Context, ev models.RefreshEvent) error
	Close() error
}

type Metrics interface {
	RecordRefresh(cache, tier, outcome string)
	RecordCacheLookup(cache string, hit bool)
	RecordRunDropped(cache string)
	RecordSwept(cache string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// RefreshHistory reads back audit rows written through RefreshLog.
type RefreshHistory interface {
	Recent(ctx context.Context, cache, key string, limit int) ([]models.RefreshRecord, error)
}
