package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
)

// NoopStore stands in for the document store when Mongo is disabled:
// reads return no data and writes are dropped.
type NoopStore struct{}

func (NoopStore) ReadRecentSentiment(context.Context, string, time.Duration) (models.SentimentTally, error) {
	return models.SentimentTally{}, nil
}

func (NoopStore) ReadRecentIntents(context.Context, string, time.Duration) (models.IntentTally, error) {
	return models.IntentTally{}, nil
}

func (NoopStore) ReadRecentComments(context.Context, string, time.Duration, int) ([]models.Comment, error) {
	return nil, nil
}

func (NoopStore) ReadRecentHeadlines(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func (NoopStore) UpsertSummary(context.Context, models.IntelligenceSummary) error { return nil }

func (NoopStore) LoadSummaries(context.Context) ([]models.IntelligenceSummary, error) {
	return nil, nil
}

func (NoopStore) UpsertQuote(context.Context, models.MarketQuote) error { return nil }

func (NoopStore) LoadQuotes(context.Context) ([]models.MarketQuote, error) { return nil, nil }

var (
	_ drepo.VoteReader    = NoopStore{}
	_ drepo.CommentReader = NoopStore{}
	_ drepo.NewsReader    = NoopStore{}
	_ drepo.SnapshotStore = NoopStore{}
)
