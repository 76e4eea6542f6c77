package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	pkgcache "MarketPulse/pkg/cache"
)

const (
	snapshotPrefix = "snapshot"
	summaryKind    = "intelligence"
	quoteKind      = "quotes"
)

// RedisSnapshotStore keeps snapshots in a key/value cache. Entries expire
// with their cache TTL so a restart never restores data older than that.
type RedisSnapshotStore struct {
	cache      pkgcache.Service
	summaryTTL time.Duration
	quoteTTL   time.Duration
}

func NewRedisSnapshotStore(cache pkgcache.Service, summaryTTL, quoteTTL time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{cache: cache, summaryTTL: summaryTTL, quoteTTL: quoteTTL}
}

func (s *RedisSnapshotStore) UpsertSummary(ctx context.Context, sum models.IntelligenceSummary) error {
	key := pkgcache.GenerateKey(snapshotPrefix, summaryKind, sum.Asset)
	if err := s.cache.Set(ctx, key, sum, s.summaryTTL); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisSnapshotStore) LoadSummaries(ctx context.Context) ([]models.IntelligenceSummary, error) {
	return loadAll[models.IntelligenceSummary](ctx, s.cache, summaryKind)
}

func (s *RedisSnapshotStore) UpsertQuote(ctx context.Context, q models.MarketQuote) error {
	key := pkgcache.GenerateKey(snapshotPrefix, quoteKind, q.Symbol)
	if err := s.cache.Set(ctx, key, q, s.quoteTTL); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisSnapshotStore) LoadQuotes(ctx context.Context) ([]models.MarketQuote, error) {
	return loadAll[models.MarketQuote](ctx, s.cache, quoteKind)
}

func loadAll[T any](ctx context.Context, c pkgcache.Service, kind string) ([]T, error) {
	keys, err := c.Keys(ctx, pkgcache.BuildPattern(pkgcache.GenerateKey(snapshotPrefix, kind)))
	if err != nil {
		return nil, fmt.Errorf("scan %s snapshots: %w", kind, err)
	}
	sort.Strings(keys)
	byKey, err := pkgcache.MGetTyped[T](ctx, c, keys...)
	if err != nil {
		return nil, fmt.Errorf("load %s snapshots: %w", kind, err)
	}
	out := make([]T, 0, len(byKey))
	for _, k := range keys {
		if v, ok := byKey[k]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

var _ drepo.SnapshotStore = (*RedisSnapshotStore)(nil)
