package cache

import (
	"errors"
	"time"

	"MarketPulse/internal/domain/models"
)

var ErrInvalidTTL = errors.New("cache: ttl must be positive")

// Entry is one cached payload with its freshness window.
type Entry[T any] struct {
	Key         string    `json:"key"`
	Payload     T         `json:"payload"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ValidAt reports whether the entry is still fresh at now.
func (e Entry[T]) ValidAt(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Option configures a FreshnessCache.
type Option func(*options)

type options struct {
	name string
	now  func() time.Time
}

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock injects the time source used for every freshness decision.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NormalizeKey is the single key canonicalization used by every cache.
func NormalizeKey(key string) string { return models.NormalizeAsset(key) }
