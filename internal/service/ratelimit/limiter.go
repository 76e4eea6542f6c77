package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Keys without an explicit limit
// share the default rate and burst and, with an idle TTL set, are dropped
// once unused for that long.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*entry
	limits    map[string]bucketLimit
	def       bucketLimit
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type entry struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

type bucketLimit struct {
	perSec float64
	burst  int
}

type Option func(*Limiter)

// WithIdleTTL evicts default-limit buckets unused for d. Zero keeps them forever.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) { l.idleTTL = d }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func New(perSec float64, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		m:      make(map[string]*entry),
		limits: make(map[string]bucketLimit),
		def:    bucketLimit{perSec: perSec, burst: burst},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// SetLimit overrides the bucket for key. An existing bucket is resized in place.
func (l *Limiter) SetLimit(key string, perSec float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[key] = bucketLimit{perSec: perSec, burst: burst}
	if e, ok := l.m[key]; ok {
		e.bucket.SetLimit(toLimit(perSec))
		e.bucket.SetBurst(burst)
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Wait blocks until a token is available for key or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweepLocked(now)

	e, ok := l.m[key]
	if !ok {
		bl, found := l.limits[key]
		if !found {
			bl = l.def
		}
		e = &entry{bucket: rate.NewLimiter(toLimit(bl.perSec), bl.burst)}
		l.m[key] = e
	}
	e.lastSeen = now
	return e.bucket
}

// sweepLocked runs at most once per idle TTL. Keys with an explicit limit
// are never evicted.
func (l *Limiter) sweepLocked(now time.Time) {
	if l.idleTTL <= 0 || now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for k, e := range l.m {
		if _, pinned := l.limits[k]; pinned {
			continue
		}
		if now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.m, k)
		}
	}
}

func toLimit(perSec float64) rate.Limit {
	if perSec <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSec)
}
