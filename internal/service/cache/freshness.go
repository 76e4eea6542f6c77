package cache

import (
	"sort"
	"sync"
	"time"
)

// FreshnessCache maps a canonical key to its last successfully refreshed
// payload. Reads never mutate; expired entries are logically absent until
// SweepExpired removes them.
type FreshnessCache[T any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu sync.RWMutex
	m  map[string]Entry[T]
}

func New[T any](ttl time.Duration, opts ...Option) (*FreshnessCache[T], error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	o := options{name: "cache", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &FreshnessCache[T]{
		name: o.name,
		ttl:  ttl,
		now:  o.now,
		m:    make(map[string]Entry[T]),
	}, nil
}

func (c *FreshnessCache[T]) Name() string       { return c.name }
func (c *FreshnessCache[T]) TTL() time.Duration { return c.ttl }

// Get returns the entry only while now < ExpiresAt.
func (c *FreshnessCache[T]) Get(key string) (Entry[T], bool) {
	key = NormalizeKey(key)
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || !e.ValidAt(c.now()) {
		return Entry[T]{}, false
	}
	return e, true
}

// Set overwrites the entry for key with a fresh window starting now.
func (c *FreshnessCache[T]) Set(key string, payload T) Entry[T] {
	return c.put(key, payload, c.now())
}

// Restore seeds an entry from a durable snapshot, keeping its original
// generation time. Snapshots already past their window are ignored.
func (c *FreshnessCache[T]) Restore(key string, payload T, generatedAt time.Time) (Entry[T], bool) {
	if generatedAt.IsZero() || !c.now().Before(generatedAt.Add(c.ttl)) {
		return Entry[T]{}, false
	}
	key = NormalizeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[key]; ok && !cur.GeneratedAt.Before(generatedAt) {
		return cur, false
	}
	e := Entry[T]{Key: key, Payload: payload, GeneratedAt: generatedAt, ExpiresAt: generatedAt.Add(c.ttl)}
	c.m[key] = e
	return e, true
}

func (c *FreshnessCache[T]) put(key string, payload T, at time.Time) Entry[T] {
	key = NormalizeKey(key)
	e := Entry[T]{Key: key, Payload: payload, GeneratedAt: at, ExpiresAt: at.Add(c.ttl)}
	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
	return e
}

// SweepExpired deletes every entry with ExpiresAt <= now and returns how many were removed.
func (c *FreshnessCache[T]) SweepExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if !e.ValidAt(now) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// Len counts stored entries, including expired ones not yet swept.
func (c *FreshnessCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Keys lists the keys of currently valid entries in sorted order.
func (c *FreshnessCache[T]) Keys() []string {
	now := c.now()
	c.mu.RLock()
	out := make([]string, 0, len(c.m))
	for k, e := range c.m {
		if e.ValidAt(now) {
			out = append(out, k)
		}
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
