package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	icache "MarketPulse/internal/service/cache"
	applogger "MarketPulse/pkg/logger"
)

const (
	StatusHit     = "hit"
	StatusPending = "pending"
)

// KeyRefresher refreshes a single cache key synchronously.
type KeyRefresher interface {
	RefreshKey(ctx context.Context, key string) error
}

// Lookup is the read-path answer. Pending lookups carry the canned payload
// and zero timestamps.
type Lookup[T any] struct {
	Key         string    `json:"key"`
	Payload     T         `json:"payload"`
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generatedAt,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

func (l Lookup[T]) Hit() bool { return l.Status == StatusHit }

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	name      string
	workers   int
	queueSize int
	timeout   time.Duration
	log       *applogger.Logger
	metrics   drepo.Metrics
	accept    func(key string) bool
}

func WithFacadeName(name string) FacadeOption {
	return func(o *facadeOptions) { o.name = name }
}

func WithFacadeWorkers(n int) FacadeOption {
	return func(o *facadeOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithFacadeQueueSize(n int) FacadeOption {
	return func(o *facadeOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithFacadeRefreshTimeout bounds each background refresh.
func WithFacadeRefreshTimeout(d time.Duration) FacadeOption {
	return func(o *facadeOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithFacadeKeyFilter limits background refreshes to keys accepted by fn.
// Rejected misses still get the pending payload.
func WithFacadeKeyFilter(fn func(key string) bool) FacadeOption {
	return func(o *facadeOptions) { o.accept = fn }
}

func WithFacadeLogger(l *applogger.Logger) FacadeOption {
	return func(o *facadeOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func WithFacadeMetrics(m drepo.Metrics) FacadeOption {
	return func(o *facadeOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// QueryFacade serves reads from a FreshnessCache without ever blocking on
// a provider. A miss returns the fallback payload and schedules at most one
// background refresh per key.
type QueryFacade[T any] struct {
	opts      facadeOptions
	cache     *icache.FreshnessCache[T]
	refresher KeyRefresher
	fallback  func(key string) T

	mu       sync.Mutex
	inflight map[string]struct{}
	queue    chan string
	wg       sync.WaitGroup
}

func NewQueryFacade[T any](cache *icache.FreshnessCache[T], refresher KeyRefresher, fallback func(string) T, opts ...FacadeOption) *QueryFacade[T] {
	o := facadeOptions{
		name:      cache.Name(),
		workers:   2,
		queueSize: 64,
		timeout:   2 * time.Minute,
		log:       applogger.NewNop(),
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With(applogger.String("facade", o.name))
	return &QueryFacade[T]{
		opts:      o,
		cache:     cache,
		refresher: refresher,
		fallback:  fallback,
		inflight:  make(map[string]struct{}),
		queue:     make(chan string, o.queueSize),
	}
}

// GetCached never blocks on a refresh.
func (f *QueryFacade[T]) GetCached(key string) Lookup[T] {
	key = icache.NormalizeKey(key)
	if e, ok := f.cache.Get(key); ok {
		f.opts.metrics.RecordCacheLookup(f.opts.name, true)
		return Lookup[T]{
			Key:         key,
			Payload:     e.Payload,
			Status:      StatusHit,
			GeneratedAt: e.GeneratedAt,
			ExpiresAt:   e.ExpiresAt,
		}
	}

	f.opts.metrics.RecordCacheLookup(f.opts.name, false)
	switch {
	case key == "":
	case f.opts.accept != nil && !f.opts.accept(key):
		f.opts.log.Debug("facade.untracked_key", applogger.String("key", key))
	default:
		f.enqueue(key)
	}
	return Lookup[T]{Key: key, Payload: f.fallback(key), Status: StatusPending}
}

// Pending reports whether a background refresh for key is queued or running.
func (f *QueryFacade[T]) Pending(key string) bool {
	key = icache.NormalizeKey(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.inflight[key]
	return ok
}

func (f *QueryFacade[T]) enqueue(key string) {
	f.mu.Lock()
	if _, ok := f.inflight[key]; ok {
		f.mu.Unlock()
		return
	}
	f.inflight[key] = struct{}{}
	f.mu.Unlock()

	select {
	case f.queue <- key:
		f.opts.log.Debug("facade.enqueued", applogger.String("key", key))
	default:
		f.done(key)
		f.opts.metrics.RecordError(f.opts.name + "_queue_full")
		f.opts.log.Warn("facade.queue_full", applogger.String("key", key))
	}
}

func (f *QueryFacade[T]) done(key string) {
	f.mu.Lock()
	delete(f.inflight, key)
	f.mu.Unlock()
}

// Start launches the refresh workers. They exit when ctx is cancelled.
func (f *QueryFacade[T]) Start(ctx context.Context) {
	for i := 0; i < f.opts.workers; i++ {
		f.wg.Add(1)
		go f.worker(ctx)
	}
	f.opts.log.Info("facade.started", applogger.Int("workers", f.opts.workers))
}

// Wait blocks until every worker has exited.
func (f *QueryFacade[T]) Wait() { f.wg.Wait() }

func (f *QueryFacade[T]) worker(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-f.queue:
			f.refresh(ctx, key)
		}
	}
}

func (f *QueryFacade[T]) refresh(ctx context.Context, key string) {
	defer f.done(key)
	defer func() {
		if r := recover(); r != nil {
			f.opts.log.Error("facade.refresh_panic", applogger.String("key", key), applogger.Any("panic", r))
		}
	}()

	rctx, cancel := context.WithTimeout(ctx, f.opts.timeout)
	defer cancel()

	err := f.refresher.RefreshKey(rctx, key)
	switch {
	case err == nil:
		f.opts.log.Debug("facade.refreshed", applogger.String("key", key))
	case errors.Is(err, models.ErrRefreshInProgress):
		// A running cycle will most likely fill the key; the next miss retries.
		f.opts.log.Debug("facade.refresh_busy", applogger.String("key", key))
	default:
		f.opts.log.Warn("facade.refresh_failed", applogger.String("key", key), applogger.Error(err))
	}
}
