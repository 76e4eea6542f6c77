package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TargetSource lists the refreshable targets of one cache.
type TargetSource interface {
	Targets() []models.Target
}

// StaticTargets is a fixed target list.
type StaticTargets []models.Target

func (s StaticTargets) Targets() []models.Target { return s }

// Selector picks the targets refreshed by one scheduled cycle.
type Selector interface {
	Select(targets []models.Target, now time.Time) []models.Target
}

// RoundRobin refreshes one target per cycle. The index is derived from wall
// time (floor(now / cadence) mod N), so restarts keep the rotation.
type RoundRobin struct {
	Cadence time.Duration
}

func (r RoundRobin) Select(targets []models.Target, now time.Time) []models.Target {
	if len(targets) == 0 || r.Cadence <= 0 {
		return nil
	}
	tick := now.UnixNano() / int64(r.Cadence)
	idx := tick % int64(len(targets))
	if idx < 0 {
		idx += int64(len(targets))
	}
	return []models.Target{targets[idx]}
}

// AllTargets refreshes every target in list order.
type AllTargets struct{}

func (AllTargets) Select(targets []models.Target, _ time.Time) []models.Target { return targets }

// Sweeper is the cache housekeeping hook run after each cycle.
type Sweeper interface {
	SweepExpired() int
}

// RunReport summarizes one cycle.
type RunReport struct {
	RunID     string
	Cache     string
	StartedAt time.Time
	Duration  time.Duration
	Targets   int
	Succeeded int
	Failed    int
	Swept     int
}

type SchedulerOption func(*Scheduler)

// WithConcurrency bounds parallel target refreshes. 1 keeps list order.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSchedulerLogger(l *applogger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSchedulerMetrics(m drepo.Metrics) SchedulerOption {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithRefreshLog(r drepo.RefreshLog) SchedulerOption {
	return func(s *Scheduler) { s.refreshLog = r }
}

func WithEventPublisher(p drepo.EventPublisher) SchedulerOption {
	return func(s *Scheduler) { s.events = p }
}

// Scheduler periodically refreshes the targets of one cache. At most one
// cycle runs at a time and overlapping cycle triggers are dropped, never
// queued. Single-key refreshes hold a per-key guard instead, so a slow
// read-path refresh never costs a scheduled tick its slot.
type Scheduler struct {
	name        string
	cadence     time.Duration
	targets     TargetSource
	selector    Selector
	refresher   Refresher
	sweeper     Sweeper
	concurrency int
	log         *applogger.Logger
	metrics     drepo.Metrics
	refreshLog  drepo.RefreshLog
	events      drepo.EventPublisher
	now         func() time.Time

	running atomic.Bool
	keysMu  sync.Mutex
	keys    map[string]struct{}
	baseMu  sync.Mutex
	base    context.Context
	bg      sync.WaitGroup
}

func NewScheduler(
	name string,
	cadence time.Duration,
	targets TargetSource,
	selector Selector,
	refresher Refresher,
	sweeper Sweeper,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		name:        name,
		cadence:     cadence,
		targets:     targets,
		selector:    selector,
		refresher:   refresher,
		sweeper:     sweeper,
		concurrency: 1,
		keys:        make(map[string]struct{}),
		log:         applogger.NewNop(),
		metrics:     nopMetrics{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(applogger.String("cache", name))
	return s
}

func (s *Scheduler) Name() string { return s.name }

// Targets returns the configured target list.
func (s *Scheduler) Targets() []models.Target { return s.targets.Targets() }

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Start runs a cycle immediately and then on every cadence tick until ctx
// is cancelled. It blocks.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cadence <= 0 {
		return fmt.Errorf("scheduler %s: cadence must be positive", s.name)
	}
	s.baseMu.Lock()
	s.base = ctx
	s.baseMu.Unlock()

	s.log.Info("scheduler.started", applogger.Duration("cadence", s.cadence), applogger.Int("targets", len(s.targets.Targets())))
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.bg.Wait()
			s.log.Info("scheduler.stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs one scheduled cycle with the configured selector. The
// boolean is false when the cycle was dropped because another was running.
func (s *Scheduler) RunOnce(ctx context.Context) (RunReport, bool) {
	return s.guarded(ctx, func(now time.Time) []models.Target {
		return s.selector.Select(s.targets.Targets(), now)
	})
}

// RunAll refreshes every target regardless of the selector.
func (s *Scheduler) RunAll(ctx context.Context) (RunReport, bool) {
	return s.guarded(ctx, func(time.Time) []models.Target {
		return s.targets.Targets()
	})
}

// TriggerNow starts a scheduled-style cycle in the background. It returns
// false, without waiting, when a cycle is already running.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.dropped("trigger")
		return false
	}
	runCtx := s.detach(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.running.Store(false)
		s.run(runCtx, s.selector.Select(s.targets.Targets(), s.now()))
	}()
	return true
}

// RefreshKey refreshes a single key synchronously. It returns
// ErrRefreshInProgress while a cycle runs or the same key is already being
// refreshed. Keys outside the configured list are refreshed with an
// inferred asset type.
func (s *Scheduler) RefreshKey(ctx context.Context, key string) error {
	target, err := s.target(key)
	if err != nil {
		return err
	}
	if !s.acquireKey(target.Key) {
		return models.ErrRefreshInProgress
	}
	defer s.releaseKey(target.Key)
	return s.refreshOne(ctx, uuid.NewString(), target)
}

// TriggerKey is the asynchronous form of RefreshKey.
func (s *Scheduler) TriggerKey(ctx context.Context, key string) error {
	target, err := s.target(key)
	if err != nil {
		return err
	}
	if !s.acquireKey(target.Key) {
		return models.ErrRefreshInProgress
	}
	runCtx := s.detach(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.releaseKey(target.Key)
		_ = s.refreshOne(runCtx, uuid.NewString(), target)
	}()
	return nil
}

// Tracks reports whether key is one of the configured targets.
func (s *Scheduler) Tracks(key string) bool {
	key = models.NormalizeAsset(key)
	for _, t := range s.targets.Targets() {
		if t.Key == key {
			return true
		}
	}
	return false
}

func (s *Scheduler) acquireKey(key string) bool {
	if s.running.Load() {
		s.dropped("key")
		return false
	}
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	if _, ok := s.keys[key]; ok {
		s.dropped("key")
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *Scheduler) releaseKey(key string) {
	s.keysMu.Lock()
	delete(s.keys, key)
	s.keysMu.Unlock()
}

func (s *Scheduler) target(key string) (models.Target, error) {
	key = models.NormalizeAsset(key)
	if key == "" {
		return models.Target{}, fmt.Errorf("refresh %s: empty key", s.name)
	}
	for _, t := range s.targets.Targets() {
		if t.Key == key {
			return t, nil
		}
	}
	return models.NewTarget(key, models.InferAssetType(key)), nil
}

// Wait blocks until background runs started by TriggerNow or TriggerKey finish.
func (s *Scheduler) Wait() { s.bg.Wait() }

func (s *Scheduler) guarded(ctx context.Context, pick func(time.Time) []models.Target) (RunReport, bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.dropped("tick")
		return RunReport{}, false
	}
	defer s.running.Store(false)
	return s.run(ctx, pick(s.now())), true
}

func (s *Scheduler) run(ctx context.Context, targets []models.Target) RunReport {
	start := time.Now()
	report := RunReport{
		RunID:     uuid.NewString(),
		Cache:     s.name,
		StartedAt: s.now(),
		Targets:   len(targets),
	}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := s.refreshOne(ctx, report.RunID, t); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Failed = int(failed.Load())
	report.Succeeded = report.Targets - report.Failed
	if s.sweeper != nil {
		report.Swept = s.sweeper.SweepExpired()
		s.metrics.RecordSwept(s.name, report.Swept)
	}
	report.Duration = time.Since(start)
	s.metrics.RecordLatency(s.name+"_cycle", report.Duration.Seconds())

	s.log.Info("scheduler.cycle_done",
		applogger.String("run_id", report.RunID),
		applogger.Int("targets", report.Targets),
		applogger.Int("failed", report.Failed),
		applogger.Int("swept", report.Swept),
		applogger.Duration("took", report.Duration),
	)
	return report
}

// refreshOne never panics; per-target failures are contained here.
func (s *Scheduler) refreshOne(ctx context.Context, runID string, t models.Target) (err error) {
	start := time.Now()
	var out RefreshOutcome

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh %s panic: %v", t.Key, r)
			out = RefreshOutcome{Outcome: OutcomePanic}
			s.log.Error("scheduler.refresh_panic",
				applogger.String("key", t.Key),
				applogger.Any("panic", r),
				applogger.String("stack", string(debug.Stack())),
			)
		}
		s.record(ctx, runID, t, out, err, time.Since(start))
	}()

	out, err = s.refresher.Refresh(ctx, t)
	if err != nil && out.Outcome == "" {
		out.Outcome = OutcomeFailed
	}
	return err
}

func (s *Scheduler) record(ctx context.Context, runID string, t models.Target, out RefreshOutcome, err error, took time.Duration) {
	tier := out.Tier
	if tier == "" {
		tier = "none"
	}
	s.metrics.RecordRefresh(s.name, tier, out.Outcome)
	s.metrics.RecordLatency(s.name+"_refresh", took.Seconds())

	fields := []applogger.Field{
		applogger.String("run_id", runID),
		applogger.String("key", t.Key),
		applogger.String("tier", tier),
		applogger.String("outcome", out.Outcome),
		applogger.Duration("took", took),
	}
	if err != nil {
		s.metrics.RecordError(s.name + "_refresh")
		s.log.Warn("scheduler.refresh_failed", append(fields, applogger.Error(err))...)
	} else {
		s.log.Debug("scheduler.refreshed", fields...)
	}

	// Audit and events outlive a cancelled cycle context.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if s.refreshLog != nil {
		rec := models.RefreshRecord{
			RunID:      runID,
			Cache:      s.name,
			Key:        t.Key,
			Tier:       tier,
			Outcome:    out.Outcome,
			DurationMS: took.Milliseconds(),
			At:         s.now(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if lerr := s.refreshLog.Record(sinkCtx, rec); lerr != nil {
			s.log.Warn("scheduler.refresh_log_failed", applogger.Error(lerr))
		}
	}
	if s.events != nil && out.Stored() {
		ev := models.RefreshEvent{
			RunID:       runID,
			Cache:       s.name,
			Key:         t.Key,
			Tier:        tier,
			Outcome:     out.Outcome,
			GeneratedAt: out.GeneratedAt,
			ExpiresAt:   out.ExpiresAt,
		}
		if perr := s.events.PublishRefresh(sinkCtx, ev); perr != nil {
			s.log.Warn("scheduler.publish_failed", applogger.Error(perr))
		}
	}
}

func (s *Scheduler) dropped(trigger string) {
	s.metrics.RecordRunDropped(s.name)
	s.log.Info("scheduler.run_dropped", applogger.String("trigger", trigger))
}

// detach keeps a manual run alive after the caller's request ends while
// still honouring scheduler shutdown.
func (s *Scheduler) detach(ctx context.Context) context.Context {
	s.baseMu.Lock()
	defer s.baseMu.Unlock()
	if s.base != nil {
		return s.base
	}
	return context.WithoutCancel(ctx)
}

type nopMetrics struct{}

func (nopMetrics) RecordRefresh(string, string, string) {}
func (nopMetrics) RecordCacheLookup(string, bool)       {}
func (nopMetrics) RecordRunDropped(string)              {}
func (nopMetrics) RecordSwept(string, int)              {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLatency(string, float64)        {}
