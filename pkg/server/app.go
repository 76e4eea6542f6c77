package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	icache "MarketPulse/internal/service/cache"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
)

const warmUpTimeout = 15 * time.Second

// Caches groups the two freshness caches.
type Caches struct {
	Intelligence *icache.FreshnessCache[models.IntelligenceSummary]
	Quotes       *icache.FreshnessCache[models.MarketQuote]
}

// Schedulers groups the refresh loop of each cache.
type Schedulers struct {
	Intelligence *usecase.Scheduler
	Quotes       *usecase.Scheduler
}

// Facades groups the read paths of each cache.
type Facades struct {
	Intelligence *usecase.QueryFacade[models.IntelligenceSummary]
	Quotes       *usecase.QueryFacade[models.MarketQuote]
}

// Closer releases one resource during shutdown.
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

// Closers are released in reverse order.
type Closers []Closer

// Consumer bundles the optional Kafka consumer with the handler it serves.
type Consumer struct {
	Kafka   *pkgkafka.Consumer
	Handler pkgkafka.MessageHandler
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	caches     Caches
	snapshots  drepo.SnapshotStore
	schedulers Schedulers
	facades    Facades
	consumer   Consumer
	httpServer *xhttp.Server
	closers    Closers

	cancel context.CancelFunc
	loops  sync.WaitGroup
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	caches Caches,
	snapshots drepo.SnapshotStore,
	schedulers Schedulers,
	facades Facades,
	consumer Consumer,
	httpServer *xhttp.Server,
	closers Closers,
) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		caches:     caches,
		snapshots:  snapshots,
		schedulers: schedulers,
		facades:    facades,
		consumer:   consumer,
		httpServer: httpServer,
		closers:    closers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("app.shutdown_signal")
	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer stop()
	return a.Shutdown(shutdownCtx)
}

// Start restores snapshots and launches every background loop and the HTTP
// server. It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.warmUp(ctx)
	if n := a.intelligenceTargets(); a.cfg.IntelligenceCoverageGap(n) {
		a.log.Warn("intelligence.coverage_gap",
			applogger.Int("targets", n),
			applogger.Duration("cadence", a.cfg.Intelligence.Cadence),
			applogger.Duration("ttl", a.cfg.Intelligence.TTL),
		)
	}

	if a.facades.Intelligence != nil {
		a.facades.Intelligence.Start(ctx)
	}
	if a.facades.Quotes != nil {
		a.facades.Quotes.Start(ctx)
	}
	a.startScheduler(ctx, a.schedulers.Intelligence, a.cfg.Intelligence.Disabled)
	a.startScheduler(ctx, a.schedulers.Quotes, a.cfg.Quotes.Disabled)

	if a.consumer.Kafka != nil && a.consumer.Handler != nil {
		a.consumer.Kafka.RegisterHandler(a.consumer.Handler)
		a.consumer.Kafka.WithConsumerHook(pkgkafka.LoggingHook{Logger: a.log})
		if err := a.consumer.Kafka.Start(); err != nil {
			a.cancel()
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka.refresh_requests", applogger.String("topic", a.consumer.Handler.Topic()))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.cancel()
			return fmt.Errorf("http server: %w", err)
		}
	}
	return nil
}

func (a *App) intelligenceTargets() int {
	if a.schedulers.Intelligence != nil {
		return len(a.schedulers.Intelligence.Targets())
	}
	return len(models.ConfiguredTargets(a.cfg.Assets.Stocks, a.cfg.Assets.Crypto))
}

func (a *App) startScheduler(ctx context.Context, s *usecase.Scheduler, disabled bool) {
	if s == nil {
		return
	}
	if disabled {
		a.log.Info("scheduler.disabled", applogger.String("cache", s.Name()))
		return
	}
	a.loops.Add(1)
	go func() {
		defer a.loops.Done()
		if err := s.Start(ctx); err != nil {
			a.log.Error("scheduler.failed", applogger.String("cache", s.Name()), applogger.Error(err))
		}
	}()
}

// warmUp seeds both caches from the snapshot store. Failures leave the
// caches empty and the first refresh cycle fills them.
func (a *App) warmUp(ctx context.Context) {
	if a.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, warmUpTimeout)
	defer cancel()

	if a.caches.Intelligence != nil {
		summaries, err := a.snapshots.LoadSummaries(ctx)
		if err != nil {
			a.log.Warn("warmup.summaries_failed", applogger.Error(err))
		}
		restored := 0
		for _, s := range summaries {
			if _, ok := a.caches.Intelligence.Restore(s.Asset, s, s.GeneratedAt); ok {
				restored++
			}
		}
		a.log.Info("warmup.intelligence", applogger.Int("loaded", len(summaries)), applogger.Int("restored", restored))
	}

	if a.caches.Quotes != nil {
		quotes, err := a.snapshots.LoadQuotes(ctx)
		if err != nil {
			a.log.Warn("warmup.quotes_failed", applogger.Error(err))
		}
		restored := 0
		for _, q := range quotes {
			if _, ok := a.caches.Quotes.Restore(q.Symbol, q, q.FetchedAt); ok {
				restored++
			}
		}
		a.log.Info("warmup.quotes", applogger.Int("loaded", len(quotes)), applogger.Int("restored", restored))
	}
}

// RefreshNow runs one synchronous refresh outside the schedule: a single
// asset when asset is set, otherwise every configured target.
func (a *App) RefreshNow(ctx context.Context, cache, asset string) (usecase.RunReport, error) {
	var s *usecase.Scheduler
	switch cache {
	case models.CacheIntelligence:
		s = a.schedulers.Intelligence
	case models.CacheQuotes:
		s = a.schedulers.Quotes
	}
	if s == nil {
		return usecase.RunReport{}, fmt.Errorf("%w: %q", models.ErrUnknownCache, cache)
	}

	if asset != "" {
		start := time.Now()
		report := usecase.RunReport{Cache: cache, StartedAt: start, Targets: 1}
		err := s.RefreshKey(ctx, asset)
		report.Duration = time.Since(start)
		if err != nil {
			report.Failed = 1
			return report, err
		}
		report.Succeeded = 1
		return report, nil
	}

	report, ok := s.RunAll(ctx)
	if !ok {
		return report, models.ErrRefreshInProgress
	}
	return report, nil
}

// Shutdown gracefully stops all services.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("app.shutting_down")
	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if a.consumer.Kafka != nil && a.consumer.Handler != nil {
		if err := a.consumer.Kafka.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
		}
	}

	if err := waitFor(ctx, a.waitLoops); err != nil {
		errs = append(errs, fmt.Errorf("background loops: %w", err))
	}

	if err := a.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		a.log.Warn("app.shutdown_incomplete", applogger.Error(err))
		return err
	}
	a.log.Info("app.shutdown_complete")
	return nil
}

func (a *App) waitLoops() {
	a.loops.Wait()
	for _, s := range []*usecase.Scheduler{a.schedulers.Intelligence, a.schedulers.Quotes} {
		if s != nil {
			s.Wait()
		}
	}
	if a.facades.Intelligence != nil {
		a.facades.Intelligence.Wait()
	}
	if a.facades.Quotes != nil {
		a.facades.Quotes.Wait()
	}
}

// Close releases infrastructure clients in reverse registration order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(ctx); err != nil {
			a.log.Warn("app.close_failed", applogger.String("resource", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func waitFor(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
