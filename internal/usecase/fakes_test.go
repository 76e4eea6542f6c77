package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeProvider struct {
	name       string
	configured bool
	text       string
	err        error
	hang       bool

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Name() string     { return p.name }
func (p *fakeProvider) Configured() bool { return p.configured }

func (p *fakeProvider) GenerateAnalysis(ctx context.Context, in models.AssetContext) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.err != nil {
		return "", p.err
	}
	return p.text, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

const validAnalysis = `{"globalNewsSummary":"news","userCommentsSummary":"comments","marketSentimentSummary":"sentiment","finalSummary":"final"}`

type fakeQuoteSource struct {
	name  string
	quote models.RawQuote
	err   error
	calls int
}

func (s *fakeQuoteSource) Name() string { return s.name }

func (s *fakeQuoteSource) FetchQuote(ctx context.Context, symbol string, assetType models.AssetType) (models.RawQuote, error) {
	s.calls++
	if s.err != nil {
		return models.RawQuote{}, s.err
	}
	q := s.quote
	q.Symbol = symbol
	q.Source = s.name
	return q, nil
}

type fakeVotes struct {
	sentiment models.SentimentTally
	intents   models.IntentTally
	err       error
}

func (v *fakeVotes) ReadRecentSentiment(ctx context.Context, asset string, window time.Duration) (models.SentimentTally, error) {
	return v.sentiment, v.err
}

func (v *fakeVotes) ReadRecentIntents(ctx context.Context, asset string, window time.Duration) (models.IntentTally, error) {
	return v.intents, v.err
}

type fakeComments struct {
	comments []models.Comment
	err      error
}

func (f *fakeComments) ReadRecentComments(ctx context.Context, asset string, window time.Duration, limit int) ([]models.Comment, error) {
	return f.comments, f.err
}

type fakeNews struct {
	headlines []string
	err       error
}

func (f *fakeNews) ReadRecentHeadlines(ctx context.Context, asset string, limit int) ([]string, error) {
	return f.headlines, f.err
}

type fakeSnapshots struct {
	mu        sync.Mutex
	summaries []models.IntelligenceSummary
	quotes    []models.MarketQuote
}

func (f *fakeSnapshots) UpsertSummary(ctx context.Context, s models.IntelligenceSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return nil
}

func (f *fakeSnapshots) LoadSummaries(ctx context.Context) ([]models.IntelligenceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.IntelligenceSummary(nil), f.summaries...), nil
}

func (f *fakeSnapshots) UpsertQuote(ctx context.Context, q models.MarketQuote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = append(f.quotes, q)
	return nil
}

func (f *fakeSnapshots) LoadQuotes(ctx context.Context) ([]models.MarketQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MarketQuote(nil), f.quotes...), nil
}

type fakeRefreshLog struct {
	mu      sync.Mutex
	records []models.RefreshRecord
}

func (f *fakeRefreshLog) Record(ctx context.Context, rec models.RefreshRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRefreshLog) Close() error { return nil }

func (f *fakeRefreshLog) Records() []models.RefreshRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RefreshRecord(nil), f.records...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.RefreshEvent
}

func (f *fakeEvents) PublishRefresh(ctx context.Context, ev models.RefreshEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) Close() error { return nil }

func (f *fakeEvents) Events() []models.RefreshEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RefreshEvent(nil), f.events...)
}

type fakeMetrics struct {
	mu       sync.Mutex
	refresh  map[string]int
	lookups  map[bool]int
	dropped  int
	swept    int
	errCount map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{refresh: map[string]int{}, lookups: map[bool]int{}, errCount: map[string]int{}}
}

func (m *fakeMetrics) RecordRefresh(cache, tier, outcome string) {
	m.mu.Lock()
	m.refresh[cache+"/"+tier+"/"+outcome]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordCacheLookup(cache string, hit bool) {
	m.mu.Lock()
	m.lookups[hit]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRunDropped(cache string) {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordSwept(cache string, n int) {
	m.mu.Lock()
	m.swept += n
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errCount[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(op string, seconds float64) {}

func (m *fakeMetrics) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// scriptedRefresher records the targets it is asked to refresh and can
// block, fail or panic per key.
type scriptedRefresher struct {
	mu      sync.Mutex
	seen    []string
	fail    map[string]error
	panicOn map[string]bool
	block   chan struct{}
	blockOn map[string]bool
	started chan string
}

func (r *scriptedRefresher) Refresh(ctx context.Context, t models.Target) (RefreshOutcome, error) {
	r.mu.Lock()
	r.seen = append(r.seen, t.Key)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- t.Key
	}
	if r.block != nil && (r.blockOn == nil || r.blockOn[t.Key]) {
		<-r.block
	}
	if r.panicOn[t.Key] {
		panic("boom " + t.Key)
	}
	if err := r.fail[t.Key]; err != nil {
		return RefreshOutcome{}, err
	}
	at := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	return RefreshOutcome{Tier: "primary-ai", Outcome: OutcomeOK, GeneratedAt: at, ExpiresAt: at.Add(time.Hour)}, nil
}

func (r *scriptedRefresher) Seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

var errBoom = errors.New("boom")
