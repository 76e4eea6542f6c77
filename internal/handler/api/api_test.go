package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	pkgcache "MarketPulse/pkg/cache"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntel struct{ hits map[string]models.IntelligenceSummary }

func (f fakeIntel) GetCached(key string) usecase.Lookup[models.IntelligenceSummary] {
	key = models.NormalizeAsset(key)
	if s, ok := f.hits[key]; ok {
		return usecase.Lookup[models.IntelligenceSummary]{Key: key, Payload: s, Status: usecase.StatusHit, GeneratedAt: s.GeneratedAt, ExpiresAt: s.GeneratedAt.Add(24 * time.Hour)}
	}
	return usecase.Lookup[models.IntelligenceSummary]{Key: key, Payload: models.PendingSummary(key), Status: usecase.StatusPending}
}

type fakeQuotes struct{}

func (fakeQuotes) GetCached(key string) usecase.Lookup[models.MarketQuote] {
	return usecase.Lookup[models.MarketQuote]{Key: key, Payload: models.UnknownQuote(key, models.QuoteSourcePending), Status: usecase.StatusPending}
}

type fakeVotes struct {
	calls int
	err   error
}

func (f *fakeVotes) ReadRecentSentiment(ctx context.Context, asset string, window time.Duration) (models.SentimentTally, error) {
	f.calls++
	return models.SentimentTally{Bullish: 1, Bearish: 3}, f.err
}

func (f *fakeVotes) ReadRecentIntents(ctx context.Context, asset string, window time.Duration) (models.IntentTally, error) {
	return models.IntentTally{Buy: 2}, f.err
}

type fakeDispatcher struct {
	err error
	got []models.RefreshCommand
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, cmd models.RefreshCommand) error {
	f.got = append(f.got, cmd)
	return f.err
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func newTestServer(h *IntelligenceHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func TestIntelligenceHitAndPending(t *testing.T) {
	at := time.Now().UTC().Truncate(time.Second)
	intel := fakeIntel{hits: map[string]models.IntelligenceSummary{"BTC": {Asset: "BTC", FinalSummary: "up only", GeneratedAt: at}}}
	e := newTestServer(NewIntelligenceHandler(xlogger.NewNop(), intel, fakeQuotes{}, &fakeVotes{}, &fakeDispatcher{}))

	rec, env := serve(t, e, http.MethodGet, "/api/intelligence/btc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache-Status"))
	var hit usecase.Lookup[models.IntelligenceSummary]
	require.NoError(t, json.Unmarshal(env.Data, &hit))
	assert.Equal(t, "up only", hit.Payload.FinalSummary)

	rec, env = serve(t, e, http.MethodGet, "/api/intelligence/eth", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))
	var pending usecase.Lookup[models.IntelligenceSummary]
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Equal(t, usecase.StatusPending, pending.Status)
	assert.Equal(t, models.TierPending, pending.Payload.Provider)
	assert.NotEmpty(t, pending.Payload.GlobalNewsSummary)
}

func TestQuoteRejectsOverlongSymbol(t *testing.T) {
	e := newTestServer(NewIntelligenceHandler(xlogger.NewNop(), fakeIntel{}, fakeQuotes{}, &fakeVotes{}, &fakeDispatcher{}))
	rec, _ := serve(t, e, http.MethodGet, "/api/quotes/"+strings.Repeat("X", 40), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSentimentUsesResponseCache(t *testing.T) {
	votes := &fakeVotes{}
	h := NewIntelligenceHandler(xlogger.NewNop(), fakeIntel{}, fakeQuotes{}, votes, &fakeDispatcher{},
		WithResponseCache(pkgcache.NewMemoryCache(), time.Minute))
	e := newTestServer(h)

	rec, env := serve(t, e, http.MethodGet, "/api/sentiment/aapl?windowHours=6", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var view SentimentView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "AAPL", view.Asset)
	assert.Equal(t, 6, view.WindowHours)
	assert.Equal(t, 25.0, view.Sentiment.BullishPercent)
	assert.Equal(t, 100.0, view.Intent.BuyPercent)

	serve(t, e, http.MethodGet, "/api/sentiment/aapl?windowHours=6", "")
	assert.Equal(t, 1, votes.calls)
}

func TestSentimentFallsBackToNeutral(t *testing.T) {
	e := newTestServer(NewIntelligenceHandler(xlogger.NewNop(), fakeIntel{}, fakeQuotes{}, &fakeVotes{err: errors.New("down")}, &fakeDispatcher{}))
	_, env := serve(t, e, http.MethodGet, "/api/sentiment/aapl", "")
	var view SentimentView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 24, view.WindowHours)
	assert.Equal(t, 50.0, view.Sentiment.BullishPercent)
	assert.Equal(t, 33.4, view.Intent.HoldPercent)
}

func TestRefreshStatuses(t *testing.T) {
	d := &fakeDispatcher{}
	e := newTestServer(NewIntelligenceHandler(xlogger.NewNop(), fakeIntel{}, fakeQuotes{}, &fakeVotes{}, d))

	rec, _ := serve(t, e, http.MethodPost, "/api/refresh", `{"cache":"quotes","asset":"msft"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, d.got, 1)
	assert.Equal(t, "quotes", d.got[0].Cache)

	rec, _ = serve(t, e, http.MethodPost, "/api/refresh", `{}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "intelligence", d.got[1].Cache)

	d.err = models.ErrRefreshInProgress
	rec, _ = serve(t, e, http.MethodPost, "/api/refresh", `{"cache":"intelligence"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = serve(t, e, http.MethodPost, "/api/refresh", `{"cache":"weather"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshHistoryDisabled(t *testing.T) {
	e := newTestServer(NewIntelligenceHandler(xlogger.NewNop(), fakeIntel{}, fakeQuotes{}, &fakeVotes{}, &fakeDispatcher{}))
	rec, _ := serve(t, e, http.MethodGet, "/api/refresh/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeHistory struct{ cache, key string }

func (f *fakeHistory) Recent(ctx context.Context, cache, key string, limit int) ([]models.RefreshRecord, error) {
	f.cache, f.key = cache, key
	return []models.RefreshRecord{{Cache: cache, Key: "BTC", Outcome: "ok"}}, nil
}

func TestRefreshHistory(t *testing.T) {
	hist := &fakeHistory{}
	e := newTestServer(NewIntelligenceHandler(xlogger.NewNop(), fakeIntel{}, fakeQuotes{}, &fakeVotes{}, &fakeDispatcher{}, WithRefreshHistory(hist)))
	rec, env := serve(t, e, http.MethodGet, "/api/refresh/history?key=btc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "intelligence", hist.cache)
	assert.Equal(t, "BTC", hist.key)
	assert.Contains(t, string(env.Data), `"Outcome":"ok"`)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := ratelimit.New(0.001, 1)
	e := newTestServer(NewIntelligenceHandler(xlogger.NewNop(), fakeIntel{}, fakeQuotes{}, &fakeVotes{}, &fakeDispatcher{},
		WithMiddleware(RateLimit(rl, xlogger.NewNop()))))

	rec, _ := serve(t, e, http.MethodGet, "/api/intelligence/btc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = serve(t, e, http.MethodGet, "/api/intelligence/btc", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

type staticCache struct {
	name string
	keys []string
}

func (s staticCache) Name() string   { return s.name }
func (s staticCache) Keys() []string { return s.keys }

func TestReadiness(t *testing.T) {
	probes := map[string]Probe{
		"mongo": func(context.Context) error { return nil },
	}
	h := NewHealthHandler(probes, staticCache{name: "quotes", keys: []string{"AAPL"}})
	e := echo.New()
	h.RegisterRoutes(e)

	rec, env := serve(t, e, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"quotes":1`)

	probes["redis"] = func(context.Context) error { return errors.New("refused") }
	rec, env = serve(t, e, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), "refused")

	rec, _ = serve(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
