package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/services/aggregation"
	"MarketPulse/internal/usecase"
	pkgcache "MarketPulse/pkg/cache"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type IntelligenceReader interface {
	GetCached(key string) usecase.Lookup[models.IntelligenceSummary]
}

type QuoteReader interface {
	GetCached(key string) usecase.Lookup[models.MarketQuote]
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd models.RefreshCommand) error
}

// SentimentView is the live breakdown served by /api/sentiment.
type SentimentView struct {
	Asset       string                    `json:"asset"`
	WindowHours int                       `json:"windowHours"`
	Sentiment   models.SentimentBreakdown `json:"sentiment"`
	Intent      models.IntentBreakdown    `json:"intent"`
	ComputedAt  time.Time                 `json:"computedAt"`
}

// IntelligenceHandler serves the cached read API.
type IntelligenceHandler struct {
	logger       *xlogger.Logger
	intelligence IntelligenceReader
	quotes       QuoteReader
	votes        drepo.VoteReader
	dispatcher   Dispatcher
	history      drepo.RefreshHistory
	respCache    pkgcache.Service
	respTTL      time.Duration
	middleware   []echo.MiddlewareFunc
}

type Option func(*IntelligenceHandler)

// WithResponseCache caches computed sentiment responses for ttl.
func WithResponseCache(c pkgcache.Service, ttl time.Duration) Option {
	return func(h *IntelligenceHandler) {
		h.respCache = c
		h.respTTL = ttl
	}
}

// WithMiddleware applies mw to every /api route.
func WithMiddleware(mw ...echo.MiddlewareFunc) Option {
	return func(h *IntelligenceHandler) { h.middleware = append(h.middleware, mw...) }
}

func WithRefreshHistory(r drepo.RefreshHistory) Option {
	return func(h *IntelligenceHandler) { h.history = r }
}

func NewIntelligenceHandler(logger *xlogger.Logger, intelligence IntelligenceReader, quotes QuoteReader, votes drepo.VoteReader, dispatcher Dispatcher, opts ...Option) *IntelligenceHandler {
	h := &IntelligenceHandler{
		logger:       logger,
		intelligence: intelligence,
		quotes:       quotes,
		votes:        votes,
		dispatcher:   dispatcher,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IntelligenceHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.middleware...)
	g.GET("/intelligence/:asset", h.Intelligence)
	g.GET("/quotes/:symbol", h.Quote)
	g.GET("/sentiment/:asset", h.Sentiment)
	g.POST("/refresh", h.Refresh)
	g.GET("/refresh/history", h.RefreshHistory)
}

func (h *IntelligenceHandler) Intelligence(c echo.Context) error {
	req := &models.IntelligenceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.intelligence.GetCached(req.Asset)
	setFreshnessHeaders(c, res.Status, res.ExpiresAt)
	return xhttp.SuccessResponse(c, res)
}

func (h *IntelligenceHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.quotes.GetCached(req.Symbol)
	setFreshnessHeaders(c, res.Status, res.ExpiresAt)
	return xhttp.SuccessResponse(c, res)
}

// Sentiment computes the breakdown over the last WindowHours of votes. A
// failing store answers with the neutral priors.
func (h *IntelligenceHandler) Sentiment(c echo.Context) error {
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asset := models.NormalizeAsset(req.Asset)
	ctx := c.Request().Context()
	cacheKey := pkgcache.GenerateKey("sentiment", asset, fmt.Sprint(req.WindowHours))

	if h.respCache != nil {
		var cached SentimentView
		if err := h.respCache.Get(ctx, cacheKey, &cached); err == nil {
			return xhttp.SuccessResponse(c, cached)
		}
	}

	window := time.Duration(req.WindowHours) * time.Hour
	st, err := h.votes.ReadRecentSentiment(ctx, asset, window)
	if err != nil {
		h.logger.Warn("api.sentiment read error", xlogger.String("asset", asset), xlogger.Error(err))
		st = models.SentimentTally{}
	}
	it, err := h.votes.ReadRecentIntents(ctx, asset, window)
	if err != nil {
		h.logger.Warn("api.intents read error", xlogger.String("asset", asset), xlogger.Error(err))
		it = models.IntentTally{}
	}

	view := SentimentView{
		Asset:       asset,
		WindowHours: req.WindowHours,
		Sentiment:   aggregation.ComputeSentimentBreakdown(st),
		Intent:      aggregation.ComputeIntentBreakdown(it),
		ComputedAt:  time.Now().UTC(),
	}
	if h.respCache != nil {
		if err := h.respCache.Set(ctx, cacheKey, view, h.respTTL); err != nil {
			h.logger.Debug("api.sentiment cache set error", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, view)
}

// Refresh starts a manual refresh and answers 202, or 409 while a run for
// that cache is in progress.
func (h *IntelligenceHandler) Refresh(c echo.Context) error {
	req := &models.RefreshCommand{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	err := h.dispatcher.Dispatch(c.Request().Context(), *req)
	switch {
	case err == nil:
		h.logger.Info("api.refresh accepted", xlogger.String("cache", req.Cache), xlogger.String("asset", req.Asset))
		return xhttp.AcceptedResponse(c, req)
	case errors.Is(err, models.ErrRefreshInProgress):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("a refresh is already running").WithParam("cache", req.Cache))
	case errors.Is(err, models.ErrUnknownCache):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown cache %q", req.Cache))
	default:
		h.logger.Error("api.refresh dispatch error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("refresh failed").WithError(err))
	}
}

func (h *IntelligenceHandler) RefreshHistory(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("refresh history is not enabled"))
	}
	req := &models.RefreshHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.Recent(c.Request().Context(), req.Cache, models.NormalizeAsset(req.Key), req.Limit)
	if err != nil {
		h.logger.Error("api.refresh_history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("refresh history unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, rows)
}

func setFreshnessHeaders(c echo.Context, status string, expiresAt time.Time) {
	hdr := c.Response().Header()
	hdr.Set("X-Cache-Status", status)
	if status != usecase.StatusHit || expiresAt.IsZero() {
		hdr.Set(echo.HeaderCacheControl, "no-store")
		return
	}
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	hdr.Set(echo.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", min(maxAge, 60)))
	hdr.Set("Expires", expiresAt.UTC().Format(http.TimeFormat))
}
