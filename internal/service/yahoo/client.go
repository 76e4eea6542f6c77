// Package yahoo reads quotes from the Yahoo-style v8 chart endpoint.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/upstream"
	xhttp "MarketPulse/pkg/http"
)

const Name = "yahoo"

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Disabled bool
}

// Client implements service.QuoteSource. It needs no credentials.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

func New(cfg Config, limiter *ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	return &Client{
		cfg: cfg,
		// The chart endpoint rejects requests without a browser-like agent.
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithUserAgent("Mozilla/5.0 (compatible; marketpulse/1.0)")),
		limiter: limiter,
	}
}

func (c *Client) Name() string { return Name }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	Symbol             string   `json:"symbol"`
	ShortName          string   `json:"shortName"`
	LongName           string   `json:"longName"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	RegularMarketOpen  *float64 `json:"regularMarketOpen"`
	DayHigh            *float64 `json:"regularMarketDayHigh"`
	DayLow             *float64 `json:"regularMarketDayLow"`
	ChartPreviousClose *float64 `json:"chartPreviousClose"`
	PreviousClose      *float64 `json:"previousClose"`
}

// FetchQuote reads the chart meta block. The endpoint carries no change
// field, so the normalizer derives it from price and previous close.
func (c *Client) FetchQuote(ctx context.Context, symbol string, assetType models.AssetType) (models.RawQuote, error) {
	if c.cfg.Disabled {
		return models.RawQuote{}, upstream.Classify(Name, models.ErrNotConfigured)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, Name); err != nil {
			return models.RawQuote{}, upstream.Classify(Name, err)
		}
	}

	symbol = models.NormalizeAsset(symbol)
	var out chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + "/v8/finance/chart/" + url.PathEscape(vendorSymbol(symbol, assetType)),
		QueryParams: map[string][]string{
			"range":    {"1d"},
			"interval": {"1d"},
		},
	}, &out)
	if err != nil {
		return models.RawQuote{}, upstream.Classify(Name, fmt.Errorf("chart %s: %w", symbol, err))
	}
	if out.Chart.Error != nil {
		return models.RawQuote{}, upstream.Classify(Name, fmt.Errorf("chart %s: %s: %w", symbol, out.Chart.Error.Description, models.ErrNotFound))
	}
	if len(out.Chart.Result) == 0 {
		return models.RawQuote{}, upstream.Classify(Name, fmt.Errorf("chart %s: empty result: %w", symbol, models.ErrProviderMalformed))
	}

	m := out.Chart.Result[0].Meta
	prev := m.PreviousClose
	if prev == nil {
		prev = m.ChartPreviousClose
	}
	name := strings.TrimSpace(m.ShortName)
	if name == "" {
		name = strings.TrimSpace(m.LongName)
	}
	if name == "" {
		name = symbol
	}
	return models.RawQuote{
		Symbol:    symbol,
		Name:      name,
		Source:    Name,
		Price:     formatPtr(m.RegularMarketPrice),
		Open:      formatPtr(m.RegularMarketOpen),
		High:      formatPtr(m.DayHigh),
		Low:       formatPtr(m.DayLow),
		PrevClose: formatPtr(prev),
	}, nil
}

func vendorSymbol(symbol string, assetType models.AssetType) string {
	if assetType == models.AssetTypeCrypto && !strings.Contains(symbol, "-") {
		return symbol + "-USD"
	}
	return symbol
}

func formatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
