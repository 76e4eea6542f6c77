// Package finnhub is the REST client for Finnhub quotes and company news.
package finnhub

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/upstream"
	xhttp "MarketPulse/pkg/http"
)

const Name = "finnhub"

// Config for the Finnhub client.
type Config struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	CryptoFormat string
}

// Client implements service.QuoteSource and repository.NewsReader.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// New creates a Finnhub client. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.CryptoFormat == "" {
		cfg.CryptoFormat = "BINANCE:%sUSDT"
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithUserAgent("marketpulse/1.0")),
		limiter: limiter,
		now:     time.Now,
	}
}

func (c *Client) Name() string { return Name }

type quoteResponse struct {
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	DP float64 `json:"dp"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	O  float64 `json:"o"`
	PC float64 `json:"pc"`
	T  int64   `json:"t"`
}

// FetchQuote calls /quote. Finnhub answers unknown symbols with an all-zero body.
func (c *Client) FetchQuote(ctx context.Context, symbol string, assetType models.AssetType) (models.RawQuote, error) {
	if c.cfg.APIKey == "" {
		return models.RawQuote{}, upstream.Classify(Name, models.ErrNotConfigured)
	}
	if err := c.wait(ctx); err != nil {
		return models.RawQuote{}, upstream.Classify(Name, err)
	}

	symbol = models.NormalizeAsset(symbol)
	var out quoteResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + "/quote",
		QueryParams: map[string][]string{
			"symbol": {c.vendorSymbol(symbol, assetType)},
			"token":  {c.cfg.APIKey},
		},
	}, &out)
	if err != nil {
		return models.RawQuote{}, upstream.Classify(Name, fmt.Errorf("quote %s: %w", symbol, err))
	}
	if out.C == 0 && out.PC == 0 {
		return models.RawQuote{}, upstream.Classify(Name, fmt.Errorf("quote %s: %w", symbol, models.ErrNotFound))
	}

	raw := models.RawQuote{
		Symbol:    symbol,
		Name:      symbol,
		Source:    Name,
		Price:     formatFloat(out.C),
		Open:      formatFloat(out.O),
		High:      formatFloat(out.H),
		Low:       formatFloat(out.L),
		PrevClose: formatFloat(out.PC),
	}
	if out.PC != 0 {
		raw.ChangePercent = formatFloat(out.DP)
	}
	return raw, nil
}

type newsItem struct {
	Headline string `json:"headline"`
	Related  string `json:"related"`
	Datetime int64  `json:"datetime"`
}

// ReadRecentHeadlines returns the newest headlines for asset, newest first.
// Stocks use /company-news over the last three days; crypto filters the
// general crypto feed by ticker.
func (c *Client) ReadRecentHeadlines(ctx context.Context, asset string, limit int) ([]string, error) {
	if c.cfg.APIKey == "" || limit <= 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	asset = models.NormalizeAsset(asset)
	isCrypto := models.InferAssetType(asset) == models.AssetTypeCrypto
	opts := &xhttp.RequestOptions{Method: xhttp.MethodGet, QueryParams: map[string][]string{"token": {c.cfg.APIKey}}}
	if isCrypto {
		opts.URL = c.cfg.BaseURL + "/news"
		opts.QueryParams["category"] = []string{"crypto"}
	} else {
		now := c.now().UTC()
		opts.URL = c.cfg.BaseURL + "/company-news"
		opts.QueryParams["symbol"] = []string{asset}
		opts.QueryParams["from"] = []string{now.AddDate(0, 0, -3).Format("2006-01-02")}
		opts.QueryParams["to"] = []string{now.Format("2006-01-02")}
	}

	var items []newsItem
	if err := c.http.SendAndParse(ctx, opts, &items); err != nil {
		return nil, upstream.Classify(Name, fmt.Errorf("news %s: %w", asset, err))
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Datetime > items[j].Datetime })
	out := make([]string, 0, limit)
	for _, it := range items {
		h := strings.TrimSpace(it.Headline)
		if h == "" {
			continue
		}
		if isCrypto && !mentions(it, asset) {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Client) vendorSymbol(symbol string, assetType models.AssetType) string {
	if assetType == models.AssetTypeCrypto && !strings.Contains(symbol, ":") {
		return fmt.Sprintf(c.cfg.CryptoFormat, symbol)
	}
	return symbol
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, Name)
}

func mentions(it newsItem, asset string) bool {
	if strings.Contains(strings.ToUpper(it.Related), asset) {
		return true
	}
	return strings.Contains(strings.ToUpper(it.Headline), asset)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
