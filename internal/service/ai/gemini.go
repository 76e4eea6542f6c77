package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/upstream"
	xhttp "MarketPulse/pkg/http"
)

// ProviderConfig configures one analysis backend.
type ProviderConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Gemini calls the generateContent endpoint.
type Gemini struct {
	cfg     ProviderConfig
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

func NewGemini(cfg ProviderConfig, limiter *ratelimit.Limiter) *Gemini {
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	return &Gemini{cfg: cfg, http: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)), limiter: limiter}
}

func (g *Gemini) Name() string     { return g.cfg.Name }
func (g *Gemini) Configured() bool { return g.cfg.APIKey != "" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func (g *Gemini) GenerateAnalysis(ctx context.Context, in models.AssetContext) (string, error) {
	if !g.Configured() {
		return "", upstream.Classify(g.Name(), models.ErrNotConfigured)
	}
	if err := waitLimiter(ctx, g.limiter, g.Name()); err != nil {
		return "", upstream.Classify(g.Name(), err)
	}

	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: BuildPrompt(in)}}}},
	}
	req.GenerationConfig.Temperature = g.cfg.Temperature
	req.GenerationConfig.ResponseMimeType = "application/json"

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(g.cfg.BaseURL, "/"), url.PathEscape(g.cfg.Model))
	var out geminiResponse
	err := g.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodPost,
		URL:         endpoint,
		QueryParams: map[string][]string{"key": {g.cfg.APIKey}},
		Body:        req,
	}, &out)
	if err != nil {
		return "", upstream.Classify(g.Name(), fmt.Errorf("generate %s: %w", in.Asset, err))
	}

	var b strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", upstream.Classify(g.Name(), fmt.Errorf("generate %s: empty candidate: %w", in.Asset, models.ErrProviderMalformed))
	}
	return text, nil
}

func waitLimiter(ctx context.Context, l *ratelimit.Limiter, key string) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx, key)
}
