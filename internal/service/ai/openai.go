package ai

import (
	"context"
	"fmt"
	"strings"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/upstream"
	xhttp "MarketPulse/pkg/http"
)

// ChatCompletion speaks the OpenAI chat completions protocol. Groq exposes
// the same API, so both providers share this client.
type ChatCompletion struct {
	cfg     ProviderConfig
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

func NewChatCompletion(cfg ProviderConfig, limiter *ratelimit.Limiter) *ChatCompletion {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	return &ChatCompletion{cfg: cfg, http: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)), limiter: limiter}
}

func (c *ChatCompletion) Name() string     { return c.cfg.Name }
func (c *ChatCompletion) Configured() bool { return c.cfg.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func (c *ChatCompletion) GenerateAnalysis(ctx context.Context, in models.AssetContext) (string, error) {
	if !c.Configured() {
		return "", upstream.Classify(c.Name(), models.ErrNotConfigured)
	}
	if err := waitLimiter(ctx, c.limiter, c.Name()); err != nil {
		return "", upstream.Classify(c.Name(), err)
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(in)},
		},
		Temperature: c.cfg.Temperature,
	}
	req.ResponseFormat.Type = "json_object"

	var out chatResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.APIKey},
		Body:    req,
	}, &out)
	if err != nil {
		return "", upstream.Classify(c.Name(), fmt.Errorf("chat %s: %w", in.Asset, err))
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", upstream.Classify(c.Name(), fmt.Errorf("chat %s: no content: %w", in.Asset, models.ErrProviderMalformed))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
