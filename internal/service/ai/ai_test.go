package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContext() models.AssetContext {
	return models.AssetContext{
		Asset:     "AAPL",
		AssetType: models.AssetTypeStock,
		Comments:  []string{"to the moon", "  line\nbreak  "},
		Headlines: []string{"Apple beats estimates"},
		Sentiment: models.SentimentBreakdown{BullishPercent: 70, BearishPercent: 30, Total: 10},
		Intent:    models.IntentBreakdown{BuyPercent: 50, SellPercent: 25, HoldPercent: 25, Total: 4},
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(sampleContext())
	assert.Contains(t, p, "Asset: AAPL (stock)")
	assert.Contains(t, p, "70.0% bullish")
	assert.Contains(t, p, "- Apple beats estimates")
	assert.Contains(t, p, "- line break")

	empty := BuildPrompt(models.AssetContext{Asset: "BTC"})
	assert.Equal(t, 2, strings.Count(empty, "none available"))
}

func TestGeminiGenerateAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"finalSummary\":"},{"text":"\"ok\"}"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(ProviderConfig{APIKey: "secret", BaseURL: srv.URL, Model: "gemini-1.5-flash", Timeout: time.Second}, nil)
	text, err := g.GenerateAnalysis(context.Background(), sampleContext())
	require.NoError(t, err)
	assert.Equal(t, `{"finalSummary":"ok"}`, text)
}

func TestGeminiEmptyCandidateIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGemini(ProviderConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, nil)
	_, err := g.GenerateAnalysis(context.Background(), sampleContext())
	assert.ErrorIs(t, err, models.ErrProviderMalformed)
}

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gk", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"a\":1} "}}]}`))
	}))
	defer srv.Close()

	c := NewChatCompletion(ProviderConfig{Name: "groq", APIKey: "gk", BaseURL: srv.URL + "/", Model: "llama"}, nil)
	assert.Equal(t, "groq", c.Name())
	text, err := c.GenerateAnalysis(context.Background(), sampleContext())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}

func TestChatCompletionStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewChatCompletion(ProviderConfig{APIKey: "bad", BaseURL: srv.URL}, nil)
	_, err := c.GenerateAnalysis(context.Background(), sampleContext())
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestUnconfiguredProvider(t *testing.T) {
	c := NewChatCompletion(ProviderConfig{Name: "openai"}, nil)
	assert.False(t, c.Configured())
	_, err := c.GenerateAnalysis(context.Background(), sampleContext())
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}
