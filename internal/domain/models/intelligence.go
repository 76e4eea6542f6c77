package models

import (
	"fmt"
	"time"
)

// ProviderTier records which backend produced a summary.
type ProviderTier string

const (
	TierPrimaryAI   ProviderTier = "primary-ai"
	TierSecondaryAI ProviderTier = "secondary-ai"
	TierHeuristic   ProviderTier = "fallback-heuristic"
	// TierPending tags the canned payload served before the first refresh lands.
	TierPending ProviderTier = "pending"
)

// AnalysisSections are the four named text blocks of an intelligence summary.
type AnalysisSections struct {
	GlobalNewsSummary      string `json:"globalNewsSummary"`
	UserCommentsSummary    string `json:"userCommentsSummary"`
	MarketSentimentSummary string `json:"marketSentimentSummary"`
	FinalSummary           string `json:"finalSummary"`
}

// Filled reports how many sections carry text.
func (s AnalysisSections) Filled() int {
	n := 0
	for _, v := range []string{s.GlobalNewsSummary, s.UserCommentsSummary, s.MarketSentimentSummary, s.FinalSummary} {
		if v != "" {
			n++
		}
	}
	return n
}

// WithDefaults replaces every empty section with its templated fallback sentence.
func (s AnalysisSections) WithDefaults(asset string) AnalysisSections {
	d := DefaultSections(asset)
	if s.GlobalNewsSummary == "" {
		s.GlobalNewsSummary = d.GlobalNewsSummary
	}
	if s.UserCommentsSummary == "" {
		s.UserCommentsSummary = d.UserCommentsSummary
	}
	if s.MarketSentimentSummary == "" {
		s.MarketSentimentSummary = d.MarketSentimentSummary
	}
	if s.FinalSummary == "" {
		s.FinalSummary = d.FinalSummary
	}
	return s
}

func DefaultSections(asset string) AnalysisSections {
	return AnalysisSections{
		GlobalNewsSummary:      fmt.Sprintf("No recent global news analysis is available for %s.", asset),
		UserCommentsSummary:    fmt.Sprintf("Community discussion about %s has not been analyzed yet.", asset),
		MarketSentimentSummary: fmt.Sprintf("Market sentiment data for %s is currently unavailable.", asset),
		FinalSummary:           fmt.Sprintf("A complete intelligence summary for %s is not available yet. Please check back later.", asset),
	}
}

type DataPoints struct {
	CommentsCount       int     `json:"commentsCount" bson:"commentsCount"`
	SentimentVotesCount int     `json:"sentimentVotesCount" bson:"sentimentVotesCount"`
	TradeVotesCount     int     `json:"tradeVotesCount" bson:"tradeVotesCount"`
	BullishPercent      float64 `json:"bullishPercent" bson:"bullishPercent"`
	BearishPercent      float64 `json:"bearishPercent" bson:"bearishPercent"`
	BuyPercent          float64 `json:"buyPercent" bson:"buyPercent"`
	SellPercent         float64 `json:"sellPercent" bson:"sellPercent"`
	HoldPercent         float64 `json:"holdPercent" bson:"holdPercent"`
}

func NewDataPoints(comments int, s SentimentBreakdown, i IntentBreakdown) DataPoints {
	return DataPoints{
		CommentsCount:       comments,
		SentimentVotesCount: s.Total,
		TradeVotesCount:     i.Total,
		BullishPercent:      s.BullishPercent,
		BearishPercent:      s.BearishPercent,
		BuyPercent:          i.BuyPercent,
		SellPercent:         i.SellPercent,
		HoldPercent:         i.HoldPercent,
	}
}

type IntelligenceSummary struct {
	Asset                  string       `json:"asset" bson:"asset"`
	AssetType              AssetType    `json:"assetType" bson:"assetType"`
	GlobalNewsSummary      string       `json:"globalNewsSummary" bson:"globalNewsSummary"`
	UserCommentsSummary    string       `json:"userCommentsSummary" bson:"userCommentsSummary"`
	MarketSentimentSummary string       `json:"marketSentimentSummary" bson:"marketSentimentSummary"`
	FinalSummary           string       `json:"finalSummary" bson:"finalSummary"`
	DataPoints             DataPoints   `json:"dataPoints" bson:"dataPoints"`
	Provider               ProviderTier `json:"provider" bson:"provider"`
	ProviderName           string       `json:"providerName,omitempty" bson:"providerName,omitempty"`
	GeneratedAt            time.Time    `json:"generatedAt" bson:"generatedAt"`
}

func (s IntelligenceSummary) Sections() AnalysisSections {
	return AnalysisSections{
		GlobalNewsSummary:      s.GlobalNewsSummary,
		UserCommentsSummary:    s.UserCommentsSummary,
		MarketSentimentSummary: s.MarketSentimentSummary,
		FinalSummary:           s.FinalSummary,
	}
}

// NewIntelligenceSummary assembles a summary with every section defaulted.
func NewIntelligenceSummary(t Target, sections AnalysisSections, dp DataPoints, tier ProviderTier, providerName string, at time.Time) IntelligenceSummary {
	sections = sections.WithDefaults(t.Key)
	return IntelligenceSummary{
		Asset:                  t.Key,
		AssetType:              t.AssetType,
		GlobalNewsSummary:      sections.GlobalNewsSummary,
		UserCommentsSummary:    sections.UserCommentsSummary,
		MarketSentimentSummary: sections.MarketSentimentSummary,
		FinalSummary:           sections.FinalSummary,
		DataPoints:             dp,
		Provider:               tier,
		ProviderName:           providerName,
		GeneratedAt:            at,
	}
}

// PendingSummary is the canned "not yet available" payload returned on a cache miss.
func PendingSummary(asset string) IntelligenceSummary {
	t := NewTarget(asset, "")
	return NewIntelligenceSummary(t, AnalysisSections{}, DataPoints{
		BullishPercent: 50,
		BearishPercent: 50,
		BuyPercent:     33.3,
		SellPercent:    33.3,
		HoldPercent:    33.4,
	}, TierPending, "", time.Time{})
}

// AssetContext is the bundle handed to analysis providers.
type AssetContext struct {
	Asset     string             `json:"asset"`
	AssetType AssetType          `json:"assetType"`
	Comments  []string           `json:"comments"`
	Headlines []string           `json:"headlines"`
	Sentiment SentimentBreakdown `json:"sentiment"`
	Intent    IntentBreakdown    `json:"intent"`
}
