package usecase

import (
	"fmt"
	"strings"

	"MarketPulse/internal/domain/models"
)

var (
	bullishWords = []string{"buy", "bull", "moon", "long", "pump", "breakout", "undervalued", "rally", "calls"}
	bearishWords = []string{"sell", "bear", "dump", "short", "crash", "overvalued", "puts", "drop", "bubble"}
)

// HeuristicSections builds the four sections from local data alone. It is
// the last link of the provider chain and never fails.
func HeuristicSections(in models.AssetContext) models.AnalysisSections {
	return models.AnalysisSections{
		GlobalNewsSummary:      newsSection(in),
		UserCommentsSummary:    commentsSection(in),
		MarketSentimentSummary: sentimentSection(in),
		FinalSummary:           finalSection(in),
	}
}

func newsSection(in models.AssetContext) string {
	if len(in.Headlines) == 0 {
		return fmt.Sprintf("No recent headlines were found for %s.", in.Asset)
	}
	return fmt.Sprintf("%d recent headlines mention %s. The latest reads: %q.", len(in.Headlines), in.Asset, in.Headlines[0])
}

func commentsSection(in models.AssetContext) string {
	if len(in.Comments) == 0 {
		return fmt.Sprintf("There has been no recent community discussion about %s.", in.Asset)
	}
	bull, bear := 0, 0
	for _, c := range in.Comments {
		lc := strings.ToLower(c)
		for _, w := range bullishWords {
			if strings.Contains(lc, w) {
				bull++
				break
			}
		}
		for _, w := range bearishWords {
			if strings.Contains(lc, w) {
				bear++
				break
			}
		}
	}
	tone := "mixed"
	switch {
	case bull > bear:
		tone = "mostly optimistic"
	case bear > bull:
		tone = "mostly cautious"
	}
	return fmt.Sprintf("%d recent community comments about %s were reviewed; the tone is %s.", len(in.Comments), in.Asset, tone)
}

func sentimentSection(in models.AssetContext) string {
	s, i := in.Sentiment, in.Intent
	if s.Total == 0 && i.Total == 0 {
		return fmt.Sprintf("No community votes were cast on %s in the last 24 hours, so sentiment is treated as neutral.", in.Asset)
	}
	return fmt.Sprintf("Community sentiment on %s is %.1f%% bullish and %.1f%% bearish across %d votes. Trade intent stands at %.1f%% buy, %.1f%% sell and %.1f%% hold across %d votes.",
		in.Asset, s.BullishPercent, s.BearishPercent, s.Total, i.BuyPercent, i.SellPercent, i.HoldPercent, i.Total)
}

func finalSection(in models.AssetContext) string {
	lean := "neutral"
	switch {
	case in.Sentiment.Total > 0 && in.Sentiment.BullishPercent >= 60:
		lean = "bullish"
	case in.Sentiment.Total > 0 && in.Sentiment.BullishPercent <= 40:
		lean = "bearish"
	}
	action := leadingIntent(in.Intent)
	if action == "" {
		return fmt.Sprintf("Overall the community leans %s on %s. This summary was generated from community data only.", lean, in.Asset)
	}
	return fmt.Sprintf("Overall the community leans %s on %s, with %s the most common trade intent. This summary was generated from community data only.", lean, in.Asset, action)
}

func leadingIntent(i models.IntentBreakdown) string {
	if i.Total == 0 {
		return ""
	}
	switch {
	case i.BuyPercent > i.SellPercent && i.BuyPercent > i.HoldPercent:
		return "buy"
	case i.SellPercent > i.BuyPercent && i.SellPercent > i.HoldPercent:
		return "sell"
	case i.HoldPercent > i.BuyPercent && i.HoldPercent > i.SellPercent:
		return "hold"
	default:
		return ""
	}
}
