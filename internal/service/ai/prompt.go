// Package ai holds the analysis provider clients.
package ai

import (
	"fmt"
	"strings"

	"MarketPulse/internal/domain/models"
)

const systemPrompt = "You are a financial market analyst. Respond only with a JSON object containing the keys " +
	"globalNewsSummary, userCommentsSummary, marketSentimentSummary and finalSummary. Each value is a short paragraph."

const maxPromptComments = 30

// BuildPrompt renders the user prompt for one asset.
func BuildPrompt(in models.AssetContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Asset: %s (%s)\n\n", in.Asset, in.AssetType)

	fmt.Fprintf(&b, "Community sentiment over the last 24 hours: %.1f%% bullish, %.1f%% bearish (%d votes).\n",
		in.Sentiment.BullishPercent, in.Sentiment.BearishPercent, in.Sentiment.Total)
	fmt.Fprintf(&b, "Community trade intent: %.1f%% buy, %.1f%% sell, %.1f%% hold (%d votes).\n\n",
		in.Intent.BuyPercent, in.Intent.SellPercent, in.Intent.HoldPercent, in.Intent.Total)

	b.WriteString("Recent headlines:\n")
	if len(in.Headlines) == 0 {
		b.WriteString("- none available\n")
	}
	for _, h := range in.Headlines {
		fmt.Fprintf(&b, "- %s\n", oneLine(h))
	}

	b.WriteString("\nRecent community comments:\n")
	if len(in.Comments) == 0 {
		b.WriteString("- none available\n")
	}
	for i, c := range in.Comments {
		if i == maxPromptComments {
			break
		}
		fmt.Fprintf(&b, "- %s\n", oneLine(c))
	}

	b.WriteString("\nSummarize global news, community comments and market sentiment, then give a final balanced summary. " +
		"Do not give personalised financial advice.")
	return b.String()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 280 {
		s = s[:280] + "..."
	}
	return s
}
