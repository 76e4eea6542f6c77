// Package aggregation derives vote percentage breakdowns.
package aggregation

import (
	"math"

	"MarketPulse/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Neutral priors used when no votes exist. The intent defaults are fixed
// constants because 100 does not divide evenly by three.
const (
	neutralBullish = 50.0
	neutralBearish = 50.0
	neutralBuy     = 33.3
	neutralSell    = 33.3
	neutralHold    = 33.4
)

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}

func ComputeSentimentBreakdown(t models.SentimentTally) models.SentimentBreakdown {
	total := t.Total()
	if total <= 0 {
		return models.SentimentBreakdown{BullishPercent: neutralBullish, BearishPercent: neutralBearish}
	}
	bullish := Round1(float64(t.Bullish) / float64(total) * 100)
	return models.SentimentBreakdown{
		BullishPercent: bullish,
		BearishPercent: Round1(100 - bullish),
		Total:          total,
	}
}

func ComputeIntentBreakdown(t models.IntentTally) models.IntentBreakdown {
	total := t.Total()
	if total <= 0 {
		return models.IntentBreakdown{BuyPercent: neutralBuy, SellPercent: neutralSell, HoldPercent: neutralHold}
	}
	buy := Round1(float64(t.Buy) / float64(total) * 100)
	sell := Round1(float64(t.Sell) / float64(total) * 100)
	hold := Round1(100 - buy - sell)
	if hold < 0 {
		// buy and sell rounded up past 100; take the excess back from sell
		sell = Round1(sell + hold)
		hold = 0
	}
	return models.IntentBreakdown{BuyPercent: buy, SellPercent: sell, HoldPercent: hold, Total: total}
}
