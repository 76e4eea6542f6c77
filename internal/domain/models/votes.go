package models

// SentimentTally holds raw bullish/bearish vote counts for one aggregation run.
type SentimentTally struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
}

func (t SentimentTally) Total() int { return t.Bullish + t.Bearish }

// IntentTally holds raw buy/sell/hold vote counts for one aggregation run.
type IntentTally struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
	Hold int `json:"hold"`
}

func (t IntentTally) Total() int { return t.Buy + t.Sell + t.Hold }

type SentimentBreakdown struct {
	BullishPercent float64 `json:"bullishPercent"`
	BearishPercent float64 `json:"bearishPercent"`
	Total          int     `json:"total"`
}

type IntentBreakdown struct {
	BuyPercent  float64 `json:"buyPercent"`
	SellPercent float64 `json:"sellPercent"`
	HoldPercent float64 `json:"holdPercent"`
	Total       int     `json:"total"`
}
