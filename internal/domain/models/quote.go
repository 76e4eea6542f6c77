package models

import "time"

const (
	QuoteSourceUnavailable = "unavailable"
	QuoteSourcePending     = "pending"
)

// RawQuote is a vendor quote before normalization. Numeric fields keep the
// vendor's textual form; an empty string means the vendor omitted the field.
type RawQuote struct {
	Symbol        string
	Name          string
	Source        string
	Price         string
	Open          string
	High          string
	Low           string
	PrevClose     string
	ChangePercent string
}

// MarketQuote is the canonical quote. A nil numeric field means unknown.
type MarketQuote struct {
	Symbol    string    `json:"symbol" bson:"symbol"`
	Name      string    `json:"name" bson:"name"`
	Price     *float64  `json:"price" bson:"price"`
	Open      *float64  `json:"open" bson:"open"`
	High      *float64  `json:"high" bson:"high"`
	Low       *float64  `json:"low" bson:"low"`
	PrevClose *float64  `json:"prevClose" bson:"prevClose"`
	Change    *float64  `json:"change" bson:"change"`
	Source    string    `json:"source" bson:"source"`
	FetchedAt time.Time `json:"fetchedAt" bson:"fetchedAt"`
}

func (q MarketQuote) Known() bool { return q.Price != nil }

// UnknownQuote is a well-formed quote with every numeric field unknown.
func UnknownQuote(symbol, source string) MarketQuote {
	return MarketQuote{Symbol: NormalizeAsset(symbol), Name: NormalizeAsset(symbol), Source: source}
}

func Float(v float64) *float64 { return &v }
