// Package normalize converts vendor payloads into canonical shapes.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/shopspring/decimal"
)

var unknownTokens = map[string]struct{}{
	"": {}, "-": {}, "--": {}, "N/A": {}, "NA": {}, "NULL": {}, "NAN": {}, "NONE": {},
}

// ParseNumber parses a vendor numeric field. Thousands separators, percent
// signs and surrounding whitespace are ignored; placeholders yield nil.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if _, ok := unknownTokens[strings.ToUpper(s)]; ok {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "+")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ChangePercent computes (price-prevClose)/prevClose*100 at two decimals, or nil when either
// side is unknown or prevClose is zero.
func ChangePercent(price, prevClose *float64) *float64 {
	if price == nil || prevClose == nil || *prevClose == 0 {
		return nil
	}
	v := (*price - *prevClose) / *prevClose * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return models.Float(f)
}

// Quote normalizes a raw vendor quote. A missing field never fails the record.
func Quote(raw models.RawQuote, fetchedAt time.Time) models.MarketQuote {
	q := models.MarketQuote{
		Symbol:    models.NormalizeAsset(raw.Symbol),
		Name:      strings.TrimSpace(raw.Name),
		Price:     ParseNumber(raw.Price),
		Open:      ParseNumber(raw.Open),
		High:      ParseNumber(raw.High),
		Low:       ParseNumber(raw.Low),
		PrevClose: ParseNumber(raw.PrevClose),
		Source:    raw.Source,
		FetchedAt: fetchedAt,
	}
	if q.Name == "" {
		q.Name = q.Symbol
	}
	q.Change = ParseNumber(raw.ChangePercent)
	if q.Change == nil {
		q.Change = ChangePercent(q.Price, q.PrevClose)
	}
	return q
}
