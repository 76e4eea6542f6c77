package normalize

import (
	"testing"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteComputesChangeWhenVendorOmitsIt(t *testing.T) {
	q := Quote(models.RawQuote{Symbol: "aapl", Price: "110", PrevClose: "100"}, time.Unix(0, 0))
	require.NotNil(t, q.Change)
	assert.Equal(t, 10.0, *q.Change)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "AAPL", q.Name)
}

func TestQuoteZeroPrevCloseYieldsUnknownChange(t *testing.T) {
	q := Quote(models.RawQuote{Symbol: "X", Price: "5", PrevClose: "0"}, time.Now())
	assert.Nil(t, q.Change)
	require.NotNil(t, q.Price)
	assert.Equal(t, 5.0, *q.Price)
}

func TestQuotePrefersVendorChange(t *testing.T) {
	q := Quote(models.RawQuote{Symbol: "X", Price: "110", PrevClose: "100", ChangePercent: "-1.25%"}, time.Now())
	require.NotNil(t, q.Change)
	assert.Equal(t, -1.25, *q.Change)
}

func TestQuoteUnknownFieldsStayNil(t *testing.T) {
	q := Quote(models.RawQuote{Symbol: "RELIANCE", Price: "1,234.50", Open: "-", High: "N/A", Low: "", PrevClose: "abc"}, time.Now())
	require.NotNil(t, q.Price)
	assert.Equal(t, 1234.5, *q.Price)
	assert.Nil(t, q.Open)
	assert.Nil(t, q.High)
	assert.Nil(t, q.Low)
	assert.Nil(t, q.PrevClose)
	assert.Nil(t, q.Change)
}

func TestParseNumber(t *testing.T) {
	assert.Nil(t, ParseNumber("NaN"))
	assert.Nil(t, ParseNumber("Inf"))
	require.NotNil(t, ParseNumber(" +2.5 "))
	assert.Equal(t, 2.5, *ParseNumber(" +2.5 "))
}
