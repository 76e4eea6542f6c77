package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
assets:
  stocks: [AAPL, MSFT]
  crypto: [BTC]
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, time.Hour, c.Intelligence.Cadence)
	assert.Equal(t, 24*time.Hour, c.Intelligence.TTL)
	assert.Equal(t, "round_robin", c.Intelligence.Selection)
	assert.Equal(t, 60*time.Minute, c.Quotes.TTL)
	assert.Equal(t, 7*time.Second, c.Finnhub.Timeout)
	assert.Equal(t, "none", c.Snapshot.Backend)
	assert.Equal(t, "gemini-1.5-flash", c.AI.Gemini.Model)
	assert.Equal(t, 60*time.Second, c.AI.Groq.Timeout)
	assert.False(t, c.Intelligence.Disabled)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
environment: prod
intelligence:
  cadence: 30m
  ttl: 12h
  selection: all
quotes:
  disabled: true
assets:
  crypto: [ETH]
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, c.Intelligence.Cadence)
	assert.Equal(t, 12*time.Hour, c.Intelligence.TTL)
	assert.Equal(t, "all", c.Intelligence.Selection)
	assert.True(t, c.Quotes.Disabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: x\n"))
	assert.ErrorContains(t, err, "assets")

	_, err = Load(writeConfig(t, "assets: {stocks: [A]}\nintelligence: {selection: random}\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "assets: {stocks: [A]}\nsnapshot: {backend: mongo}\n"))
	assert.ErrorContains(t, err, "mongo")
}

func TestApplyEnvOverrides(t *testing.T) {
	c, err := parse(writeConfig(t, "assets: {stocks: [A]}\n"))
	require.NoError(t, err)

	env := map[string]string{
		"GEMINI_API_KEY": "g-key",
		"CRYPTO_SYMBOLS": "btc, eth ,",
		"MONGO_URI":      "mongodb://localhost:27017",
		"KAFKA_ENABLED":  "true",
		"KAFKA_BROKERS":  "k1:9092,k2:9092",
		"PORT":           "9090",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "g-key", c.AI.Gemini.APIKey)
	assert.Equal(t, []string{"btc", "eth"}, c.Assets.Crypto)
	assert.True(t, c.Mongo.Enabled)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)
	require.NoError(t, c.Validate())
}

func TestIntelligenceCoverageGap(t *testing.T) {
	c, err := parse(writeConfig(t, "assets: {stocks: [A, B, C]}\nintelligence: {cadence: 1h, ttl: 2h}\n"))
	require.NoError(t, err)
	assert.True(t, c.IntelligenceCoverageGap(3))

	c.Intelligence.TTL = 3 * time.Hour
	assert.False(t, c.IntelligenceCoverageGap(3))
}

func TestIntelligenceCoverageGapCountsDistinctTargets(t *testing.T) {
	c, err := parse(writeConfig(t, "assets: {stocks: [AAPL, aapl, BTC], crypto: [btc, ETH]}\nintelligence: {cadence: 1h, ttl: 3h}\n"))
	require.NoError(t, err)
	n := len(models.ConfiguredTargets(c.Assets.Stocks, c.Assets.Crypto))
	assert.Equal(t, 3, n)
	assert.False(t, c.IntelligenceCoverageGap(n), "duplicates must not count toward the rotation")
	assert.True(t, c.IntelligenceCoverageGap(len(c.Assets.Stocks)+len(c.Assets.Crypto)))
}

func TestShippedConfigLoads(t *testing.T) {
	c, err := Load("../../config/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "round_robin", c.Intelligence.Selection)
	assert.Equal(t, "all", c.Quotes.Selection)
	assert.NotEmpty(t, c.Assets.Crypto)
	assert.False(t, c.IntelligenceCoverageGap(len(models.ConfiguredTargets(c.Assets.Stocks, c.Assets.Crypto))))
}
