package models

import "strings"

// AssetType distinguishes equities from crypto assets.
type AssetType string

const (
	AssetTypeStock  AssetType = "stock"
	AssetTypeCrypto AssetType = "crypto"
)

var cryptoAssets = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "BNB": {}, "XRP": {}, "ADA": {},
	"DOGE": {}, "DOT": {}, "AVAX": {}, "MATIC": {}, "LTC": {}, "LINK": {},
	"TRX": {}, "SHIB": {}, "USDT": {}, "USDC": {},
}

// NormalizeAsset returns the canonical cache key for an asset identifier.
func NormalizeAsset(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// InferAssetType guesses the asset type from a well-known crypto ticker list.
func InferAssetType(asset string) AssetType {
	if _, ok := cryptoAssets[NormalizeAsset(asset)]; ok {
		return AssetTypeCrypto
	}
	return AssetTypeStock
}

// Target is one refreshable cache key.
type Target struct {
	Key       string    `json:"key"`
	AssetType AssetType `json:"assetType"`
}

func NewTarget(key string, assetType AssetType) Target {
	key = NormalizeAsset(key)
	if assetType == "" {
		assetType = InferAssetType(key)
	}
	return Target{Key: key, AssetType: assetType}
}

// BuildTargets normalizes keys, drops blanks and duplicates, and keeps the input order.
func BuildTargets(keys []string, assetType AssetType) []Target {
	seen := make(map[string]struct{}, len(keys))
	out := make([]Target, 0, len(keys))
	for _, k := range keys {
		k = NormalizeAsset(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, NewTarget(k, assetType))
	}
	return out
}

// ConfiguredTargets merges the stock and crypto lists into one de-duplicated
// target list. A key listed in both keeps its first (stock) entry.
func ConfiguredTargets(stocks, crypto []string) []Target {
	out := BuildTargets(stocks, AssetTypeStock)
	seen := make(map[string]struct{}, len(out))
	for _, t := range out {
		seen[t.Key] = struct{}{}
	}
	for _, t := range BuildTargets(crypto, AssetTypeCrypto) {
		if _, ok := seen[t.Key]; !ok {
			out = append(out, t)
		}
	}
	return out
}
