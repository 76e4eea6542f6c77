package service

import (
	"context"

	"MarketPulse/internal/domain/models"
)

// QuoteSource fetches one raw quote. Failures wrap models.ErrRateLimited,
// models.ErrNotConfigured or models.ErrNotFound where they apply.
type QuoteSource interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string, assetType models.AssetType) (models.RawQuote, error)
}

// AnalysisProvider turns an asset context into raw analysis text holding four sections.
type AnalysisProvider interface {
	Name() string
	Configured() bool
	GenerateAnalysis(ctx context.Context, in models.AssetContext) (string, error)
}
