package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// Outcome labels used in metrics, refresh logs and events.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeStaleKept   = "stale_kept"
	OutcomeFailed      = "failed"
	OutcomePanic       = "panic"
)

// RefreshOutcome describes what a single target refresh stored.
type RefreshOutcome struct {
	Tier        string
	Outcome     string
	GeneratedAt time.Time
	ExpiresAt   time.Time
}

// Stored reports whether the refresh wrote a new cache entry.
func (o RefreshOutcome) Stored() bool {
	return !o.GeneratedAt.IsZero()
}

// Refresher refreshes one target and writes the result to its cache. A
// returned error is logged by the scheduler and never stops a cycle.
type Refresher interface {
	Refresh(ctx context.Context, t models.Target) (RefreshOutcome, error)
}
