package usecase

import (
	"context"
	"fmt"
	"sort"

	"MarketPulse/internal/domain/models"
)

// ManualRefresher is the part of a Scheduler used for operator and queue
// driven refreshes.
type ManualRefresher interface {
	TriggerNow(ctx context.Context) bool
	TriggerKey(ctx context.Context, key string) error
}

// RefreshDispatcher routes a RefreshCommand to the scheduler owning the
// named cache.
type RefreshDispatcher struct {
	schedulers map[string]ManualRefresher
}

func NewRefreshDispatcher(schedulers map[string]ManualRefresher) *RefreshDispatcher {
	m := make(map[string]ManualRefresher, len(schedulers))
	for name, s := range schedulers {
		if s != nil {
			m[name] = s
		}
	}
	return &RefreshDispatcher{schedulers: m}
}

// Caches lists the dispatchable cache names.
func (d *RefreshDispatcher) Caches() []string {
	out := make([]string, 0, len(d.schedulers))
	for name := range d.schedulers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch starts the requested refresh in the background. An empty asset
// means a full run. Busy schedulers yield models.ErrRefreshInProgress.
func (d *RefreshDispatcher) Dispatch(ctx context.Context, cmd models.RefreshCommand) error {
	s, ok := d.schedulers[cmd.Cache]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownCache, cmd.Cache)
	}
	if asset := models.NormalizeAsset(cmd.Asset); asset != "" {
		return s.TriggerKey(ctx, asset)
	}
	if !s.TriggerNow(ctx) {
		return models.ErrRefreshInProgress
	}
	return nil
}
