package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	pkgch "MarketPulse/pkg/clickhouse"
	applogger "MarketPulse/pkg/logger"
)

const refreshLogTable = "refresh_log"

// RefreshLogSchema is applied through pkgch.Client.InitSchema on start.
var RefreshLogSchema = []string{
	`CREATE TABLE IF NOT EXISTS refresh_log (
		at          DateTime64(3, 'UTC'),
		run_id      String,
		cache       LowCardinality(String),
		key         String,
		tier        LowCardinality(String),
		outcome     LowCardinality(String),
		error       String,
		duration_ms UInt32
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(at)
	ORDER BY (cache, key, at)
	TTL toDateTime(at) + INTERVAL 90 DAY`,
}

// CHRefreshLog writes one audit row per target refresh to ClickHouse.
type CHRefreshLog struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRefreshLog(ch *pkgch.Client, l *applogger.Logger) *CHRefreshLog {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHRefreshLog{db: ch.DB(), l: l}
}

func (s *CHRefreshLog) Record(ctx context.Context, rec models.RefreshRecord) error {
	q := fmt.Sprintf("INSERT INTO %s (at, run_id, cache, key, tier, outcome, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", refreshLogTable)
	_, err := s.db.ExecContext(ctx, q,
		rec.At.UTC(),
		rec.RunID,
		rec.Cache,
		rec.Key,
		rec.Tier,
		rec.Outcome,
		rec.Error,
		uint32(max(rec.DurationMS, 0)),
	)
	if err != nil {
		return fmt.Errorf("insert refresh log: %w", err)
	}
	return nil
}

// Recent returns the latest audit rows for a cache, newest first. An empty
// key matches every key.
func (s *CHRefreshLog) Recent(ctx context.Context, cache, key string, limit int) ([]models.RefreshRecord, error) {
	start := time.Now()
	const qtpl = `
		SELECT at, run_id, cache, key, tier, outcome, error, duration_ms
		FROM %s
		WHERE cache = ? AND (? = '' OR key = ?)
		ORDER BY at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, refreshLogTable), cache, key, key, limit)
	if err != nil {
		s.l.Error("clickhouse refresh_log query error", applogger.String("cache", cache), applogger.Error(err))
		return nil, fmt.Errorf("query refresh log: %w", err)
	}
	defer rows.Close()

	out := make([]models.RefreshRecord, 0, limit)
	for rows.Next() {
		var (
			r  models.RefreshRecord
			ms uint32
		)
		if err := rows.Scan(&r.At, &r.RunID, &r.Cache, &r.Key, &r.Tier, &r.Outcome, &r.Error, &ms); err != nil {
			s.l.Error("clickhouse refresh_log scan error", applogger.String("cache", cache), applogger.Error(err))
			return nil, fmt.Errorf("scan refresh log: %w", err)
		}
		r.DurationMS = int64(ms)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse refresh_log query done",
		applogger.String("cache", cache),
		applogger.Int("rows", len(out)),
		applogger.Duration("took", time.Since(start)),
	)
	return out, nil
}

// Close is a no-op; the ClickHouse client is closed by its owner.
func (s *CHRefreshLog) Close() error { return nil }

var (
	_ drepo.RefreshLog     = (*CHRefreshLog)(nil)
	_ drepo.RefreshHistory = (*CHRefreshLog)(nil)
)
