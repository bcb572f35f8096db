// Package aggregator persists aggregated analytics snapshots to PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/resilience"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id             BIGSERIAL PRIMARY KEY,
    corpus_version TEXT NOT NULL DEFAULT '',
    total_searches BIGINT NOT NULL,
    data           JSONB NOT NULL,
    captured_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS analytics_snapshots_captured_at_idx
    ON analytics_snapshots (captured_at DESC)`,
}

// DefaultRetention is how many snapshots are kept when none is configured.
const DefaultRetention = 1440

type Store struct {
	db        *postgres.Client
	retention int
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

// NewStore returns a Store that keeps at most retention snapshots.
func NewStore(db *postgres.Client, retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		db:        db,
		retention: retention,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.Migrate(ctx, schema...); err != nil {
		return fmt.Errorf("creating analytics schema: %w", err)
	}
	return nil
}

// SaveSnapshot inserts a snapshot and prunes rows beyond the retention limit
// in one transaction. Transient failures are retried with backoff.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	capturedAt := stats.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	err = resilience.Retry(ctx, "save-analytics-snapshot", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO analytics_snapshots (corpus_version, total_searches, data, captured_at)
				 VALUES ($1, $2, $3, $4)`,
				stats.CorpusVersion, stats.TotalSearches, data, capturedAt,
			); err != nil {
				return fmt.Errorf("inserting snapshot: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM analytics_snapshots WHERE id NOT IN (
				     SELECT id FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1)`,
				s.retention,
			); err != nil {
				return fmt.Errorf("pruning snapshots: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"corpus_version", stats.CorpusVersion,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil if there is none.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	stats, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListSnapshots returns up to limit snapshots, newest first. A limit outside
// 1..retention is treated as the retention size.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	limit = s.clampLimit(limit)
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]analytics.AggregatedStats, 0, limit)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		stats, err := decodeSnapshot(data)
		if err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

func (s *Store) clampLimit(limit int) int {
	if limit <= 0 || limit > s.retention {
		return s.retention
	}
	return limit
}

// RunPeriodicSave snapshots source every interval until ctx is done, then
// writes one final snapshot. It blocks.
func (s *Store) RunPeriodicSave(ctx context.Context, source analytics.StatsSource, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic snapshot started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := s.SaveSnapshot(ctx, source.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.SaveSnapshot(shutdownCtx, source.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}

func decodeSnapshot(data []byte) (analytics.AggregatedStats, error) {
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return stats, nil
}
