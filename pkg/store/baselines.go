package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// Baseline is one row of system_baselines: a metric's learned rolling
// distribution, serialized by pkg/baseline into PayloadJSON so the store
// stays agnostic to the quantile/trend representation (§3.2, §5).
type Baseline struct {
	MetricType   string
	Lookback     time.Duration
	PayloadJSON  []byte
	SampleCount  int
	LastUpdated  time.Time
}

// UpsertBaseline replaces the stored baseline for (metric_type, lookback).
func (s *Store) UpsertBaseline(ctx context.Context, b Baseline) error {
	return s.withWriteTx(ctx, "store.UpsertBaseline", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO system_baselines
			(metric_type, lookback_seconds, payload_json, sample_count, last_updated)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(metric_type, lookback_seconds) DO UPDATE SET
				payload_json = excluded.payload_json,
				sample_count = excluded.sample_count,
				last_updated = excluded.last_updated`,
			b.MetricType, int64(b.Lookback.Seconds()), string(b.PayloadJSON), b.SampleCount, b.LastUpdated.Unix())
		return err
	})
}

// GetBaseline returns the most recently stored baseline for metricType at
// lookback, or (nil, nil) if none has been computed yet — callers fall
// back to the insufficient-sample behavior described in §5.
func (sn *Snapshot) GetBaseline(ctx context.Context, metricType string, lookback time.Duration) (*Baseline, error) {
	var b Baseline
	b.MetricType = metricType
	b.Lookback = lookback
	var payload string
	var lastUpdated int64
	row := sn.db.QueryRowContext(ctx, `SELECT payload_json, sample_count, last_updated
		FROM system_baselines WHERE metric_type = ? AND lookback_seconds = ?`,
		metricType, int64(lookback.Seconds()))
	if err := row.Scan(&payload, &b.SampleCount, &lastUpdated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, kernsight.Retryable("store.GetBaseline", err)
	}
	b.PayloadJSON = []byte(payload)
	b.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	return &b, nil
}
