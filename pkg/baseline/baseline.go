// Package baseline maintains rolling quantile baselines per metric family
// and computes slope/r² trends over windows (§4.5, C5). Both are computed
// on demand against a read-only store.Snapshot; the baseline result is
// persisted to system_baselines so repeated queries over the same window
// are cheap. Trends are not persisted.
package baseline

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MinSamples is the floor below which a baseline is marked insufficient
// and classifiers must fall back to absolute thresholds (§4.5).
const MinSamples = 1000

// DefaultLookback is the default baseline window.
const DefaultLookback = 7 * 24 * time.Hour

// DefaultTrendWindow is the default trend window.
const DefaultTrendWindow = 30 * time.Minute

// MinTrendRSquared is the r² floor below which a trend is reported as
// absent (§4.5).
const MinTrendRSquared = 0.7

// Stats is one metric family's learned distribution over a lookback
// window, the payload serialized into system_baselines.payload_json.
type Stats struct {
	MetricType   string             `json:"metric_type"`
	SampleCount  int                `json:"sample_count"`
	Insufficient bool               `json:"insufficient"`
	Mean         float64            `json:"mean"`
	Std          float64            `json:"std"`
	P25          float64            `json:"p25"`
	P50          float64            `json:"p50"`
	P75          float64            `json:"p75"`
	P95          float64            `json:"p95"`
	P99          float64            `json:"p99"`
	HourOfDay    *[24]float64       `json:"hour_of_day,omitempty"` // diurnal mean, nil if not applicable
	LastUpdated  time.Time          `json:"last_updated"`
}

// Zscore returns (v - Mean) / Std, or 0 if Std is 0 or the baseline is
// insufficient.
func (s Stats) Zscore(v float64) float64 {
	if s.Insufficient || s.Std == 0 {
		return 0
	}
	return (v - s.Mean) / s.Std
}

// diurnalFamilies lists the metric families with a diurnal signal per
// §4.5 ("memory, load, tcp").
var diurnalFamilies = map[string]bool{
	"memory_pressure_pct": true,
	"load1_per_cpu":        true,
	"tcp_time_wait":        true,
	"tcp_syn_recv":         true,
}

// Compute reduces a set of samples (optionally timestamped, for the
// diurnal breakdown) to Stats. Fewer than MinSamples marks the baseline
// Insufficient per §4.5; classifiers must then skip quantile-based
// severity for this metric.
func Compute(metricType string, values []float64, sampleTimes []time.Time, now time.Time) Stats {
	s := Stats{MetricType: metricType, SampleCount: len(values), LastUpdated: now}
	if len(values) < MinSamples {
		s.Insufficient = true
	}
	if len(values) == 0 {
		return s
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	s.Mean, s.Std = mean, std
	s.P25 = stat.Quantile(0.25, stat.Empirical, sorted, nil)
	s.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P75 = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, sorted, nil)

	if diurnalFamilies[metricType] && len(sampleTimes) == len(values) {
		var sums [24]float64
		var counts [24]int
		for i, v := range values {
			h := sampleTimes[i].Hour()
			sums[h] += v
			counts[h]++
		}
		var hourly [24]float64
		for h := 0; h < 24; h++ {
			if counts[h] > 0 {
				hourly[h] = sums[h] / float64(counts[h])
			}
		}
		s.HourOfDay = &hourly
	}

	return s
}
