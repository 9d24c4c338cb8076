package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// Engine computes and persists baselines and trends against a store. It
// holds no per-metric state of its own — everything is recomputed from
// raw rows on demand, memoized only in system_baselines (§4.5 "computed
// on demand").
type Engine struct {
	store *store.Store
	clock kernsight.Clock
}

// New constructs a baseline Engine bound to an open store.
func New(st *store.Store, clock kernsight.Clock) *Engine {
	if clock == nil {
		clock = kernsight.SystemClock{}
	}
	return &Engine{store: st, clock: clock}
}

// key folds a per-entity scope into the metric_type string, since
// system_baselines is keyed only by (metric_type, lookback) — see
// DESIGN.md for this choice.
func key(family, scope string) string {
	if scope == "" {
		return family
	}
	return family + ":" + scope
}

// Family strips a scope suffix from a metric_type key, e.g.
// "net_error_rate:eth0" -> "net_error_rate". Exported so callers that
// only have the persisted key (e.g. reading a trace's baseline_context)
// can recover which query family produced it.
func Family(metricType string) string {
	if i := strings.IndexByte(metricType, ':'); i >= 0 {
		return metricType[:i]
	}
	return metricType
}

// Baseline computes (or recomputes) the baseline for a metric family,
// optionally scoped to an entity, over lookback, and persists it.
func (e *Engine) Baseline(ctx context.Context, metricFamily, scope string, lookback time.Duration) (Stats, error) {
	q, ok := queries[metricFamily]
	if !ok {
		return Stats{}, kernsight.ValidationFailure("baseline.Baseline", fmt.Errorf("unknown metric family %q", metricFamily))
	}
	now := e.clock.Now()
	since := now.Add(-lookback)

	snap := e.store.Snapshot()
	samples, err := q(ctx, snap.DB(), since, scope)
	if err != nil {
		return Stats{}, kernsight.Retryable("baseline.Baseline", err)
	}

	values := make([]float64, len(samples))
	times := make([]time.Time, len(samples))
	for i, s := range samples {
		values[i] = s.value
		times[i] = s.at
	}

	metricType := key(metricFamily, scope)
	stats := Compute(metricType, values, times, now)

	payload, err := json.Marshal(stats)
	if err != nil {
		return Stats{}, kernsight.Fatal("baseline.Baseline", err)
	}
	err = e.store.UpsertBaseline(ctx, store.Baseline{
		MetricType:  metricType,
		Lookback:    lookback,
		PayloadJSON: payload,
		SampleCount: stats.SampleCount,
		LastUpdated: now,
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Get loads the most recently persisted baseline without recomputing,
// for callers (e.g. the decision loop's EXPLAIN phase) that want a cheap
// read rather than a fresh scan.
func (e *Engine) Get(ctx context.Context, metricFamily, scope string, lookback time.Duration) (*Stats, error) {
	metricType := key(metricFamily, scope)
	snap := e.store.Snapshot()
	b, err := snap.GetBaseline(ctx, metricType, lookback)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	var s Stats
	if err := json.Unmarshal(b.PayloadJSON, &s); err != nil {
		return nil, kernsight.Fatal("baseline.Get", err)
	}
	return &s, nil
}

// Trend computes the least-squares trend for a metric family/scope over
// the most recent window (default 30 min), without touching
// system_baselines — trends are ephemeral, recomputed every call.
func (e *Engine) Trend(ctx context.Context, metricFamily, scope string, window time.Duration) (Trend, error) {
	q, ok := queries[metricFamily]
	if !ok {
		return Trend{}, kernsight.ValidationFailure("baseline.Trend", fmt.Errorf("unknown metric family %q", metricFamily))
	}
	now := e.clock.Now()
	since := now.Add(-window)

	snap := e.store.Snapshot()
	samples, err := q(ctx, snap.DB(), since, scope)
	if err != nil {
		return Trend{}, kernsight.Retryable("baseline.Trend", err)
	}

	points := make([]Point, len(samples))
	for i, s := range samples {
		points[i] = Point{At: s.at, Value: s.value}
	}
	return ComputeTrend(points), nil
}

// Families lists the metric families this Engine knows how to query,
// for callers (e.g. the decision loop's "biggest change" narrative)
// that want to scan every tracked metric rather than one signal's own
// family.
func Families() []string {
	out := make([]string, 0, len(queries))
	for f := range queries {
		out = append(out, f)
	}
	return out
}

// RecentDelta reports the raw last-minus-first sample value over window
// for one metric family/scope, skipping least-squares fit entirely —
// short windows rarely clear MinTrendRSquared, but "how much did this
// move" doesn't need a fit to be meaningful.
func (e *Engine) RecentDelta(ctx context.Context, metricFamily, scope string, window time.Duration) (delta float64, ok bool, err error) {
	q, known := queries[metricFamily]
	if !known {
		return 0, false, kernsight.ValidationFailure("baseline.RecentDelta", fmt.Errorf("unknown metric family %q", metricFamily))
	}
	now := e.clock.Now()
	since := now.Add(-window)

	snap := e.store.Snapshot()
	samples, qerr := q(ctx, snap.DB(), since, scope)
	if qerr != nil {
		return 0, false, kernsight.Retryable("baseline.RecentDelta", qerr)
	}
	if len(samples) < 2 {
		return 0, false, nil
	}
	return samples[len(samples)-1].value - samples[0].value, true, nil
}

// BiggestChange scans every tracked metric family (host-wide scope
// only) over window and reports whichever moved most in absolute
// terms — the "what changed" line the EXPLAIN phase adds to its
// observation narrative alongside the signal's own baseline citation.
func (e *Engine) BiggestChange(ctx context.Context, window time.Duration) (family string, delta float64, ok bool) {
	var bestFamily string
	var bestDelta float64
	found := false
	for _, f := range Families() {
		d, hasDelta, err := e.RecentDelta(ctx, f, "", window)
		if err != nil || !hasDelta {
			continue
		}
		if !found || absFloat(d) > absFloat(bestDelta) {
			bestFamily, bestDelta, found = f, d, true
		}
	}
	return bestFamily, bestDelta, found
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
