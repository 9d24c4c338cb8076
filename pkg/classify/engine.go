package classify

import (
	"context"
	"time"

	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// Engine wires the classifier set to a store and a baseline engine,
// fetching the raw window and baselines a classification pass needs and
// persisting whatever signals it emits.
type Engine struct {
	store     *store.Store
	baselines *baseline.Engine
	cfg       kernsight.Config
	clock     kernsight.Clock
}

// New constructs a classify Engine.
func New(st *store.Store, baselines *baseline.Engine, cfg kernsight.Config, clock kernsight.Clock) *Engine {
	if clock == nil {
		clock = kernsight.SystemClock{}
	}
	return &Engine{store: st, baselines: baselines, cfg: cfg, clock: clock}
}

// Run loads the raw window since `since`, assembles the baselines the
// classifiers need, runs every classifier, and persists (coalescing) the
// resulting signals. It returns the signals produced in this pass.
func (e *Engine) Run(ctx context.Context, since time.Time, cpuCount int) ([]Signal, error) {
	now := e.clock.Now()
	snap := e.store.Snapshot()

	w, err := LoadWindow(ctx, snap.DB(), since)
	if err != nil {
		return nil, kernsight.Retryable("classify.Run", err)
	}

	baselines := e.loadBaselines(ctx, w)

	var signals []Signal
	signals = append(signals, ClassifyMemory(w, baselines, now)...)
	signals = append(signals, ClassifyLoad(w, baselines, now, cpuCount)...)
	signals = append(signals, ClassifyIO(w, baselines, now)...)
	signals = append(signals, ClassifyBlockDevice(w, baselines, now)...)
	signals = append(signals, ClassifyNetwork(w, baselines, now)...)
	signals = append(signals, ClassifyTCP(w, baselines, now)...)
	signals = append(signals, ClassifyScheduler(w, baselines, now)...)
	signals = append(signals, ClassifySyscalls(w, baselines, now)...)
	signals = append(signals, ClassifyPageFaults(w, baselines, now)...)

	for _, sig := range signals {
		coalesced, id, err := e.store.UpsertSignal(ctx, e.cfg.CoalesceWindow, sig)
		if err != nil {
			return signals, err
		}
		// A signal's first appearance at critical severity gets its own
		// trace row immediately, rather than waiting for the decision
		// loop's next tick — a critical condition between ticks (a loop
		// interval can be minutes) should not go unrecorded just because
		// nothing reasoned about it yet.
		if !coalesced && kernsight.Severity(sig.Severity) == kernsight.SeverityCritical {
			e.snapshotIncident(ctx, sig, id, now)
		}
	}

	return signals, nil
}

// snapshotIncident records a reasoning_traces row for a signal that
// just crossed into critical severity, independent of the decision
// loop's own ticker. Failure here never fails the classify pass — a
// missed snapshot is not worth rejecting otherwise-good signals over.
func (e *Engine) snapshotIncident(ctx context.Context, sig Signal, signalID int64, now time.Time) {
	_, _ = e.store.InsertTrace(ctx, store.Trace{
		CycleID:   "incident-" + sig.SignalType + "-" + now.UTC().Format(time.RFC3339),
		StartedAt: now,
		Phase:     "incident_snapshot",
		SignalIDs: []int64{signalID},
		SystemState: map[string]any{
			"signal_type": sig.SignalType,
			"severity":    sig.Severity,
			"scope":       sig.Scope,
			"summary":     sig.Summary,
			"context":     sig.Context,
		},
	})
}

// loadBaselines reads (without recomputing) the persisted baseline for
// every metric family/scope this window's data touches.
func (e *Engine) loadBaselines(ctx context.Context, w *Window) *Baselines {
	b := NewBaselines()
	lookback := e.cfg.BaselineLookback

	get := func(family, scope string) {
		st, err := e.baselines.Get(ctx, family, scope, lookback)
		if err == nil && st != nil {
			b.Put(family, scope, st)
		}
	}

	get("memory_pressure_pct", "")
	get("load1_per_cpu", "")
	get("io_read_p95_us", "")
	get("io_write_p95_us", "")
	get("tcp_time_wait", "")
	get("tcp_syn_recv", "")

	seenDevice := map[string]bool{}
	for _, r := range w.BlockStats {
		if !seenDevice[r.device] {
			seenDevice[r.device] = true
			get("block_util", r.device)
		}
	}
	seenIface := map[string]bool{}
	for _, r := range w.NetIface {
		if !seenIface[r.iface] {
			seenIface[r.iface] = true
			get("net_error_rate", r.iface)
		}
	}

	return b
}
