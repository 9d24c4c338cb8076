// Package loop implements the decision loop: an eight-phase
// Observe/Explain/Simulate/Decide/Approve/Execute/Verify/Reflect state
// machine driven off a fixed decision interval.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/actions"
	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/executor"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/reason"
	"github.com/kernelsight/kernelsight/pkg/simulate"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// simulateHorizon is how far ahead SIMULATE projects a metric.
const simulateHorizon = 30 * time.Minute

// stabilityWindow is the "what changed recently" window EXPLAIN scans
// across every tracked metric family, independent of the triggering
// signal's own baseline family.
const stabilityWindow = 30 * time.Second

// Engine owns one decision loop's dependencies and runs it on a ticker.
type Engine struct {
	store     *store.Store
	baselines *baseline.Engine
	reasoner  reason.Reasoner
	exec      *executor.Executor
	approver  Approver
	metrics   *kernsight.Metrics
	clock     kernsight.Clock
	cfg       kernsight.Config
	logger    *zap.Logger

	cycleSeq int
}

// NewEngine wires one decision loop. approver may be a SocketApprover
// built from cfg.ApprovalSocket, or any other Approver (e.g. for tests).
func NewEngine(st *store.Store, baselines *baseline.Engine, reasoner reason.Reasoner, exec *executor.Executor, approver Approver, metrics *kernsight.Metrics, clock kernsight.Clock, cfg kernsight.Config, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = kernsight.SystemClock{}
	}
	return &Engine{
		store: st, baselines: baselines, reasoner: reasoner, exec: exec,
		approver: approver, metrics: metrics, clock: clock, cfg: cfg, logger: logger,
	}
}

// Run drives RunCycle on cfg.DecisionInterval until ctx is cancelled.
// Per-cycle errors are logged and counted, never propagated past the
// loop — a single cycle's failure must not take down the process —
// only ctx cancellation ends Run.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.DecisionInterval
	if interval <= 0 {
		interval = kernsight.Default().DecisionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("decision loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("decision loop stopping")
			return nil
		case <-ticker.C:
			if err := e.RunCycle(ctx); err != nil {
				kind := kernsight.KindFatal
				var kerr *kernsight.Error
				if k, ok := err.(*kernsight.Error); ok {
					kerr = k
					kind = kerr.Kind
				}
				e.metrics.RecordError(kind)
				e.logger.Error("decision cycle failed", zap.Error(err))
			}
		}
	}
}

// RunCycle executes one full pass of the state machine against the
// single highest-severity unprocessed signal, or returns nil without
// creating a trace if there is nothing to reason about.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.metrics.CyclesTotal.Inc()
	now := e.clock.Now()
	cycleID := e.nextCycleID(now)
	logger := e.logger.With(zap.String("cycle_id", cycleID))

	snap := e.store.Snapshot()

	// OBSERVE
	sig, err := e.observe(ctx, snap, now)
	if err != nil {
		return err
	}
	if sig == nil {
		logger.Debug("observe found no actionable signal")
		return nil
	}

	traceID, err := e.store.InsertTrace(ctx, store.Trace{
		CycleID:   cycleID,
		StartedAt: now,
		Phase:     "observe",
		SignalIDs: []int64{sig.ID},
		SystemState: map[string]any{
			"signal_type": sig.SignalType,
			"severity":    sig.Severity,
			"scope":       sig.Scope,
		},
	})
	if err != nil {
		return err
	}

	observation := sig.Summary

	// EXPLAIN
	baselineCtx, trend, err := e.explain(ctx, sig)
	if err != nil {
		logger.Warn("explain phase degraded", zap.Error(err))
	}
	if changeFamily, delta, ok := e.baselines.BiggestChange(ctx, stabilityWindow); ok {
		observation += fmt.Sprintf(" biggest change in the last %s: %s moved %.3f.", stabilityWindow, changeFamily, delta)
		baselineCtx["biggest_change_family"] = changeFamily
		baselineCtx["biggest_change_delta"] = delta
	}
	if err := e.store.AdvancePhase(ctx, traceID, "explain", map[string]any{
		"observation":            observation,
		"baseline_context_json":  mustJSON(baselineCtx),
	}); err != nil {
		return err
	}

	// SIMULATE
	projection := e.simulate(sig, trend)
	if err := e.store.AdvancePhase(ctx, traceID, "simulate", map[string]any{
		"predicted_outcome_json": mustJSON(projectionMap(projection)),
	}); err != nil {
		return err
	}

	// DECIDE
	decision, err := e.reasoner.Propose(ctx, reason.Input{
		CycleID:          cycleID,
		Signal:           *sig,
		Baseline:         baselineCtx,
		Trend:            trendMap(trend),
		Projection:       projection,
		ObservationText:  observation,
		AvailableActions: actionTypes(),
	})
	if err != nil {
		return e.rejectCycle(ctx, traceID, cycleID, sig, "", 0, "reasoner failed: "+err.Error(), logger)
	}
	if err := reason.Validate(decision); err != nil {
		return e.rejectCycle(ctx, traceID, cycleID, sig, decision.RecommendedAction.ActionType, decision.Confidence, "decision failed schema validation: "+err.Error(), logger)
	}

	if err := e.store.AdvancePhase(ctx, traceID, "decide", map[string]any{
		"hypothesis":           decision.Hypothesis,
		"evidence_json":        mustJSON(decision.Evidence),
		"action_type":          decision.RecommendedAction.ActionType,
		"action_params_json":   mustJSON(decision.RecommendedAction.Params),
		"confidence":           decision.Confidence,
	}); err != nil {
		return err
	}

	// GATE
	gateVerdict := gate(e.cfg, sig.Severity, decision.Confidence)
	e.metrics.LastConfidence.Set(decision.Confidence)
	if !gateVerdict.Pass {
		e.metrics.GateDenied.Inc()
		return e.rejectCycle(ctx, traceID, cycleID, sig, decision.RecommendedAction.ActionType, decision.Confidence,
			fmt.Sprintf("confidence %.3f below %s threshold %.3f", gateVerdict.Effective, sig.Severity, gateVerdict.Threshold), logger)
	}

	// APPROVE
	built, buildErr := actions.Build(decision.RecommendedAction.ActionType, decision.RecommendedAction.Params)
	if buildErr != nil {
		return e.rejectCycle(ctx, traceID, cycleID, sig, decision.RecommendedAction.ActionType, decision.Confidence, "build_command failed: "+buildErr.Error(), logger)
	}

	if e.cfg.RequireApproval {
		approved, approvalReason := e.approver.Approve(ctx, approvalRequest{
			CycleID: cycleID, ActionType: built.ActionType, Params: decision.RecommendedAction.Params,
			Command: built.Command, Risk: string(built.Risk), Confidence: decision.Confidence,
		})
		if !approved {
			return e.rejectCycle(ctx, traceID, cycleID, sig, built.ActionType, decision.Confidence, "approval denied: "+approvalReason, logger)
		}
	}

	if err := e.store.AdvancePhase(ctx, traceID, "approve", map[string]any{
		"rendered_command": built.Command,
	}); err != nil {
		return err
	}

	// EXECUTE
	spec := actions.Lookup(built.ActionType)
	preExecAt := e.clock.Now()
	result, execErr := e.exec.Run(ctx, built, spec.Category, false)
	success := execErr == nil && result != nil && result.ExitCode == 0

	fields := kernsight.CycleLogFields(cycleID, "execute", sig.SignalType, sig.Severity, built.ActionType, outcomeLabel(success))
	if success {
		logger.Info("action executed", fields...)
		e.metrics.ActionsExecuted.Inc()
	} else {
		logger.Warn("action execution failed", append(fields, zap.Error(execErr))...)
		e.metrics.ActionsRejected.Inc()
	}

	actualOutcome := map[string]any{"success": success}
	if result != nil {
		actualOutcome["exit_code"] = result.ExitCode
		actualOutcome["stdout"] = result.Stdout
		actualOutcome["stderr"] = result.Stderr
	}

	// VERIFY
	outcome := e.verify(ctx, snap, sig, projection, success, preExecAt)
	actualOutcome["hypothesis_correct"] = outcome.hypothesisCorrect
	actualOutcome["prediction_accurate"] = outcome.predictionAccurate

	if err := e.store.AdvancePhase(ctx, traceID, "verify", map[string]any{
		"action_executed":        boolToInt(true),
		"actual_outcome_json":    mustJSON(actualOutcome),
		"hypothesis_correct":     boolToInt(outcome.hypothesisCorrect),
		"prediction_accurate":    boolToInt(outcome.predictionAccurate),
		"confidence_calibrated":  boolToInt(outcome.confidenceCalibrated),
	}); err != nil {
		return err
	}

	// REFLECT
	priorNow, priorErr := getPrior(ctx, snap, sig.SignalType, built.ActionType, priorFallback(decision.Confidence))
	if priorErr != nil {
		logger.Warn("prior lookup failed, seeding from decision confidence", zap.Error(priorErr))
		priorNow = priorFallback(decision.Confidence)
	}
	if err := adjustPrior(ctx, e.store, e.clock, sig.SignalType, built.ActionType, outcome.hypothesisCorrect, e.cfg.LearningRate, priorNow); err != nil {
		logger.Warn("prior adjustment failed", zap.Error(err))
	}
	if outcome.predictionAccurate {
		e.metrics.PredictionAccurate.Inc()
	}

	return e.store.AdvancePhase(ctx, traceID, "done", map[string]any{})
}

// defaultVerifyCooldown is how long VERIFY waits after EXECUTE before
// re-querying the acted-on entity's signal state, long enough for a
// remediation action to show an observable effect but short enough not
// to stall the next decision cycle. cfg.VerifyCooldown overrides it
// (tests shrink it to avoid a real-time wait per cycle).
const defaultVerifyCooldown = 10 * time.Second

// verifyOutcome is what VERIFY persists to reasoning_traces and feeds
// into REFLECT's prior adjustment, derived from comparing the signal's
// post-cooldown state against the projection SIMULATE recorded at
// DECIDE time, rather than from the executor's raw exit code.
type verifyOutcome struct {
	hypothesisCorrect    bool
	predictionAccurate   bool
	confidenceCalibrated bool
}

// verify waits verifyCooldown, then re-queries sig.EntityID/sig.SignalType
// to see whether the signal that triggered this cycle recurred after the
// action ran. hypothesisCorrect is true when the action executed and the
// signal did not recur at or above its triggering severity. predictionAccurate
// additionally checks, when SIMULATE produced a threshold crossing, that the
// re-observed metric stayed under that threshold. confidenceCalibrated is
// true when the decision's approved confidence was vindicated by the outcome.
func (e *Engine) verify(ctx context.Context, snap *store.Snapshot, sig *store.Signal, projection *simulate.Projection, execSuccess bool, preExecAt time.Time) verifyOutcome {
	cooldown := e.cfg.VerifyCooldown
	if cooldown <= 0 {
		cooldown = defaultVerifyCooldown
	}
	select {
	case <-ctx.Done():
		return verifyOutcome{}
	case <-time.After(cooldown):
	}

	recheck, err := snap.QuerySignals(ctx, store.SignalFilter{
		SignalType: sig.SignalType,
		EntityID:   sig.EntityID,
		Limit:      10,
	})
	if err != nil {
		return verifyOutcome{}
	}

	var recurrence *store.Signal
	for i := range recheck {
		s := &recheck[i]
		if s.LastSeen.After(preExecAt) && severityRank(s.Severity) >= severityRank(sig.Severity) {
			recurrence = s
			break
		}
	}

	hypothesisCorrect := execSuccess && recurrence == nil

	predictionAccurate := hypothesisCorrect
	if hypothesisCorrect && projection != nil && projection.Crosses != nil && len(recheck) > 0 {
		if current, ok := currentValue(recheck[0].Context, sig.SignalType); ok {
			predictionAccurate = current < projection.Crosses.Threshold
		}
	}

	return verifyOutcome{
		hypothesisCorrect:    hypothesisCorrect,
		predictionAccurate:   predictionAccurate,
		confidenceCalibrated: predictionAccurate,
	}
}

// observe pulls signals since the last decision interval and returns
// the single highest-severity one, or nil if nothing qualifies.
func (e *Engine) observe(ctx context.Context, snap *store.Snapshot, now time.Time) (*store.Signal, error) {
	lookback := e.cfg.DecisionInterval
	if lookback <= 0 {
		lookback = kernsight.Default().DecisionInterval
	}
	sigs, err := snap.QuerySignals(ctx, store.SignalFilter{Since: now.Add(-lookback), Limit: 200})
	if err != nil {
		return nil, err
	}

	var best *store.Signal
	for i := range sigs {
		s := &sigs[i]
		if !kernsight.Severity(s.Severity).AtLeast(kernsight.SeverityMedium) {
			continue
		}
		if best == nil || severityRank(s.Severity) > severityRank(best.Severity) {
			best = s
		}
	}
	return best, nil
}

func severityRank(s string) int {
	switch kernsight.Severity(s) {
	case kernsight.SeverityCritical:
		return 4
	case kernsight.SeverityHigh:
		return 3
	case kernsight.SeverityMedium:
		return 2
	case kernsight.SeverityLow:
		return 1
	default:
		return 0
	}
}

// explain loads the signal's baseline family (when it has one) and
// returns a JSON-friendly baseline context plus the raw Trend for
// SIMULATE — skipping cleanly for signal types with no tracked family.
func (e *Engine) explain(ctx context.Context, sig *store.Signal) (map[string]any, baseline.Trend, error) {
	family, scoped, ok := BaselineFamilyFor(sig.SignalType)
	if !ok {
		return map[string]any{}, baseline.Trend{}, nil
	}
	scope := ""
	if scoped {
		scope = sig.Scope
	}

	lookback := e.cfg.BaselineLookback
	if lookback <= 0 {
		lookback = baseline.DefaultLookback
	}
	st, err := e.baselines.Get(ctx, family, scope, lookback)
	if err != nil {
		return map[string]any{}, baseline.Trend{}, err
	}
	var baselineCtx map[string]any
	if st != nil {
		baselineCtx = map[string]any{
			"metric_family": family,
			"mean":          st.Mean,
			"std":           st.Std,
			"p95":           st.P95,
			"insufficient":  st.Insufficient,
		}
	} else {
		baselineCtx = map[string]any{"metric_family": family, "insufficient": true}
	}

	window := e.cfg.TrendWindow
	if window <= 0 {
		window = baseline.DefaultTrendWindow
	}
	trend, err := e.baselines.Trend(ctx, family, scope, window)
	if err != nil {
		return baselineCtx, baseline.Trend{}, err
	}
	return baselineCtx, trend, nil
}

// simulate projects the signal's primary metric against its escalation
// schedule. Returns nil when no projection is possible (no tracked
// band, no evidence current value, or no trend) rather than failing
// the cycle — SIMULATE's absence still lets DECIDE/GATE proceed on the
// signal's own severity.
func (e *Engine) simulate(sig *store.Signal, trend baseline.Trend) *simulate.Projection {
	bands := DefaultThresholds(sig.SignalType)
	if bands == nil {
		return nil
	}
	current, ok := currentValue(sig.Context, sig.SignalType)
	if !ok {
		return nil
	}
	p, err := simulate.Project(simulate.Input{
		SignalType: sig.SignalType,
		Current:    current,
		Trend:      trend,
		Horizon:    simulateHorizon,
		Thresholds: bands,
	})
	if err != nil {
		return nil
	}
	return &p
}

// rejectCycle records a cycle that stopped short of EXECUTE (reasoner
// failure, schema violation, gate denial, or approval denial) and
// returns nil — a rejection is an expected outcome, not a loop error.
func (e *Engine) rejectCycle(ctx context.Context, traceID int64, cycleID string, sig *store.Signal, actionType string, confidence float64, reason string, logger *zap.Logger) error {
	e.metrics.ActionsRejected.Inc()
	fields := kernsight.CycleLogFields(cycleID, "reject", sig.SignalType, sig.Severity, actionType, "rejected")
	logger.Info(reason, fields...)
	return e.store.AdvancePhase(ctx, traceID, "rejected", map[string]any{
		"rejected_reason": reason,
		"action_type":     actionType,
		"confidence":      confidence,
	})
}

// nextCycleID is time-sortable (the unix-36 prefix) but still globally
// unique across process restarts, where e.cycleSeq alone would collide
// with a prior run's cycle minted in the same second.
func (e *Engine) nextCycleID(now time.Time) string {
	e.cycleSeq++
	return "cyc-" + strconv.FormatInt(now.Unix(), 36) + "-" + strconv.Itoa(e.cycleSeq) + "-" + uuid.NewString()[:8]
}

func actionTypes() []string {
	out := make([]string, 0, len(actions.Catalog))
	for k := range actions.Catalog {
		out = append(out, k)
	}
	return out
}

func trendMap(t baseline.Trend) map[string]any {
	return map[string]any{
		"slope_per_minute": t.SlopePerMinute,
		"r_squared":        t.RSquared,
		"present":          t.Present,
	}
}

func projectionMap(p *simulate.Projection) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	m := map[string]any{
		"current":   p.Current,
		"projected": p.Projected,
		"delta":     p.Delta,
		"risk":      p.Risk,
	}
	if p.Crosses != nil {
		m["crosses_threshold"] = p.Crosses.Threshold
		m["eta_seconds"] = p.Crosses.ETASeconds
	}
	return m
}

// priorFallback seeds an action_prior row the first time a
// (signal_type, action_type) pair is reflected on, from the decision's
// own confidence rather than an arbitrary constant.
func priorFallback(confidence float64) float64 {
	return confidence
}

func outcomeLabel(success bool) string {
	if success {
		return "succeeded"
	}
	return "failed"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
