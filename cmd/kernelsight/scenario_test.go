package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/classify"
	"github.com/kernelsight/kernelsight/pkg/executor"
	"github.com/kernelsight/kernelsight/pkg/ingest"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/loop"
	"github.com/kernelsight/kernelsight/pkg/reason"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// fixedDecisionReasoner returns a predetermined Decision for every
// Propose call, letting a scenario test drive OBSERVE/EXPLAIN/SIMULATE
// for real while pinning DECIDE to a known value.
type fixedDecisionReasoner struct {
	decision *reason.Decision
	err      error
}

func (r *fixedDecisionReasoner) Propose(ctx context.Context, in reason.Input) (*reason.Decision, error) {
	return r.decision, r.err
}

// mustStatsJSON marshals a baseline.Stats payload for seeding
// system_baselines directly, bypassing the MinSamples floor a
// from-scratch Engine.Baseline computation would require.
func mustStatsJSON(t *testing.T, s baseline.Stats) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return b
}

// scenarioStore opens a fresh, initialized store under t.TempDir().
func scenarioStore(t *testing.T, clock kernsight.Clock) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "scenario.db"), clock)
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

// ingestFixture writes lines to a JSONL file under t.TempDir() and tails
// it through a real ingest.Engine until ctx is done, returning once the
// file has been fully drained into the store.
func ingestFixture(t *testing.T, st *store.Store, clock kernsight.Clock, streamName, lines string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), streamName+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))

	cfg := kernsight.Default()
	cfg.BatchSize = 1
	cfg.BatchTimeout = 10 * time.Millisecond

	eng := ingest.New(st, cfg, clock, zap.NewNop(), kernsight.NewMetrics())
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, eng.Run(ctx, map[string]string{streamName: path}))
}

// meminfoLine renders one meminfo event at the given unix-seconds timestamp.
func meminfoLine(ts, totalKB, availableKB int64) string {
	return fmt.Sprintf(`{"type":"meminfo","timestamp":%d,"total_kb":%d,"available_kb":%d}`, ts, totalKB, availableKB)
}

// TestScenarioQuietBaselineProducesNoSignalsOrTraces feeds a window of
// low memory pressure through ingest and classify and confirms the
// pipeline stays silent: no signals, no reasoning trace, and a decision
// cycle finds nothing actionable.
func TestScenarioQuietBaselineProducesNoSignalsOrTraces(t *testing.T) {
	clock := kernsight.NewFixedClock(time.Unix(1_700_000_000, 0))
	st := scenarioStore(t, clock)
	ctx := context.Background()

	lines := meminfoLine(1_700_000_000, 1_000_000, 800_000) + "\n" // 20% pressure
	ingestFixture(t, st, clock, "meminfo", lines)

	cfg := kernsight.Default()
	classifyEng := classify.New(st, baseline.New(st, clock), cfg, clock)
	sigs, err := classifyEng.Run(ctx, clock.Now().Add(-time.Hour), 4)
	require.NoError(t, err)
	require.Empty(t, sigs)

	snap := st.Snapshot()
	ids, err := snap.RecentTraces(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, ids)

	reasoner := &fixedDecisionReasoner{decision: &reason.Decision{}}
	eng := loop.NewEngine(st, baseline.New(st, clock), reasoner, executor.New(), loop.NewSocketApprover(""), kernsight.NewMetrics(), clock, cfg, zap.NewNop())
	require.NoError(t, eng.RunCycle(ctx))

	ids, err = snap.RecentTraces(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}

// TestScenarioMemoryLeakTrendRecordsHighConfidenceTrace drives a linear
// memory-leak reading (95% pressure against a seeded 50% baseline p95,
// a 45-point deviation) through ingest and classify, then runs the
// decision loop's rule-based reasoner against the resulting critical
// signal and confirms the recorded trace carries confidence >= 0.75.
// The approval gate (no socket configured) denies before EXECUTE, so
// this never shells out to clear_page_cache.
func TestScenarioMemoryLeakTrendRecordsHighConfidenceTrace(t *testing.T) {
	clock := kernsight.NewFixedClock(time.Unix(1_700_100_000, 0))
	st := scenarioStore(t, clock)
	ctx := context.Background()

	require.NoError(t, st.UpsertBaseline(ctx, store.Baseline{
		MetricType:  "memory_pressure_pct",
		Lookback:    baseline.DefaultLookback,
		PayloadJSON: mustStatsJSON(t, baseline.Stats{
			MetricType: "memory_pressure_pct", SampleCount: 2000,
			Mean: 0.50, Std: 0.05, P95: 0.50, LastUpdated: clock.Now(),
		}),
		SampleCount: 2000,
		LastUpdated: clock.Now(),
	}))

	lines := meminfoLine(clock.Now().Unix(), 1_000_000, 50_000) + "\n" // 95% pressure
	ingestFixture(t, st, clock, "meminfo", lines)

	cfg := kernsight.Default()
	classifyEng := classify.New(st, baseline.New(st, clock), cfg, clock)
	sigs, err := classifyEng.Run(ctx, clock.Now().Add(-time.Hour), 4)
	require.NoError(t, err)
	require.NotEmpty(t, sigs)
	require.Equal(t, classify.TypeMemoryPressure, sigs[0].SignalType)
	require.Equal(t, "critical", sigs[0].Severity)

	reasoner := reason.NewHybrid(nil, false, zap.NewNop()) // falls through to RuleBased
	eng := loop.NewEngine(st, baseline.New(st, clock), reasoner, executor.New(), loop.NewSocketApprover(""), kernsight.NewMetrics(), clock, cfg, zap.NewNop())
	require.NoError(t, eng.RunCycle(ctx))

	// classify.Run already snapshotted an incident_snapshot trace the
	// moment the critical signal first appeared; find the decision
	// loop's own trace among RecentTraces rather than assuming it's
	// alone or first.
	snap := st.Snapshot()
	ids, err := snap.RecentTraces(ctx, 10)
	require.NoError(t, err)

	var loopTrace *store.Trace
	for _, id := range ids {
		tr, err := snap.GetTrace(ctx, id)
		require.NoError(t, err)
		if tr.Phase != "incident_snapshot" {
			loopTrace = tr
		}
	}
	require.NotNil(t, loopTrace, "expected a decision-loop trace in addition to the incident snapshot")
	require.GreaterOrEqual(t, loopTrace.Confidence, 0.75)
	require.Equal(t, "clear_page_cache", loopTrace.ActionType)
	require.False(t, loopTrace.ActionExecuted)
}

// entityEchoReasoner always proposes the harmless flush_buffers action
// (runs "sync", no root, no params), regardless of which signal it is
// asked about — used to drive a cascading multi-entity incident through
// RunCycle without risking a real destructive subprocess.
type entityEchoReasoner struct{}

func (entityEchoReasoner) Propose(ctx context.Context, in reason.Input) (*reason.Decision, error) {
	return &reason.Decision{
		Observation: in.ObservationText,
		Hypothesis:  "remediation for " + in.Signal.EntityID,
		RecommendedAction: reason.ActionRef{
			ActionType: "flush_buffers",
		},
		Confidence: 0.95,
		Source:     "rule_based",
	}, nil
}

// TestScenarioCascadingIncidentRemediatesEachEntityInSeverityOrder
// seeds three concurrent signals across three entities at descending
// severity (critical, high, medium) and runs the decision loop
// repeatedly, downgrading each acted-on entity's signal between cycles
// to simulate remediation taking effect — confirming the loop works
// through the incident highest-severity-first rather than picking one
// entity forever.
func TestScenarioCascadingIncidentRemediatesEachEntityInSeverityOrder(t *testing.T) {
	clock := kernsight.NewFixedClock(time.Unix(1_700_200_000, 0))
	st := scenarioStore(t, clock)
	ctx := context.Background()

	entities := []struct {
		id       string
		severity string
	}{
		{"proc-critical", string(kernsight.SeverityCritical)},
		{"proc-high", string(kernsight.SeverityHigh)},
		{"proc-medium", string(kernsight.SeverityMedium)},
	}

	makeSignal := func(entityID, severity string) store.Signal {
		return store.Signal{
			Timestamp:     clock.Now(),
			Category:      string(kernsight.CategorySymptom),
			SignalType:    classify.TypeScheduler,
			Scope:         entityID,
			SemanticLabel: "context_switch_rate",
			Severity:      severity,
			PressureScore: 0.8,
			Summary:       "scheduling thrash on " + entityID,
			EntityType:    "process",
			EntityID:      entityID,
			EntityName:    entityID,
		}
	}

	for _, e := range entities {
		_, _, err := st.UpsertSignal(ctx, 60*time.Second, makeSignal(e.id, e.severity))
		require.NoError(t, err)
	}

	cfg := kernsight.Default()
	cfg.RequireApproval = false
	cfg.VerifyCooldown = time.Millisecond

	eng := loop.NewEngine(st, baseline.New(st, clock), entityEchoReasoner{}, executor.New(), loop.NewSocketApprover(""), kernsight.NewMetrics(), clock, cfg, zap.NewNop())
	snap := st.Snapshot()

	var actedScopes []string
	for i := 0; i < len(entities); i++ {
		require.NoError(t, eng.RunCycle(ctx))

		ids, err := snap.RecentTraces(ctx, 10)
		require.NoError(t, err)
		require.Len(t, ids, i+1)

		tr, err := snap.GetTrace(ctx, ids[0])
		require.NoError(t, err)
		require.True(t, tr.ActionExecuted, "cycle %d", i)
		require.Equal(t, "flush_buffers", tr.ActionType)

		scope, _ := tr.SystemState["scope"].(string)
		require.NotEmpty(t, scope)
		actedScopes = append(actedScopes, scope)

		// simulate remediation: downgrade this entity's signal so the
		// next cycle moves on to the next-highest severity.
		var acted string
		for _, e := range entities {
			if e.id == scope {
				acted = e.id
			}
		}
		require.NotEmpty(t, acted, "cycle %d acted on unknown entity %q", i, scope)
		downgraded := makeSignal(acted, string(kernsight.SeverityLow))
		_, _, err = st.UpsertSignal(ctx, 60*time.Second, downgraded)
		require.NoError(t, err)
	}

	require.ElementsMatch(t, []string{"proc-critical", "proc-high", "proc-medium"}, actedScopes)
	require.Equal(t, "proc-critical", actedScopes[0], "highest severity must act first")
}

// pidRejectReasoner always proposes lower_process_priority with pid -1,
// an out-of-catalog-range parameter that passes reason.Validate's
// schema check (action_type is recognized) but fails actions.Build's
// positive-integer validator.
type pidRejectReasoner struct{}

func (pidRejectReasoner) Propose(ctx context.Context, in reason.Input) (*reason.Decision, error) {
	return &reason.Decision{
		Observation: in.ObservationText,
		Hypothesis:  "a runaway process needs its priority lowered",
		RecommendedAction: reason.ActionRef{
			ActionType: "lower_process_priority",
			Params:     map[string]any{"pid": -1, "priority": 10},
		},
		Confidence: 0.95,
		Source:     "rule_based",
	}, nil
}

// TestScenarioRejectsInvalidPIDProposalWithoutExecuting confirms a
// cycle whose decision passes schema validation and the confidence gate
// but carries an unbuildable parameter (pid -1) is rejected at
// build_command, never reaches EXECUTE, and the rejection is the
// recorded outcome of the cycle.
func TestScenarioRejectsInvalidPIDProposalWithoutExecuting(t *testing.T) {
	clock := kernsight.NewFixedClock(time.Unix(1_700_300_000, 0))
	st := scenarioStore(t, clock)
	ctx := context.Background()

	sig := store.Signal{
		Timestamp:     clock.Now(),
		Category:      string(kernsight.CategorySymptom),
		SignalType:    classify.TypeMemoryPressure,
		Scope:         "host",
		SemanticLabel: "memory_pressure_pct",
		Severity:      string(kernsight.SeverityHigh),
		PressureScore: 0.85,
		Summary:       "memory pressure is high",
		EntityType:    "host",
		EntityID:      "localhost",
		EntityName:    "localhost",
	}
	_, _, err := st.UpsertSignal(ctx, 60*time.Second, sig)
	require.NoError(t, err)

	cfg := kernsight.Default()
	eng := loop.NewEngine(st, baseline.New(st, clock), pidRejectReasoner{}, executor.New(), loop.NewSocketApprover(""), kernsight.NewMetrics(), clock, cfg, zap.NewNop())
	require.NoError(t, eng.RunCycle(ctx))

	snap := st.Snapshot()
	ids, err := snap.RecentTraces(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	tr, err := snap.GetTrace(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, "rejected", tr.Phase)
	require.False(t, tr.ActionExecuted)
	require.Contains(t, tr.RejectedReason, "build_command failed")
}
