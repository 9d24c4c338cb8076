package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/events"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	clock := kernsight.NewFixedClock(time.Unix(1_700_000_000, 0))
	s, err := Open(path, clock)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()))
}

func TestCommitBatchAndTableStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := &Batch{}
	b.Add(events.MemInfo{Timestamp: 1700000000, TotalKB: 16_000_000, FreeKB: 1_000_000})
	b.Add(events.LoadAvg{Timestamp: 1700000000, Load1: 1.5, Load5: 1.2, Load15: 0.9})
	require.False(t, b.Empty())
	require.NoError(t, s.CommitBatch(ctx, b))

	stats, err := s.TableStats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats["raw_meminfo"])
	require.EqualValues(t, 1, stats["raw_loadavg"])
	require.EqualValues(t, 0, stats["raw_syscall"])
}

func TestCommitBatchEmptyIsNoop(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CommitBatch(context.Background(), &Batch{}))
}

func TestUpsertSignalCoalescesWithinWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	sig := Signal{
		Timestamp:     base,
		Category:      "memory",
		SignalType:    "memory_pressure",
		SemanticLabel: "swap_thrashing",
		EntityID:      "host",
		Severity:      "high",
		PressureScore: 0.8,
		Summary:       "swap thrashing detected",
		Patterns:      []string{"rising_swap"},
	}
	coalesced, id1, err := s.UpsertSignal(ctx, 60*time.Second, sig)
	require.NoError(t, err)
	require.False(t, coalesced)
	require.NotZero(t, id1)

	sig.Timestamp = base.Add(30 * time.Second)
	coalesced, id2, err := s.UpsertSignal(ctx, 60*time.Second, sig)
	require.NoError(t, err)
	require.True(t, coalesced)
	require.Equal(t, id1, id2)

	sig.Timestamp = base.Add(5 * time.Minute)
	coalesced, id3, err := s.UpsertSignal(ctx, 60*time.Second, sig)
	require.NoError(t, err)
	require.False(t, coalesced)
	require.NotEqual(t, id1, id3)

	snap := s.Snapshot()
	sigs, err := snap.QuerySignals(ctx, SignalFilter{SignalType: "memory_pressure"})
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	require.Equal(t, 2, sigs[1].OccurrenceCount)
}

func TestBaselineRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()

	err := s.UpsertBaseline(ctx, Baseline{
		MetricType:  "mem_free_pct",
		Lookback:    7 * 24 * time.Hour,
		PayloadJSON: []byte(`{"p50":0.4}`),
		SampleCount: 5000,
		LastUpdated: now,
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	got, err := snap.GetBaseline(ctx, "mem_free_pct", 7*24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 5000, got.SampleCount)
	require.JSONEq(t, `{"p50":0.4}`, string(got.PayloadJSON))
}

func TestGetBaselineMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	snap := s.Snapshot()
	got, err := snap.GetBaseline(context.Background(), "nonexistent", time.Hour)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTraceLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()

	id, err := s.InsertTrace(ctx, Trace{
		CycleID:   "cycle-1",
		StartedAt: now,
		Phase:     "observe",
		SignalIDs: []int64{1, 2},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	err = s.AdvancePhase(ctx, id, "decide", map[string]any{
		"action_type": "drop_caches",
		"confidence":  0.82,
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	tr, err := snap.GetTrace(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "decide", tr.Phase)
	require.Equal(t, "drop_caches", tr.ActionType)
	require.InDelta(t, 0.82, tr.Confidence, 0.0001)

	ids, err := snap.RecentTraces(ctx, 10)
	require.NoError(t, err)
	require.Contains(t, ids, id)
}
