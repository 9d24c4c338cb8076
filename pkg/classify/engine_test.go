package classify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/events"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

func TestEngineRunSnapshotsIncidentOnCriticalSignal(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "e.db"), kernsight.SystemClock{})
	require.NoError(t, err)
	require.NoError(t, st.Init(ctx))
	defer st.Close()

	now := time.Unix(1_700_000_000, 0)
	b := &store.Batch{}
	b.Add(events.LoadAvg{Timestamp: now.Unix(), Load1: 40, Load5: 30, Load15: 20})
	require.NoError(t, st.CommitBatch(ctx, b))

	clock := kernsight.NewFixedClock(now)
	baselines := baseline.New(st, clock)
	eng := New(st, baselines, kernsight.Default(), clock)

	signals, err := eng.Run(ctx, now.Add(-time.Minute), 4)
	require.NoError(t, err)

	var sawCritical bool
	for _, s := range signals {
		if s.SignalType == TypeLoadMismatch && s.Severity == sevCritical {
			sawCritical = true
		}
	}
	require.True(t, sawCritical)

	ids, err := st.Snapshot().RecentTraces(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	trace, err := st.Snapshot().GetTrace(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, "incident_snapshot", trace.Phase)
}
