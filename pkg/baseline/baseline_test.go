package baseline

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/events"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

func TestComputeInsufficientBelowMinSamples(t *testing.T) {
	s := Compute("memory_pressure_pct", []float64{0.1, 0.2, 0.3}, nil, time.Now())
	require.True(t, s.Insufficient)
	require.Equal(t, 3, s.SampleCount)
}

func TestComputeQuantilesAndDiurnal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := make([]float64, 1200)
	times := make([]time.Time, 1200)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range values {
		values[i] = 0.15 + 0.05*rng.Float64()
		times[i] = base.Add(time.Duration(i) * time.Minute)
	}
	s := Compute("memory_pressure_pct", values, times, time.Now())
	require.False(t, s.Insufficient)
	require.InDelta(t, 0.175, s.Mean, 0.03)
	require.NotNil(t, s.HourOfDay)
	require.True(t, s.P95 >= s.P50)
}

func TestComputeTrendRequiresGoodFit(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var linear []Point
	for i := 0; i < 30; i++ {
		linear = append(linear, Point{At: base.Add(time.Duration(i) * time.Minute), Value: 18 + float64(i)*0.8})
	}
	tr := ComputeTrend(linear)
	require.True(t, tr.Present)
	require.InDelta(t, 0.8, tr.SlopePerMinute, 0.05)

	var noisy []Point
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 30; i++ {
		noisy = append(noisy, Point{At: base.Add(time.Duration(i) * time.Minute), Value: rng.Float64() * 100})
	}
	tr2 := ComputeTrend(noisy)
	require.False(t, tr2.Present)
}

func TestEngineBaselineRoundTripsThroughStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "b.db"), kernsight.SystemClock{})
	require.NoError(t, err)
	require.NoError(t, st.Init(ctx))
	defer st.Close()

	b := &store.Batch{}
	base := int64(1_700_000_000)
	for i := 0; i < 1200; i++ {
		b.Add(events.MemInfo{Timestamp: base + int64(i)*60, TotalKB: 16_000_000, AvailableKB: 13_000_000})
	}
	require.NoError(t, st.CommitBatch(ctx, b))

	eng := New(st, kernsight.NewFixedClock(time.Unix(base+1200*60, 0)))
	stats, err := eng.Baseline(ctx, "memory_pressure_pct", "", DefaultLookback)
	require.NoError(t, err)
	require.False(t, stats.Insufficient)
	require.InDelta(t, 0.1875, stats.Mean, 0.001)

	got, err := eng.Get(ctx, "memory_pressure_pct", "", DefaultLookback)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, stats.SampleCount, got.SampleCount)
}

func TestFamilyStripsScope(t *testing.T) {
	require.Equal(t, "net_error_rate", Family("net_error_rate:eth0"))
	require.Equal(t, "tcp_time_wait", Family("tcp_time_wait"))
}

func TestBiggestChangeFindsLargestRecentDelta(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "c.db"), kernsight.SystemClock{})
	require.NoError(t, err)
	require.NoError(t, st.Init(ctx))
	defer st.Close()

	now := time.Unix(1_700_000_000, 0)
	b := &store.Batch{}
	// memory_pressure_pct barely moves; load1_per_cpu swings hard in the
	// last 30s — BiggestChange should pick load1_per_cpu.
	for i := 0; i < 40; i++ {
		ts := now.Add(-time.Duration(40-i) * time.Second)
		b.Add(events.MemInfo{Timestamp: ts.Unix(), TotalKB: 16_000_000, AvailableKB: 13_000_000 - int64(i)})
		b.Add(events.LoadAvg{Timestamp: ts.Unix(), Load1: 0.2 + float64(i)*0.3, Load5: 0.2, Load15: 0.2})
	}
	require.NoError(t, st.CommitBatch(ctx, b))

	eng := New(st, kernsight.NewFixedClock(now))
	family, delta, ok := eng.BiggestChange(ctx, 30*time.Second)
	require.True(t, ok)
	require.Equal(t, "load1_per_cpu", family)
	require.Greater(t, delta, 0.0)
}
