package simulate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/baseline"
)

func TestProjectNoTrendNoSlopeRefuses(t *testing.T) {
	_, err := Project(Input{SignalType: "memory_pressure", Current: 0.3, Horizon: 30 * time.Minute})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoTrend))
}

func TestProjectCrossesTwoBands(t *testing.T) {
	in := Input{
		SignalType: "memory_pressure",
		Current:    0.30,
		Trend:      baseline.Trend{Present: true, SlopePerMinute: 0.01, RSquared: 0.95},
		Horizon:    30 * time.Minute,
		Thresholds: []Band{{Value: 0.40, Risk: "high"}, {Value: 0.60, Risk: "critical"}},
	}
	p, err := Project(in)
	require.NoError(t, err)
	require.InDelta(t, 0.60, p.Projected, 0.001)
	require.NotNil(t, p.Crosses)
	require.InDelta(t, 0.40, p.Crosses.Threshold, 0.001)
	require.Equal(t, "high", p.Risk)
}

func TestProjectCrossesNoBandsIsLowRisk(t *testing.T) {
	in := Input{
		Current:    0.30,
		Trend:      baseline.Trend{Present: true, SlopePerMinute: 0.001, RSquared: 0.9},
		Horizon:    time.Minute,
		Thresholds: []Band{{Value: 0.9, Risk: "critical"}},
	}
	p, err := Project(in)
	require.NoError(t, err)
	require.Equal(t, "low", p.Risk)
	require.Nil(t, p.Crosses)
}

func TestProjectUsesOperatorSlopeWhenTrendAbsent(t *testing.T) {
	slope := 0.02
	in := Input{
		Current:       0.10,
		Trend:         baseline.Trend{Present: false},
		OperatorSlope: &slope,
		Horizon:       10 * time.Minute,
		Thresholds:    []Band{{Value: 0.25, Risk: "high"}},
	}
	p, err := Project(in)
	require.NoError(t, err)
	require.InDelta(t, 0.30, p.Projected, 0.001)
	require.NotNil(t, p.Crosses)
}
