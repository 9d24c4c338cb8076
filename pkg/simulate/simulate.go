// Package simulate implements the counterfactual projection: linear
// extrapolation of a metric against a threshold schedule.
package simulate

import (
	"errors"
	"math"
	"time"

	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// ErrNoTrend is returned when the trend is absent and the caller did not
// supply an operator slope — the simulator refuses to guess.
var ErrNoTrend = errors.New("no_trend")

// Band is one threshold in a metric's escalation schedule, in ascending
// Value order.
type Band struct {
	Value float64
	Risk  string // low, medium, high, critical
}

// Input is everything Project needs for one signal_type's projection.
type Input struct {
	SignalType    string
	Current       float64
	Trend         baseline.Trend // from the baseline engine; may be absent
	OperatorSlope *float64       // metric-units/minute override
	Horizon       time.Duration
	Thresholds    []Band // ascending by Value
}

// Crossing describes the first threshold band the projection reaches.
type Crossing struct {
	Threshold float64
	ETASeconds float64
}

// Projection is the counterfactual result: the current and projected
// metric value, the delta between them, the first threshold band
// crossed (if any), and the resulting risk band.
type Projection struct {
	Current   float64
	Projected float64
	Delta     float64
	Crosses   *Crossing
	Risk      string
}

// Project extrapolates Current forward by Horizon using the trend's
// slope (or OperatorSlope if the trend is absent), then reports how many
// threshold bands that extrapolation crosses.
func Project(in Input) (Projection, error) {
	var slopePerMinute float64
	switch {
	case in.Trend.Present:
		slopePerMinute = in.Trend.SlopePerMinute
	case in.OperatorSlope != nil:
		slopePerMinute = *in.OperatorSlope
	default:
		return Projection{}, kernsight.ValidationFailure("simulate.Project", ErrNoTrend)
	}

	horizonMinutes := in.Horizon.Minutes()
	projected := in.Current + slopePerMinute*horizonMinutes
	delta := projected - in.Current

	p := Projection{Current: in.Current, Projected: projected, Delta: delta}

	crossedCount := 0
	for _, band := range in.Thresholds {
		crossed := (in.Current < band.Value && projected >= band.Value) ||
			(in.Current > band.Value && projected <= band.Value)
		if !crossed {
			continue
		}
		crossedCount++
		if p.Crosses == nil {
			eta := etaSeconds(in.Current, band.Value, slopePerMinute)
			p.Crosses = &Crossing{Threshold: band.Value, ETASeconds: eta}
		}
	}

	p.Risk = riskForCrossings(crossedCount)
	return p, nil
}

// etaSeconds returns the time, in seconds, until current reaches
// threshold at the given per-minute slope. Returns +Inf if the slope
// never reaches it.
func etaSeconds(current, threshold, slopePerMinute float64) float64 {
	if slopePerMinute == 0 {
		return math.Inf(1)
	}
	minutes := (threshold - current) / slopePerMinute
	if minutes < 0 {
		return math.Inf(1)
	}
	return minutes * 60
}

func riskForCrossings(n int) string {
	switch {
	case n <= 0:
		return "low"
	case n == 1:
		return "medium"
	case n == 2:
		return "high"
	default:
		return "critical"
	}
}
