package baseline

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Trend is a (slope, r²) pair computed by least-squares over a window,
// normalized to metric-units per minute. Present is false when r² falls
// below MinTrendRSquared — callers must then treat the trend as absent
// (§4.5).
type Trend struct {
	SlopePerMinute float64
	RSquared       float64
	Present        bool
}

// Point is one (timestamp, value) sample fed to ComputeTrend.
type Point struct {
	At    time.Time
	Value float64
}

// ComputeTrend fits a least-squares line to points (which need not be
// evenly spaced) and reports the slope normalized to units/minute. Fewer
// than 3 points never produces a trend.
func ComputeTrend(points []Point) Trend {
	if len(points) < 3 {
		return Trend{}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	t0 := points[0].At
	for i, p := range points {
		xs[i] = p.At.Sub(t0).Minutes()
		ys[i] = p.Value
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)

	t := Trend{SlopePerMinute: beta, RSquared: r2}
	t.Present = r2 >= MinTrendRSquared
	return t
}
