package reason

import "github.com/kernelsight/kernelsight/pkg/simulate"

// projectionToMap renders a simulator Projection into the loosely-typed
// predicted_outcome map the Decision schema carries (§4.9 step 4); nil
// when no projection ran (e.g. no trend, simulate.ErrNoTrend).
func projectionToMap(p *simulate.Projection) map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{
		"current":   p.Current,
		"projected": p.Projected,
		"delta":     p.Delta,
		"risk":      p.Risk,
	}
	if p.Crosses != nil {
		out["crosses_threshold"] = p.Crosses.Threshold
		out["eta_seconds"] = p.Crosses.ETASeconds
	}
	return out
}
