package loop

import (
	"github.com/kernelsight/kernelsight/pkg/classify"
)

// evidenceKeyFor names which evidence entry a signal_type's SIMULATE
// phase tracks, for the signal types pkg/classify records more than
// one evidence entry on. swap_thrashing records both swap_used_kb and
// dirty_writeback_kb; DefaultThresholds' escalation schedule tracks
// swap_used_kb, matching swapThrashingMinSwapBytes in pkg/classify. An
// empty return means "take whichever single entry is present" — true
// for every other signal type pkg/classify currently produces.
func evidenceKeyFor(signalType string) string {
	switch signalType {
	case classify.TypeSwapThrashing:
		return "swap_used_kb"
	case classify.TypeTCPExhaustion:
		return "time_wait"
	case classify.TypeIOCongestion:
		return "queue_utilization"
	default:
		return ""
	}
}

// currentValue reads the live metric reading a classifier attached to
// a signal's evidence, in that classifier's native unit — the value
// DefaultThresholds' bands are scaled against. The evidence map is
// built by pkg/classify's builder as map[string]classify.Evidence, but
// after a round trip through store.Signal's JSON-encoded context
// column it comes back as map[string]any with a plain float64 "current"
// field, so both shapes are handled.
func currentValue(ctx map[string]any, signalType string) (float64, bool) {
	raw, ok := ctx["evidence"]
	if !ok {
		return 0, false
	}

	key := evidenceKeyFor(signalType)

	switch ev := raw.(type) {
	case map[string]classify.Evidence:
		if key != "" {
			e, ok := ev[key]
			return e.Current, ok
		}
		for _, e := range ev {
			return e.Current, true
		}
	case map[string]any:
		if key != "" {
			return currentFromAny(ev[key])
		}
		for _, v := range ev {
			if c, ok := currentFromAny(v); ok {
				return c, true
			}
		}
	}
	return 0, false
}

func currentFromAny(v any) (float64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	c, ok := m["current"].(float64)
	return c, ok
}
