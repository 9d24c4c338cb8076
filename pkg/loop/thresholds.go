package loop

import (
	"github.com/kernelsight/kernelsight/pkg/classify"
	"github.com/kernelsight/kernelsight/pkg/simulate"
)

// DefaultThresholds returns the escalation schedule C6 projects a
// signal_type's metric against, mirroring the absolute thresholds the
// corresponding classifier in pkg/classify already triggers on — the
// simulator and the classifier must agree on what "critical" means for
// the same metric. Values are in the same native unit as the evidence
// entry evidenceKeyFor selects for that signal_type (fraction, raw
// per-core ratio, KB, or count) — never the 0..1 PressureScore, which
// pkg/classify does not populate uniformly (swap_thrashing signals
// never call pressure() at all).
func DefaultThresholds(signalType string) []simulate.Band {
	switch signalType {
	case classify.TypeMemoryPressure:
		// memory_pressure_pct, a 0..1 fraction of total RAM in use.
		return []simulate.Band{{Value: 0.80, Risk: "medium"}, {Value: 0.85, Risk: "high"}, {Value: 0.90, Risk: "critical"}}
	case classify.TypeLoadMismatch:
		// load1_per_cpu, the raw per-core load average ratio.
		return []simulate.Band{{Value: 1.25, Risk: "medium"}, {Value: 2.0, Risk: "high"}, {Value: 4.0, Risk: "critical"}}
	case classify.TypeSwapThrashing:
		// swap_used_kb, matching swapThrashingMinSwapBytes (1 GiB) in KB.
		return []simulate.Band{{Value: 1 << 20, Risk: "high"}}
	case classify.TypeTCPExhaustion:
		// time_wait, a raw connection count, matching tcpTimeWaitFloor.
		return []simulate.Band{{Value: 10000, Risk: "high"}}
	case classify.TypeBlockDeviceSaturation:
		// utilization, a 0..1 fraction of the sampling window busy.
		return []simulate.Band{{Value: 0.8, Risk: "high"}, {Value: 0.95, Risk: "critical"}}
	case classify.TypeIOCongestion:
		// queue_utilization, a 0..1 fraction, for the per-device variant.
		// The host-wide read/write p95 latency variant has no absolute
		// band (it triggers purely on a baseline-relative multiplier) and
		// is left unprojected — SIMULATE reports no crossing for it.
		return []simulate.Band{{Value: 0.8, Risk: "high"}, {Value: 0.95, Risk: "critical"}}
	default:
		return nil
	}
}
