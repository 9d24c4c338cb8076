package loop

import "github.com/kernelsight/kernelsight/pkg/classify"

// BaselineFamilyFor maps a signal_type to the pkg/baseline metric
// family EXPLAIN/SIMULATE query against, and whether that family is
// scoped per-entity (device, interface) rather than host-wide. Not
// every signal_type pkg/classify produces has a tracked baseline family
// — swap_thrashing is judged purely against pkg/classify's absolute
// thresholds (§4.5 "classifiers must fall back to absolute thresholds"
// when a baseline is unavailable), so it returns ok=false and the loop
// skips the baseline/trend lookup for it entirely.
func BaselineFamilyFor(signalType string) (family string, scoped bool, ok bool) {
	switch signalType {
	case classify.TypeMemoryPressure:
		return "memory_pressure_pct", false, true
	case classify.TypeLoadMismatch:
		return "load1_per_cpu", false, true
	case classify.TypeIOCongestion:
		return "io_read_p95_us", false, true
	case classify.TypeTCPExhaustion:
		return "tcp_time_wait", false, true
	case classify.TypeNetworkDegradation:
		return "tcp_syn_recv", false, true
	case classify.TypeBlockDeviceSaturation:
		return "block_util", true, true
	default:
		return "", false, false
	}
}
