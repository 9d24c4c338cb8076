package classify

import (
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const loadMismatchOverage = 0.25

// ClassifyLoad implements the load mismatch classifier (§4.4 "Load
// mismatch"): triggers when load_1min/cpu_count exceeds 1.0 by more than
// 25%, severity scaling with multiples of cpu_count.
func ClassifyLoad(w *Window, baselines *Baselines, now time.Time, cpuCount int) []Signal {
	if len(w.LoadAvg) == 0 || cpuCount <= 0 {
		return nil
	}
	latest := w.LoadAvg[len(w.LoadAvg)-1]
	perCPU := latest.load1 / float64(cpuCount)
	if perCPU <= 1.0*(1+loadMismatchOverage) {
		return nil
	}

	st := baselines.Get("load1_per_cpu", "")
	sev := severityForLoadMultiple(perCPU)

	b := newSignal(now, kernsight.CategorySymptom, TypeLoadMismatch, "host", "load1_per_cpu", sev).
		summary("1-minute load average is %.2f across %d CPUs (%.2f per CPU), exceeding the 1.0 per-CPU threshold by %.0f%%", latest.load1, cpuCount, perCPU, (perCPU-1.0)*100).
		evidence("load1_per_cpu", zscoreEvidence(perCPU, st)).
		source("raw_loadavg", latest.id).
		entity("host", "localhost", "localhost").
		pressure(clampPressure(perCPU / 4.0)).
		hints("check runnable queue depth with vmstat", "identify CPU-bound processes with top", "check for processes stuck in uninterruptible sleep")

	out := []Signal{b.build()}
	return out
}

func severityForLoadMultiple(perCPU float64) kernsight.Severity {
	switch {
	case perCPU < 2:
		return kernsight.SeverityLow
	case perCPU < 4:
		return kernsight.SeverityMedium
	case perCPU < 8:
		return kernsight.SeverityHigh
	default:
		return kernsight.SeverityCritical
	}
}

func clampPressure(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
