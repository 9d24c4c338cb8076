package classify

import (
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const (
	memoryPressureHardThreshold = 0.90
	memoryBaselineFactor        = 1.2
	swapThrashingMinSwapBytes   = 1 << 30        // 1 GiB
	swapThrashingMinDirtyBytes  = 500 << 20      // 500 MiB
)

// ClassifyMemory implements the memory pressure and companion
// swap_thrashing classifier (§4.4 "Memory pressure").
func ClassifyMemory(w *Window, baselines *Baselines, now time.Time) []Signal {
	if len(w.MemInfo) == 0 {
		return nil
	}
	latest := w.MemInfo[len(w.MemInfo)-1]
	if latest.totalKB == 0 {
		return nil
	}

	pressure := float64(latest.totalKB-latest.availableKB) / float64(latest.totalKB)
	st := baselines.Get("memory_pressure_pct", "")

	triggered := pressure >= memoryPressureHardThreshold
	var deviationPP float64
	if st != nil && !st.Insufficient {
		if pressure >= st.P95*memoryBaselineFactor {
			triggered = true
		}
		deviationPP = (pressure - st.P95) * 100
	}

	var out []Signal
	if triggered {
		sev := severityForDeviation(deviationPP)
		ev := zscoreEvidence(pressure, st)
		b := newSignal(now, kernsight.CategorySymptom, TypeMemoryPressure, "host", "memory_pressure_pct", sev).
			summary("memory pressure is %.1f%% of total (baseline p95 %.1f%%), %.1fpp above baseline", pressure*100, baselineP95Pct(st), deviationPP).
			evidence("memory_pressure_pct", ev).
			source("raw_meminfo", latest.id).
			entity("host", "localhost", "localhost").
			pressure(pressure)
		if deviationPP > 10 {
			b.patterns(PatternLinearGrowth)
		}
		b.hints("check top memory consumers (ps aux --sort=-rss)", "check for memory leaks in long-running processes", "review cgroup memory limits", "check swap activity")
		out = append(out, b.build())
	}

	swapUsedKB := latest.swapTotalKB - latest.swapFreeKB
	dirtyWritebackKB := latest.dirtyKB + latest.writebackKB
	if uint64(swapUsedKB)*1024 > swapThrashingMinSwapBytes && uint64(dirtyWritebackKB)*1024 > swapThrashingMinDirtyBytes {
		b := newSignal(now, kernsight.CategorySymptom, TypeSwapThrashing, "host", "swap_thrashing", kernsight.SeverityHigh).
			summary("swap usage is %d MiB with %d MiB dirty+writeback pages, exceeding the 1024 MiB / 500 MiB swap thrashing thresholds", swapUsedKB/1024, dirtyWritebackKB/1024).
			evidence("swap_used_kb", Evidence{Current: float64(swapUsedKB)}).
			evidence("dirty_writeback_kb", Evidence{Current: float64(dirtyWritebackKB)}).
			source("raw_meminfo", latest.id).
			entity("host", "localhost", "localhost").
			patterns(PatternSwapCascade).
			hints("check processes actively touching swapped pages", "review vm.swappiness", "check for a runaway working set")
		out = append(out, b.build())
	}

	return out
}

func severityForDeviation(pp float64) kernsight.Severity {
	switch {
	case pp <= 0:
		return kernsight.SeverityLow
	case pp <= 5:
		return kernsight.SeverityLow
	case pp <= 10:
		return kernsight.SeverityMedium
	case pp <= 15:
		return kernsight.SeverityHigh
	default:
		return kernsight.SeverityCritical
	}
}

func baselineP95Pct(st *Stats) float64 {
	if st == nil {
		return 0
	}
	return st.P95 * 100
}
