package classify

import (
	"sort"
	"strconv"
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const (
	pageFaultP95FloorMS  = 10.0
	pageFaultMajorRateFloor = 100.0
)

// ClassifyPageFaults implements the page fault classifier (§4.4 "Page
// fault"): per-process major fault latency p95 or rate, emitted as a
// swap_thrashing signal.
func ClassifyPageFaults(w *Window, baselines *Baselines, now time.Time) []Signal {
	byPID := map[int32][]pagefaultRow{}
	for _, r := range w.PageFaults {
		if r.major {
			byPID[r.pid] = append(byPID[r.pid], r)
		}
	}

	var out []Signal
	for pid, rows := range byPID {
		if len(rows) == 0 {
			continue
		}
		first, last := rows[0].at, rows[len(rows)-1].at
		dt := last.Sub(first).Seconds()
		if dt <= 0 {
			dt = 1
		}
		rate := float64(len(rows)) / dt

		latencies := make([]int64, len(rows))
		for i, r := range rows {
			latencies[i] = r.latencyNS
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		p95ns := latencies[percentileIndex(len(latencies), 0.95)]
		p95ms := float64(p95ns) / 1e6

		if p95ms <= pageFaultP95FloorMS && rate <= pageFaultMajorRateFloor {
			continue
		}

		pidStr := strconv.Itoa(int(pid))
		b := newSignal(now, kernsight.CategorySymptom, TypeSwapThrashing, pidStr, "major_page_fault", kernsight.SeverityHigh).
			summary("pid %d has a major fault p95 latency of %.1fms and a rate of %.0f/s over %.0fs", pid, p95ms, rate, dt).
			evidence("major_fault_p95_ms", Evidence{Current: p95ms}).
			evidence("major_fault_rate", Evidence{Current: rate}).
			source("raw_pagefault", rows[len(rows)-1].id).
			entity("process", pidStr, pidStr).
			pressure(clampPressure(rate / (pageFaultMajorRateFloor * 3))).
			patterns(PatternSwapCascade).
			hints("check RSS growth for this process", "check whether its working set exceeds available memory", "consider raising its oom_score_adj floor")
		out = append(out, b.build())
	}
	return out
}

func percentileIndex(n int, p float64) int {
	if n == 0 {
		return 0
	}
	idx := int(float64(n-1) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
