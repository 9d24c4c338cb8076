package classify

import (
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const syscallLatencyFloorNS = 100 * 1_000_000 // 100ms

var lockSyscalls = map[string]bool{"futex": true, "flock": true, "semop": true}
var fsSyscalls = map[string]bool{"openat": true, "stat": true, "unlink": true}
var netSyscalls = map[string]bool{"connect": true, "accept": true, "send": true, "recv": true}

type syscallGroup struct {
	comm, name string
	maxLatency int64
	count      int
	errors     int
}

// ClassifySyscalls implements the syscall-level observation classifier
// (§4.4 "Syscall-level observations"): grouped by (comm, syscall_name)
// over the window, emitting blocking_io / lock_contention / file_system /
// network_socket signals per the latency and error-rate rules.
func ClassifySyscalls(w *Window, baselines *Baselines, now time.Time) []Signal {
	groups := map[string]*syscallGroup{}
	for _, r := range w.Syscalls {
		key := r.comm + "\x00" + r.syscallName
		g, ok := groups[key]
		if !ok {
			g = &syscallGroup{comm: r.comm, name: r.syscallName}
			groups[key] = g
		}
		g.count++
		if r.isError {
			g.errors++
		}
		if r.latencyNS > g.maxLatency {
			g.maxLatency = r.latencyNS
		}
	}

	var out []Signal
	for _, g := range groups {
		if g.maxLatency < syscallLatencyFloorNS && g.count == 0 {
			continue
		}

		errorRate := 0.0
		if g.count > 0 {
			errorRate = float64(g.errors) / float64(g.count)
		}

		semantic, sigType := "", ""
		switch {
		case lockSyscalls[g.name]:
			semantic, sigType = "lock_contention", TypeSyscall
		case fsSyscalls[g.name] && errorRate > 0.2:
			semantic, sigType = "file_system", TypeSyscall
		case netSyscalls[g.name]:
			semantic, sigType = "network_socket", TypeSyscall
		default:
			semantic, sigType = "blocking_io", TypeSyscall
		}

		if g.maxLatency < syscallLatencyFloorNS {
			continue
		}

		sev := severityForSyscallLatency(g.maxLatency)
		b := newSignal(now, kernsight.CategorySymptom, sigType, g.comm+":"+g.name, semantic, sev).
			summary("%s(%s) observed a %.0fms max latency across %d calls (%.0f%% errors) in the last second", g.name, g.comm, float64(g.maxLatency)/1e6, g.count, errorRate*100).
			evidence("max_latency_ms", Evidence{Current: float64(g.maxLatency) / 1e6}).
			evidence("error_rate", Evidence{Current: errorRate}).
			entity("syscall", g.comm+":"+g.name, g.comm).
			pressure(clampPressure(float64(g.maxLatency) / float64(500*1_000_000))).
			hints("check for blocked IO on the backing filesystem", "check strace -T for this process", "check for contended locks between threads")
		out = append(out, b.build())
	}
	return out
}

func severityForSyscallLatency(ns int64) kernsight.Severity {
	ms := float64(ns) / 1e6
	switch {
	case ms >= 500:
		return kernsight.SeverityCritical
	case ms >= 100:
		return kernsight.SeverityHigh
	case ms >= 50:
		return kernsight.SeverityMedium
	default:
		return kernsight.SeverityLow
	}
}
