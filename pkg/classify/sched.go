package classify

import (
	"strconv"
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const (
	schedHighSwitchesPerSec     = 10000
	schedCriticalSwitchesPerSec = 40000
	schedInvoluntaryFraction    = 0.8
	schedStarvationRatio        = 5.0
)

// ClassifyScheduler implements the scheduler thrashing classifier, per
// (pid, comm) context-switch rate and involuntary fraction, plus the
// runnable-proxy starvation signal.
func ClassifyScheduler(w *Window, baselines *Baselines, now time.Time) []Signal {
	byPID := map[int32][]schedRow{}
	for _, r := range w.Sched {
		byPID[r.pid] = append(byPID[r.pid], r)
	}

	var out []Signal
	forkBombCandidates := 0

	for pid, rows := range byPID {
		if len(rows) < 2 {
			continue
		}
		first, last := rows[0], rows[len(rows)-1]
		dt := last.at.Sub(first.at).Seconds()
		if dt <= 0 || last.contextSwitches < first.contextSwitches {
			continue
		}
		switches := last.contextSwitches - first.contextSwitches
		switchesPerSec := float64(switches) / dt

		var involuntaryFrac float64
		if switches > 0 && last.involuntary >= first.involuntary {
			involuntaryFrac = float64(last.involuntary-first.involuntary) / float64(switches)
		}

		if switchesPerSec > schedHighSwitchesPerSec && involuntaryFrac > schedInvoluntaryFraction {
			sev := kernsight.SeverityHigh
			if switchesPerSec > schedCriticalSwitchesPerSec {
				sev = kernsight.SeverityCritical
				forkBombCandidates++
			}
			b := newSignal(now, kernsight.CategorySymptom, TypeScheduler, last.comm, "context_switch_rate", sev).
				summary("Scheduling thrash: %s switching %.0f times/sec (%.0f%% involuntary)", last.comm, switchesPerSec, involuntaryFrac*100).
				evidence("context_switches_per_sec", Evidence{Current: switchesPerSec}).
				evidence("involuntary_fraction", Evidence{Current: involuntaryFrac}).
				source("raw_sched", last.id).
				entity("process", strconv.Itoa(int(pid)), last.comm).
				pressure(clampPressure(switchesPerSec / schedCriticalSwitchesPerSec)).
				patterns(PatternThunderingHerd).
				hints("check process tree for runaway forking", "check cgroup cpu.pressure", "check for a lock convoy in this process")
			out = append(out, b.build())
		}

		wakeups := last.wakeups - first.wakeups
		if wakeups > 0 && float64(wakeups-switches) > schedStarvationRatio*float64(wakeups) {
			b := newSignal(now, kernsight.CategorySymptom, TypeScheduler, last.comm, "runnable_starvation", kernsight.SeverityHigh).
				summary("pid %d (%s) has %d wakeups against %d context switches over %.0fs, a starvation ratio above %gx", pid, last.comm, wakeups, switches, dt, schedStarvationRatio).
				evidence("wakeups", Evidence{Current: float64(wakeups)}).
				evidence("context_switches", Evidence{Current: float64(switches)}).
				source("raw_sched", last.id).
				entity("process", strconv.Itoa(int(pid)), last.comm).
				pressure(0.7).
				hints("check CPU cgroup quota for this process", "check for CPU starvation from higher-priority neighbors").
				build()
			out = append(out, b)
		}
	}

	if forkBombCandidates >= 3 {
		b := newSignal(now, kernsight.CategorySymptom, TypeScheduler, "host", "fork_bomb_suspect", kernsight.SeverityCritical).
			summary("%d processes are context-switching above the critical %.0f/s threshold concurrently, consistent with a fork bomb", forkBombCandidates, schedCriticalSwitchesPerSec).
			evidence("affected_process_count", Evidence{Current: float64(forkBombCandidates)}).
			entity("host", "localhost", "localhost").
			pressure(1.0).
			patterns(PatternForkBombSuspect).
			hints("check process count against pids cgroup limit", "identify the common parent pid", "consider pausing new process creation for the offending cgroup")
		out = append(out, b.build())
	}

	return out
}
