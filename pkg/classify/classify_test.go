package classify

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(i int) time.Time { return time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC) }

func TestClassifyMemoryTriggersOnHardThreshold(t *testing.T) {
	w := &Window{MemInfo: []memRow{{id: 1, at: ts(0), totalKB: 1_000_000, availableKB: 50_000}}}
	sigs := ClassifyMemory(w, NewBaselines(), ts(0))
	require.NotEmpty(t, sigs)
	require.Equal(t, TypeMemoryPressure, sigs[0].SignalType)
	require.Regexp(t, regexp.MustCompile(`memory pressure is \d+\.\d%`), sigs[0].Summary)
}

func TestClassifyMemoryEmitsSwapThrashingCompanion(t *testing.T) {
	w := &Window{MemInfo: []memRow{{
		id: 1, at: ts(0), totalKB: 16_000_000, availableKB: 13_000_000,
		swapTotalKB: 2_000_000, swapFreeKB: 400_000, // ~1.5GiB used
		dirtyKB: 400_000, writebackKB: 200_000, // ~586MiB combined
	}}}
	sigs := ClassifyMemory(w, NewBaselines(), ts(0))
	var sawSwap bool
	for _, s := range sigs {
		if s.SignalType == TypeSwapThrashing {
			sawSwap = true
			require.Contains(t, s.Patterns, PatternSwapCascade)
		}
	}
	require.True(t, sawSwap)
}

func TestClassifyMemoryBelowThresholdIsQuiet(t *testing.T) {
	w := &Window{MemInfo: []memRow{{id: 1, at: ts(0), totalKB: 1_000_000, availableKB: 800_000}}}
	sigs := ClassifyMemory(w, NewBaselines(), ts(0))
	require.Empty(t, sigs)
}

func TestClassifyLoadMismatchScalesSeverity(t *testing.T) {
	w := &Window{LoadAvg: []loadRow{{id: 1, at: ts(0), load1: 40}}}
	sigs := ClassifyLoad(w, NewBaselines(), ts(0), 4)
	require.Len(t, sigs, 1)
	require.Equal(t, sevCritical, sigs[0].Severity)
}

func TestClassifyLoadBelowThresholdIsQuiet(t *testing.T) {
	w := &Window{LoadAvg: []loadRow{{id: 1, at: ts(0), load1: 2}}}
	sigs := ClassifyLoad(w, NewBaselines(), ts(0), 4)
	require.Empty(t, sigs)
}

func TestClassifyBlockDeviceSaturationFromUtilization(t *testing.T) {
	w := &Window{BlockStats: []blockRow{
		{id: 1, at: ts(0), device: "sda", readIOs: 100, writeIOs: 100, ioTicksMS: 0},
		{id: 2, at: ts(1), device: "sda", readIOs: 500, writeIOs: 500, ioTicksMS: 950},
	}}
	sigs := ClassifyBlockDevice(w, NewBaselines(), ts(1))
	require.Len(t, sigs, 1)
	require.Equal(t, "sda", sigs[0].Scope)
	require.Contains(t, sigs[0].Patterns, PatternBlockStarvation)
}

func TestClassifyIOLatencyAboveBaselineFactor(t *testing.T) {
	b := NewBaselines()
	b.Put("io_read_p95_us", "", &Stats{Mean: 100, Std: 20, P95: 150, SampleCount: 2000})
	b.Put("io_write_p95_us", "", &Stats{Mean: 100, Std: 20, P95: 150, SampleCount: 2000})
	w := &Window{IO: []ioRow{{id: 1, at: ts(0), readP95US: 2000, writeP95US: 100}}}
	sigs := ClassifyIO(w, b, ts(0))
	require.NotEmpty(t, sigs)
	require.Equal(t, TypeIOCongestion, sigs[0].SignalType)
}

func TestClassifyIOQueueDepthFromBlockstats(t *testing.T) {
	w := &Window{BlockStats: []blockRow{
		{id: 1, at: ts(0), device: "sda", ioTicksMS: 0, inFlight: 10},
		{id: 2, at: ts(1), device: "sda", ioTicksMS: 900, inFlight: 12},
	}}
	sigs := ClassifyIO(w, NewBaselines(), ts(1))
	require.NotEmpty(t, sigs)
	require.Equal(t, "sda", sigs[len(sigs)-1].Scope)
}

func TestClassifyNetworkDegradationAboveBaseline(t *testing.T) {
	b := NewBaselines()
	b.Put("net_error_rate", "eth0", &Stats{Mean: 0.1, Std: 0.05, P95: 0.2, SampleCount: 2000})
	w := &Window{NetIface: []netRow{
		{id: 1, at: ts(0), iface: "eth0", rxErrors: 0, txErrors: 0},
		{id: 2, at: ts(1), iface: "eth0", rxErrors: 5, txErrors: 0},
	}}
	sigs := ClassifyNetwork(w, b, ts(1))
	require.Len(t, sigs, 1)
	require.Equal(t, "eth0", sigs[0].Scope)
}

// TestClassifyTCPSynFlood implements scenario S5 of the end-to-end test
// suite: a single tcp_stats snapshot with syn_recv=8500, established=120
// must produce a network_degradation signal tagged syn_flood_suspect with
// a rate-limiting hint.
func TestClassifyTCPSynFlood(t *testing.T) {
	w := &Window{TCPStats: []tcpRow{{id: 1, at: ts(0), established: 120, synRecv: 8500, timeWait: 200}}}
	sigs := ClassifyTCP(w, NewBaselines(), ts(0))
	require.NotEmpty(t, sigs)

	var synFlood *Signal
	for i := range sigs {
		if sigs[i].SignalType == TypeNetworkDegradation {
			synFlood = &sigs[i]
		}
	}
	require.NotNil(t, synFlood)
	require.Contains(t, synFlood.Patterns, PatternSynFloodSuspect)

	var sawRateLimitHint bool
	for _, h := range synFlood.ReasoningHints {
		if regexp.MustCompile(`rate limiting`).MatchString(h) {
			sawRateLimitHint = true
		}
	}
	require.True(t, sawRateLimitHint)
}

func TestClassifyTCPTimeWaitExhaustion(t *testing.T) {
	w := &Window{TCPStats: []tcpRow{{id: 1, at: ts(0), established: 100, synRecv: 5, timeWait: 15000}}}
	sigs := ClassifyTCP(w, NewBaselines(), ts(0))
	require.Len(t, sigs, 1)
	require.Equal(t, TypeTCPExhaustion, sigs[0].SignalType)
}

// TestClassifySchedulerForkBomb feeds 1s of sched aggregates with
// 15,000 context_switches/s and involuntary fraction 0.87 for pid 4242
// (comm "stress"). That rate clears the high threshold but sits below
// the critical one, so the classifier reports "high", not "critical" —
// see the sched-thrashing threshold note in DESIGN.md's Open Questions.
func TestClassifySchedulerForkBomb(t *testing.T) {
	w := &Window{Sched: []schedRow{
		{id: 1, at: ts(0), pid: 4242, comm: "stress", contextSwitches: 0, involuntary: 0, wakeups: 0},
		{id: 2, at: ts(1), pid: 4242, comm: "stress", contextSwitches: 15000, involuntary: 13050, wakeups: 15000},
	}}
	sigs := ClassifyScheduler(w, NewBaselines(), ts(1))
	require.NotEmpty(t, sigs)

	var thrash *Signal
	for i := range sigs {
		if sigs[i].SemanticLabel == "context_switch_rate" {
			thrash = &sigs[i]
		}
	}
	require.NotNil(t, thrash)
	require.Equal(t, sevHigh, thrash.Severity)
	require.Equal(t, `Scheduling thrash: stress switching 15000 times/sec (87% involuntary)`, thrash.Summary)
}

func TestClassifySchedulerFlagsForkBombWhenManyProcessesThrash(t *testing.T) {
	var rows []schedRow
	for pid := int32(1); pid <= 3; pid++ {
		rows = append(rows,
			schedRow{id: int64(pid)*2 - 1, at: ts(0), pid: pid, comm: "child", contextSwitches: 0, involuntary: 0, wakeups: 0},
			schedRow{id: int64(pid) * 2, at: ts(1), pid: pid, comm: "child", contextSwitches: 50000, involuntary: 49000, wakeups: 50000},
		)
	}
	sigs := ClassifyScheduler(&Window{Sched: rows}, NewBaselines(), ts(1))

	var sawForkBomb bool
	for _, s := range sigs {
		if s.SemanticLabel == "fork_bomb_suspect" {
			sawForkBomb = true
			require.Contains(t, s.Patterns, PatternForkBombSuspect)
		}
	}
	require.True(t, sawForkBomb)
}

func TestClassifySyscallsBlockingIO(t *testing.T) {
	w := &Window{Syscalls: []syscallRow{
		{id: 1, at: ts(0), comm: "worker", syscallName: "read", latencyNS: 150_000_000},
	}}
	sigs := ClassifySyscalls(w, NewBaselines(), ts(0))
	require.Len(t, sigs, 1)
	require.Equal(t, "blocking_io", sigs[0].SemanticLabel)
}

func TestClassifySyscallsLockContention(t *testing.T) {
	w := &Window{Syscalls: []syscallRow{
		{id: 1, at: ts(0), comm: "worker", syscallName: "futex", latencyNS: 120_000_000},
	}}
	sigs := ClassifySyscalls(w, NewBaselines(), ts(0))
	require.Len(t, sigs, 1)
	require.Equal(t, "lock_contention", sigs[0].SemanticLabel)
}

func TestClassifySyscallsFileSystemRequiresHighErrorRate(t *testing.T) {
	highErrRows := []syscallRow{
		{id: 1, at: ts(0), comm: "worker", syscallName: "openat", latencyNS: 110_000_000, isError: true},
		{id: 2, at: ts(0), comm: "worker", syscallName: "openat", latencyNS: 110_000_000, isError: false},
		{id: 3, at: ts(0), comm: "worker", syscallName: "openat", latencyNS: 110_000_000, isError: false},
	}
	sigs := ClassifySyscalls(&Window{Syscalls: highErrRows}, NewBaselines(), ts(0))
	require.Len(t, sigs, 1)
	require.Equal(t, "file_system", sigs[0].SemanticLabel) // 33% error rate > 20% floor

	lowErrRows := make([]syscallRow, 10)
	for i := range lowErrRows {
		lowErrRows[i] = syscallRow{id: int64(i), at: ts(0), comm: "worker", syscallName: "openat", latencyNS: 110_000_000, isError: i == 0}
	}
	sigs = ClassifySyscalls(&Window{Syscalls: lowErrRows}, NewBaselines(), ts(0))
	require.Len(t, sigs, 1)
	require.Equal(t, "blocking_io", sigs[0].SemanticLabel) // 10% error rate, below the file_system floor
}

func TestClassifyPageFaultsMajorLatency(t *testing.T) {
	w := &Window{PageFaults: []pagefaultRow{
		{id: 1, at: ts(0), pid: 77, latencyNS: 15_000_000, major: true},
		{id: 2, at: ts(1), pid: 77, latencyNS: 16_000_000, major: true},
	}}
	sigs := ClassifyPageFaults(w, NewBaselines(), ts(1))
	require.Len(t, sigs, 1)
	require.Equal(t, TypeSwapThrashing, sigs[0].SignalType)
}

const (
	sevHigh     = "high"
	sevCritical = "critical"
)
