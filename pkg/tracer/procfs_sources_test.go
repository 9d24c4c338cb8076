package tracer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/events"
)

func writeProcFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// collectOnce calls a procfsSource's sample function exactly once,
// sidestepping the ticker/ctx timing Run otherwise depends on — the
// same single-shot read Run's ticker invokes on every tick.
func collectOnce(t *testing.T, src Source, _ time.Duration) []events.Event {
	t.Helper()
	ok, reason := src.Available()
	require.True(t, ok, "expected source available: %s", reason)

	ps, ok := src.(*procfsSource)
	require.True(t, ok, "collectOnce only supports procfsSource")
	return ps.sample(time.Now())
}

func TestMemInfoSourceParsesKeyFields(t *testing.T) {
	root := t.TempDir()
	writeProcFile(t, root, "meminfo", "MemTotal:       16384000 kB\nMemFree:         1024000 kB\nMemAvailable:    4096000 kB\nBuffers:          204800 kB\nCached:          3072000 kB\nSwapTotal:       2048000 kB\nSwapFree:        2048000 kB\nActive:          8192000 kB\nInactive:        4096000 kB\nDirty:              1024 kB\nWriteback:             0 kB\n")

	src := newMemInfoSource(root, 20*time.Millisecond)
	got := collectOnce(t, src, 60*time.Millisecond)
	require.NotEmpty(t, got)

	mi, ok := got[0].(events.MemInfo)
	require.True(t, ok)
	require.Equal(t, uint64(16384000), mi.TotalKB)
	require.Equal(t, uint64(1024000), mi.FreeKB)
	require.Equal(t, uint64(4096000), mi.AvailableKB)
	require.Equal(t, events.TypeMemInfo, mi.EventType())
}

func TestLoadAvgSourceParsesFiveFields(t *testing.T) {
	root := t.TempDir()
	writeProcFile(t, root, "loadavg", "1.25 0.80 0.50 3/512 98765\n")

	src := newLoadAvgSource(root, 20*time.Millisecond)
	got := collectOnce(t, src, 60*time.Millisecond)
	require.NotEmpty(t, got)

	la, ok := got[0].(events.LoadAvg)
	require.True(t, ok)
	require.InDelta(t, 1.25, la.Load1, 0.0001)
	require.InDelta(t, 0.80, la.Load5, 0.0001)
	require.InDelta(t, 0.50, la.Load15, 0.0001)
	require.Equal(t, int32(3), la.Running)
	require.Equal(t, int32(512), la.Total)
	require.Equal(t, int32(98765), la.LastPID)
}

func TestBlockStatsSourceSkipsPartitions(t *testing.T) {
	root := t.TempDir()
	writeProcFile(t, root, "diskstats",
		"   8       0 sda 100 5 2000 300 50 2 1000 100 0 150 150\n"+
			"   8       1 sda1 10 0 200 30 5 0 100 10 0 20 20\n"+
			" 259       0 nvme0n1 500 10 10000 800 200 5 8000 400 0 600 600\n"+
			" 259       1 nvme0n1p1 20 0 400 40 4 0 200 20 0 30 30\n")

	src := newBlockStatsSource(root, 20*time.Millisecond)
	got := collectOnce(t, src, 60*time.Millisecond)
	require.Len(t, got, 2)

	var devices []string
	for _, e := range got {
		bs := e.(events.BlockStats)
		devices = append(devices, bs.Device)
	}
	require.ElementsMatch(t, []string{"sda", "nvme0n1"}, devices)
}

func TestNetInterfaceSourceExcludesLoopback(t *testing.T) {
	root := t.TempDir()
	writeProcFile(t, root, "net/dev",
		"Inter-|   Receive                                                |  Transmit\n"+
			" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n"+
			"    lo: 1000       10    0    0    0     0          0         0     1000       10    0    0    0     0       0          0\n"+
			"  eth0: 50000     500    1    2    0     0          0         0    40000      400    0    1    0     0       0          0\n")

	src := newNetInterfaceSource(root, 20*time.Millisecond)
	got := collectOnce(t, src, 60*time.Millisecond)
	require.Len(t, got, 1)

	ni := got[0].(events.NetInterface)
	require.Equal(t, "eth0", ni.Interface)
	require.Equal(t, events.Counter(50000), ni.RxBytes)
	require.Equal(t, events.Counter(40000), ni.TxBytes)
}

func TestTCPStatsSourceCountsStatesAndRetransmits(t *testing.T) {
	root := t.TempDir()
	// sl local_address rem_address st ... uid ... inode
	writeProcFile(t, root, "net/tcp",
		"  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"+
			"   0: 0100007F:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 12345 1 0000000000000000 100 0 0 10 0\n"+
			"   1: 0100007F:1F91 0200007F:8001 01 00000000:00000000 00:00000000 00000000     0        0 12346 1 0000000000000000 100 0 0 10 0\n"+
			"   2: 0100007F:1F92 0200007F:8002 06 00000000:00000000 00:00000000 00000000     0        0 12347 1 0000000000000000 100 0 0 10 0\n")
	writeProcFile(t, root, "net/snmp",
		"Ip: Forwarding DefaultTTL\nIp: 2 64\n"+
			"Tcp: RtoAlgorithm RtoMin RtoMax MaxConn ActiveOpens PassiveOpens AttemptFails EstabResets CurrEstab InSegs OutSegs RetransSegs InErrs OutRsts\n"+
			"Tcp: 1 200 120000 -1 10 5 0 0 3 1000 900 42 0 2\n")

	src := newTCPStatsSource(root, 20*time.Millisecond)
	got := collectOnce(t, src, 60*time.Millisecond)
	require.Len(t, got, 2)

	ts, ok := got[0].(events.TCPStats)
	require.True(t, ok)
	require.Equal(t, int64(1), ts.Listen)
	require.Equal(t, int64(1), ts.Established)
	require.Equal(t, int64(1), ts.TimeWait)

	retrans, ok := got[1].(events.TCPRetransmits)
	require.True(t, ok)
	require.Equal(t, events.Counter(42), retrans.Count)
}

func TestIsWholeDiskFiltersPartitionsAndLoops(t *testing.T) {
	cases := map[string]bool{
		"sda": true, "sda1": false, "nvme0n1": true, "nvme0n1p1": false,
		"loop0": false, "dm-0": true, "vda": true,
	}
	for name, want := range cases {
		require.Equal(t, want, isWholeDisk(name), name)
	}
}

func TestProcfsSourceUnavailableWhenPrimaryMissing(t *testing.T) {
	root := t.TempDir()
	src := newMemInfoSource(filepath.Join(root, "does-not-exist"), time.Second)
	ok, reason := src.Available()
	require.False(t, ok)
	require.NotEmpty(t, reason)
}
