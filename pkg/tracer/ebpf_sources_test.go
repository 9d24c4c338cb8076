//go:build linux

package tracer

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/events"
)

func encodeSyscallRecord(t *testing.T, r syscallRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &r))
	return buf.Bytes()
}

func TestDecodeSyscallResolvesKnownName(t *testing.T) {
	var r syscallRecord
	r.Timestamp = 42
	r.PID = 100
	r.SyscallNr = 202 // futex
	r.LatencyNS = 15_000_000
	r.RetVal = 0
	copy(r.Comm[:], "myproc")

	ev, err := decodeSyscall(encodeSyscallRecord(t, r))
	require.NoError(t, err)
	sc := ev.(events.Syscall)
	require.Equal(t, "futex", sc.SyscallName)
	require.Equal(t, "myproc", sc.Comm)
	require.False(t, sc.IsError)
}

func TestDecodeSyscallUnknownNumberFallsBack(t *testing.T) {
	var r syscallRecord
	r.SyscallNr = 9999
	r.RetVal = -1

	ev, err := decodeSyscall(encodeSyscallRecord(t, r))
	require.NoError(t, err)
	sc := ev.(events.Syscall)
	require.Equal(t, "sys_9999", sc.SyscallName)
	require.True(t, sc.IsError)
}

func TestDecodePageFaultDecodesFlags(t *testing.T) {
	var r pageFaultRecord
	r.Flags = pfFlagMajor | pfFlagWrite
	copy(r.Comm[:], "worker")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &r))

	ev, err := decodePageFault(buf.Bytes())
	require.NoError(t, err)
	pf := ev.(events.PageFault)
	require.True(t, pf.Major)
	require.True(t, pf.Write)
	require.False(t, pf.KernelMode)
	require.Equal(t, "worker", pf.Comm)
}

func TestAggregateSchedFoldsByPID(t *testing.T) {
	encode := func(r schedRecord) []byte {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &r))
		return buf.Bytes()
	}

	var r1, r2, r3 schedRecord
	r1.PID, r2.PID, r3.PID = 10, 10, 20
	r1.Voluntary, r2.Voluntary = 1, 0
	copy(r1.Comm[:], "a")
	copy(r3.Comm[:], "b")

	out := aggregateSched(time.Unix(100, 0), [][]byte{encode(r1), encode(r2), encode(r3)})
	require.Len(t, out, 2)

	byPID := map[int32]events.Sched{}
	for _, e := range out {
		s := e.(events.Sched)
		byPID[s.PID] = s
	}
	require.Equal(t, events.Counter(2), byPID[10].ContextSwitches)
	require.Equal(t, events.Counter(1), byPID[10].VoluntarySwitches)
	require.Equal(t, events.Counter(1), byPID[10].InvoluntarySwitches)
	require.Equal(t, events.Counter(1), byPID[20].ContextSwitches)
}

func TestAggregateIOSplitsReadWriteAndComputesLatency(t *testing.T) {
	encode := func(r ioRecord) []byte {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &r))
		return buf.Bytes()
	}

	var reads []ioRecord
	for _, lat := range []int64{1000, 2000, 3000, 4000, 5000} {
		reads = append(reads, ioRecord{LatencyNS: lat * 1000, Bytes: 4096})
	}
	write := ioRecord{LatencyNS: 9_000_000, Bytes: 8192, Write: 1}

	var raws [][]byte
	for _, r := range reads {
		raws = append(raws, encode(r))
	}
	raws = append(raws, encode(write))

	out := aggregateIO(time.Unix(200, 0), raws)
	require.Len(t, out, 1)
	io := out[0].(events.IO)
	require.Equal(t, events.Counter(5), io.ReadCount)
	require.Equal(t, events.Counter(1), io.WriteCount)
	require.Equal(t, events.Counter(20480), io.ReadBytes)
	require.Equal(t, events.Counter(8192), io.WriteBytes)
	require.Greater(t, io.ReadLatencyUS.P95, io.ReadLatencyUS.P50)
	require.Equal(t, 9000.0, io.WriteLatencyUS.Max)
}

func TestAggregateIOEmptyWindowReturnsNoEvents(t *testing.T) {
	require.Empty(t, aggregateIO(time.Unix(300, 0), nil))
}

func TestCStringTrimsNulTerminator(t *testing.T) {
	buf := make([]byte, 16)
	copy(buf, "bash")
	require.Equal(t, "bash", cString(buf))
}
