//go:build linux

package tracer

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/kernelsight/kernelsight/pkg/events"
)

// syscallRecord is the ring buffer payload a raw_syscalls/sys_exit probe
// emits once the exit timestamp minus the matching sys_enter timestamp
// crosses the 10ms collection threshold — the filter runs in BPF so
// only the records worth shipping ever cross into userspace.
type syscallRecord struct {
	Timestamp int64
	PID       int32
	TID       int32
	CPU       int32
	UID       uint32
	SyscallNr int32
	LatencyNS int64
	RetVal    int64
	Arg0      uint64
	Comm      [16]byte
}

func newSyscallSource() Source { return &ebpfSource{spec: syscallSpec, decode: decodeSyscall} }

var syscallSpec = attachSpec{
	objectName: "syscall",
	progName:   "handle_sys_exit",
	mapName:    "events",
	tp:         tracepointRef{group: "raw_syscalls", name: "sys_exit"},
}

func decodeSyscall(raw []byte) (events.Event, error) {
	var r syscallRecord
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &r); err != nil {
		return nil, err
	}
	return events.Syscall{
		Timestamp:   r.Timestamp,
		PID:         r.PID,
		TID:         r.TID,
		CPU:         r.CPU,
		UID:         r.UID,
		SyscallNr:   r.SyscallNr,
		SyscallName: syscallName(r.SyscallNr),
		LatencyNS:   r.LatencyNS,
		RetVal:      r.RetVal,
		IsError:     r.RetVal < 0,
		Arg0:        r.Arg0,
		Comm:        cString(r.Comm[:]),
	}, nil
}

// pageFaultRecord mirrors one major or minor fault, attached via a
// handle_mm_fault kprobe.
type pageFaultRecord struct {
	Timestamp int64
	PID       int32
	TID       int32
	CPU       int32
	Address   uint64
	LatencyNS int64
	Flags     uint32 // bit0 major, bit1 write, bit2 kernel_mode, bit3 instr_fetch
	Comm      [16]byte
}

const (
	pfFlagMajor = 1 << iota
	pfFlagWrite
	pfFlagKernelMode
	pfFlagInstrFetch
)

func newPageFaultSource() Source { return &ebpfSource{spec: pageFaultSpec, decode: decodePageFault} }

var pageFaultSpec = attachSpec{
	objectName: "pagefault",
	progName:   "handle_mm_fault",
	mapName:    "events",
	kprobe:     "handle_mm_fault",
}

func decodePageFault(raw []byte) (events.Event, error) {
	var r pageFaultRecord
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &r); err != nil {
		return nil, err
	}
	return events.PageFault{
		Timestamp:  r.Timestamp,
		PID:        r.PID,
		TID:        r.TID,
		CPU:        r.CPU,
		Address:    r.Address,
		LatencyNS:  r.LatencyNS,
		Major:      r.Flags&pfFlagMajor != 0,
		Write:      r.Flags&pfFlagWrite != 0,
		KernelMode: r.Flags&pfFlagKernelMode != 0,
		InstrFetch: r.Flags&pfFlagInstrFetch != 0,
		Comm:       cString(r.Comm[:]),
	}, nil
}

// schedRecord is one sched_switch-driven context-switch sample,
// aggregated in Go over a 1s window into one events.Sched per PID
// rather than per switch.
type schedRecord struct {
	Timestamp    int64
	PID          int32
	Voluntary    uint32 // 1 if this switch was voluntary (blocking syscall/sleep)
	CPUTimeNS    int64
	TimesliceNS  int64
	Comm         [16]byte
}

func newSchedSource() Source { return &ebpfSource{spec: schedSpec, aggregate: aggregateSched} }

var schedSpec = attachSpec{
	objectName: "sched",
	progName:   "handle_sched_switch",
	mapName:    "events",
	tp:         tracepointRef{group: "sched", name: "sched_switch"},
}

type schedAgg struct {
	comm                string
	contextSwitches     uint64
	voluntarySwitches   uint64
	involuntarySwitches uint64
	cpuTimeNS           int64
	timesliceTotalNS    int64
	timesliceCount      int64
}

// aggregateSched folds one window's raw schedRecord bytes into a
// per-PID, one-second scheduling aggregate.
func aggregateSched(now time.Time, raws [][]byte) []events.Event {
	agg := make(map[int32]*schedAgg)
	for _, raw := range raws {
		var r schedRecord
		if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &r); err != nil {
			continue
		}
		a, ok := agg[r.PID]
		if !ok {
			a = &schedAgg{comm: cString(r.Comm[:])}
			agg[r.PID] = a
		}
		a.contextSwitches++
		if r.Voluntary != 0 {
			a.voluntarySwitches++
		} else {
			a.involuntarySwitches++
		}
		a.cpuTimeNS += r.CPUTimeNS
		a.timesliceTotalNS += r.TimesliceNS
		a.timesliceCount++
	}

	out := make([]events.Event, 0, len(agg))
	ts := now.UnixNano()
	for pid, a := range agg {
		out = append(out, events.Sched{
			Timestamp:           ts,
			PID:                 pid,
			Comm:                a.comm,
			ContextSwitches:     events.Counter(a.contextSwitches),
			VoluntarySwitches:   events.Counter(a.voluntarySwitches),
			InvoluntarySwitches: events.Counter(a.involuntarySwitches),
			CPUTimeNS:           a.cpuTimeNS,
			TimesliceTotalNS:    a.timesliceTotalNS,
			TimesliceCount:      a.timesliceCount,
		})
	}
	return out
}

// ioRecord is one completed block IO request, spanning the
// block_rq_issue/block_rq_complete pair, folded into one events.IO
// aggregate per window by aggregateIO.
type ioRecord struct {
	Timestamp int64
	LatencyNS int64
	Bytes     uint64
	Write     uint32
}

func newIOSource() Source { return &ebpfSource{spec: ioSpec, aggregate: aggregateIO} }

var ioSpec = attachSpec{
	objectName: "io",
	progName:   "handle_block_rq_complete",
	mapName:    "events",
	tp:         tracepointRef{group: "block", name: "block_rq_complete"},
}

func aggregateIO(now time.Time, raws [][]byte) []events.Event {
	var readLat, writeLat []float64
	var readCount, writeCount, readBytes, writeBytes uint64

	for _, raw := range raws {
		var r ioRecord
		if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &r); err != nil {
			continue
		}
		latUS := float64(r.LatencyNS) / 1e3
		if r.Write != 0 {
			writeCount++
			writeBytes += r.Bytes
			writeLat = append(writeLat, latUS)
		} else {
			readCount++
			readBytes += r.Bytes
			readLat = append(readLat, latUS)
		}
	}

	if readCount == 0 && writeCount == 0 {
		return nil
	}

	return []events.Event{events.IO{
		Timestamp:      now.UnixNano(),
		ReadCount:      events.Counter(readCount),
		WriteCount:     events.Counter(writeCount),
		ReadBytes:      events.Counter(readBytes),
		WriteBytes:     events.Counter(writeBytes),
		ReadLatencyUS:  latencyStatsFrom(readLat),
		WriteLatencyUS: latencyStatsFrom(writeLat),
	}}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), "\x00")
}
