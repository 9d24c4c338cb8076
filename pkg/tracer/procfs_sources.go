package tracer

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/kernelsight/kernelsight/pkg/events"
	"github.com/kernelsight/kernelsight/util"
)

// procfsSource samples one /proc path (or set of paths) every period and
// emits the result as a one-second aggregate snapshot, degrading to
// unavailable only if the primary path is unreadable at startup.
type procfsSource struct {
	name    string
	primary string // path checked by Available()
	period  time.Duration
	sample  func(now time.Time) []events.Event
}

func (s *procfsSource) Name() string { return s.name }

func (s *procfsSource) Available() (bool, string) {
	if _, err := util.ReadFileLines(s.primary); err != nil {
		return false, "cannot read " + s.primary + ": " + err.Error()
	}
	return true, ""
}

func (s *procfsSource) Run(ctx context.Context, emit func(events.Event)) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, ev := range s.sample(now) {
				emit(ev)
			}
		}
	}
}

func newMemInfoSource(procRoot string, period time.Duration) Source {
	path := filepath.Join(procRoot, "meminfo")
	return &procfsSource{name: "meminfo", primary: path, period: period, sample: func(now time.Time) []events.Event {
		kv, err := util.ParseKeyValueFile(path)
		if err != nil {
			return nil
		}
		total, free := parseKB(kv["MemTotal"]), parseKB(kv["MemFree"])
		swapTotal, swapFree := parseKB(kv["SwapTotal"]), parseKB(kv["SwapFree"])
		return []events.Event{events.MemInfo{
			Timestamp:   now.UnixNano(),
			TotalKB:     total,
			FreeKB:      free,
			AvailableKB: parseKB(kv["MemAvailable"]),
			BuffersKB:   parseKB(kv["Buffers"]),
			CachedKB:    parseKB(kv["Cached"]),
			SwapTotalKB: swapTotal,
			SwapFreeKB:  swapFree,
			ActiveKB:    parseKB(kv["Active"]),
			InactiveKB:  parseKB(kv["Inactive"]),
			DirtyKB:     parseKB(kv["Dirty"]),
			WritebackKB: parseKB(kv["Writeback"]),
		}}
	}}
}

// parseKB parses a meminfo value like "1234 kB" into raw KiB, kept in
// KiB since events.MemInfo's fields are *_kb.
func parseKB(s string) uint64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " kB")
	s = strings.TrimSuffix(s, "kB")
	return util.ParseUint64(strings.TrimSpace(s))
}

func newLoadAvgSource(procRoot string, period time.Duration) Source {
	path := filepath.Join(procRoot, "loadavg")
	return &procfsSource{name: "loadavg", primary: path, period: period, sample: func(now time.Time) []events.Event {
		content, err := util.ReadFileString(path)
		if err != nil {
			return nil
		}
		fields := strings.Fields(content)
		if len(fields) < 5 {
			return nil
		}
		ev := events.LoadAvg{
			Timestamp: now.UnixNano(),
			Load1:     util.ParseFloat64(fields[0]),
			Load5:     util.ParseFloat64(fields[1]),
			Load15:    util.ParseFloat64(fields[2]),
			LastPID:   int32(util.ParseInt(fields[4])),
		}
		if parts := strings.SplitN(fields[3], "/", 2); len(parts) == 2 {
			ev.Running = int32(util.ParseInt(parts[0]))
			ev.Total = int32(util.ParseInt(parts[1]))
		}
		return []events.Event{ev}
	}}
}

func newBlockStatsSource(procRoot string, period time.Duration) Source {
	path := filepath.Join(procRoot, "diskstats")
	return &procfsSource{name: "blockstats", primary: path, period: period, sample: func(now time.Time) []events.Event {
		lines, err := util.ReadFileLines(path)
		if err != nil {
			return nil
		}
		var out []events.Event
		for _, line := range lines {
			ev, ok := parseDiskstatLine(now, line)
			if ok && isWholeDisk(ev.Device) {
				out = append(out, ev)
			}
		}
		return out
	}}
}

// parseDiskstatLine mirrors collector/disk.go's parseDiskstatLine field
// layout exactly, re-targeted at events.BlockStats.
func parseDiskstatLine(now time.Time, line string) (events.BlockStats, bool) {
	fields := strings.Fields(line)
	if len(fields) < 14 {
		return events.BlockStats{}, false
	}
	return events.BlockStats{
		Timestamp:     now.UnixNano(),
		Device:        fields[2],
		ReadIOs:       events.Counter(util.ParseUint64(fields[3])),
		WriteIOs:      events.Counter(util.ParseUint64(fields[7])),
		ReadMerges:    events.Counter(util.ParseUint64(fields[4])),
		WriteMerges:   events.Counter(util.ParseUint64(fields[8])),
		ReadSectors:   events.Counter(util.ParseUint64(fields[5])),
		WriteSectors:  events.Counter(util.ParseUint64(fields[9])),
		ReadTicksMS:   events.Counter(util.ParseUint64(fields[6])),
		WriteTicksMS:  events.Counter(util.ParseUint64(fields[10])),
		InFlight:      int64(util.ParseUint64(fields[11])),
		IOTicksMS:     events.Counter(util.ParseUint64(fields[12])),
		TimeInQueueMS: events.Counter(util.ParseUint64(fields[13])),
	}, true
}

// isWholeDisk mirrors collector/disk.go's partition-exclusion heuristic.
func isWholeDisk(name string) bool {
	if strings.HasPrefix(name, "loop") {
		return false
	}
	if strings.HasPrefix(name, "nvme") {
		return len(name) > 4 && !strings.Contains(name[4:], "p")
	}
	for _, prefix := range []string{"sd", "vd", "xvd", "hd"} {
		if strings.HasPrefix(name, prefix) {
			suffix := name[len(prefix):]
			return len(suffix) == 1 && suffix[0] >= 'a' && suffix[0] <= 'z'
		}
	}
	return strings.HasPrefix(name, "dm-")
}

func newNetInterfaceSource(procRoot string, period time.Duration) Source {
	path := filepath.Join(procRoot, "net/dev")
	return &procfsSource{name: "net_interface", primary: path, period: period, sample: func(now time.Time) []events.Event {
		lines, err := util.ReadFileLines(path)
		if err != nil {
			return nil
		}
		var out []events.Event
		for _, line := range lines {
			if strings.Contains(line, "|") || strings.TrimSpace(line) == "" {
				continue
			}
			ev, ok := parseNetDevLine(now, line)
			if ok && ev.Interface != "lo" {
				out = append(out, ev)
			}
		}
		return out
	}}
}

// parseNetDevLine mirrors collector/network.go's parseNetDevLine field
// layout, re-targeted at events.NetInterface.
func parseNetDevLine(now time.Time, line string) (events.NetInterface, bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return events.NetInterface{}, false
	}
	name := strings.TrimSpace(parts[0])
	fields := strings.Fields(parts[1])
	if len(fields) < 16 {
		return events.NetInterface{}, false
	}
	return events.NetInterface{
		Timestamp: now.UnixNano(),
		Interface: name,
		RxBytes:   events.Counter(util.ParseUint64(fields[0])),
		RxPackets: events.Counter(util.ParseUint64(fields[1])),
		RxErrors:  events.Counter(util.ParseUint64(fields[2])),
		RxDrops:   events.Counter(util.ParseUint64(fields[3])),
		TxBytes:   events.Counter(util.ParseUint64(fields[8])),
		TxPackets: events.Counter(util.ParseUint64(fields[9])),
		TxErrors:  events.Counter(util.ParseUint64(fields[10])),
		TxDrops:   events.Counter(util.ParseUint64(fields[11])),
	}, true
}

func newTCPStatsSource(procRoot string, period time.Duration) Source {
	tcpPath := filepath.Join(procRoot, "net/tcp")
	return &procfsSource{name: "tcp_stats", primary: tcpPath, period: period, sample: func(now time.Time) []events.Event {
		out := []events.Event{tcpStateSnapshot(now, procRoot)}
		if retrans, ok := tcpRetransmits(now, procRoot); ok {
			out = append(out, retrans)
		}
		return out
	}}
}

// tcpStateSnapshot counts sockets per TCP state across /proc/net/tcp and
// /proc/net/tcp6, mirroring collector/socket.go's collectTCPStates state
// table (RFC 793 state codes in column 4, hex-encoded).
func tcpStateSnapshot(now time.Time, procRoot string) events.TCPStats {
	var st events.TCPStats
	st.Timestamp = now.UnixNano()
	for _, rel := range []string{"net/tcp", "net/tcp6"} {
		lines, err := util.ReadFileLines(filepath.Join(procRoot, rel))
		if err != nil || len(lines) < 2 {
			continue
		}
		for _, line := range lines[1:] {
			fields := strings.Fields(line)
			if len(fields) < 4 {
				continue
			}
			stateBytes, err := hex.DecodeString(fields[3])
			if err != nil || len(stateBytes) == 0 {
				continue
			}
			switch stateBytes[0] {
			case 0x01:
				st.Established++
			case 0x02:
				st.SynSent++
			case 0x03:
				st.SynRecv++
			case 0x04:
				st.FinWait1++
			case 0x05:
				st.FinWait2++
			case 0x06:
				st.TimeWait++
			case 0x07:
				st.Close++
			case 0x08:
				st.CloseWait++
			case 0x09:
				st.LastAck++
			case 0x0A:
				st.Listen++
			case 0x0B:
				st.Closing++
			}
		}
	}
	return st
}

// tcpRetransmits reads the cumulative RetransSegs counter out of the
// "Tcp:" row pair in /proc/net/snmp, mirroring collector/network.go's
// collectSNMP header/value pairing.
func tcpRetransmits(now time.Time, procRoot string) (events.TCPRetransmits, bool) {
	lines, err := util.ReadFileLines(filepath.Join(procRoot, "net/snmp"))
	if err != nil {
		return events.TCPRetransmits{}, false
	}
	for i := 0; i+1 < len(lines); i += 2 {
		headers := strings.Fields(lines[i])
		values := strings.Fields(lines[i+1])
		if len(headers) != len(values) || headers[0] != "Tcp:" {
			continue
		}
		for j, h := range headers {
			if h == "RetransSegs" {
				return events.TCPRetransmits{Timestamp: now.UnixNano(), Count: events.Counter(util.ParseUint64(values[j]))}, true
			}
		}
	}
	return events.TCPRetransmits{}, false
}
