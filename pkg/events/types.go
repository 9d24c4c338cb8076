// Package events defines the typed wire union the tracer/scraper layer
// emits and the ingestion engine consumes, and the single parse operation
// that turns one newline-delimited JSON line into a concrete variant
// (§3.1, §4.1).
package events

// Type is the wire discriminator. It is semantic, not a Go kind — every
// variant below corresponds to exactly one Type value.
type Type string

const (
	TypeSyscall       Type = "syscall"
	TypePageFault     Type = "pagefault"
	TypeIO            Type = "io"
	TypeSched         Type = "sched"
	TypeMemInfo       Type = "meminfo"
	TypeLoadAvg       Type = "loadavg"
	TypeBlockStats    Type = "blockstats"
	TypeNetInterface  Type = "net_interface"
	TypeTCPStats      Type = "tcp_stats"
	TypeTCPRetransmits Type = "tcp_retransmits"
)

// Event is implemented by every wire variant. TimestampNS returns the
// monotonic-corrected, nanoseconds-since-epoch emit time (§3.1).
type Event interface {
	EventType() Type
	TimestampNS() int64
}

// Syscall is emitted only when observed latency exceeds the 10ms
// collection threshold (§3.1).
type Syscall struct {
	Type Type `json:"type,omitempty"`
	Timestamp   int64   `json:"timestamp"`
	PID         int32   `json:"pid"`
	TID         int32   `json:"tid"`
	CPU         int32   `json:"cpu"`
	UID         uint32  `json:"uid"`
	SyscallNr   int32   `json:"syscall_nr"`
	SyscallName string  `json:"syscall_name"`
	LatencyNS   int64   `json:"latency_ns"`
	RetVal      int64   `json:"ret_val"`
	IsError     bool    `json:"is_error"`
	Arg0        uint64  `json:"arg0"`
	Comm        string  `json:"comm"` // process name, truncated to 16 bytes
}

func (e Syscall) EventType() Type   { return TypeSyscall }
func (e Syscall) TimestampNS() int64 { return e.Timestamp }

// PageFault records one major or minor fault.
type PageFault struct {
	Type Type `json:"type,omitempty"`
	Timestamp     int64  `json:"timestamp"`
	PID           int32  `json:"pid"`
	TID           int32  `json:"tid"`
	CPU           int32  `json:"cpu"`
	Address       uint64 `json:"address"`
	LatencyNS     int64  `json:"latency_ns"`
	Major         bool   `json:"major"`
	Write         bool   `json:"write"`
	KernelMode    bool   `json:"kernel_mode"`
	InstrFetch    bool   `json:"instr_fetch"`
	Comm          string `json:"comm"`
}

func (e PageFault) EventType() Type   { return TypePageFault }
func (e PageFault) TimestampNS() int64 { return e.Timestamp }

// LatencyStats is the p50/p95/p99/max latency quartet used by IO, in
// microseconds.
type LatencyStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// IO is a one-second system-wide block IO aggregate.
type IO struct {
	Type Type `json:"type,omitempty"`
	Timestamp  int64        `json:"timestamp"`
	ReadCount  Counter      `json:"read_count"`
	WriteCount Counter      `json:"write_count"`
	ReadBytes  Counter      `json:"read_bytes"`
	WriteBytes Counter      `json:"write_bytes"`
	ReadLatencyUS  LatencyStats `json:"read_latency_us"`
	WriteLatencyUS LatencyStats `json:"write_latency_us"`
}

func (e IO) EventType() Type   { return TypeIO }
func (e IO) TimestampNS() int64 { return e.Timestamp }

// Sched is a one-second per-process scheduling aggregate.
type Sched struct {
	Type Type `json:"type,omitempty"`
	Timestamp              int64   `json:"timestamp"`
	PID                    int32   `json:"pid"`
	Comm                   string  `json:"comm"`
	ContextSwitches        Counter `json:"context_switches"`
	VoluntarySwitches      Counter `json:"voluntary_switches"`
	InvoluntarySwitches    Counter `json:"involuntary_switches"`
	Wakeups                Counter `json:"wakeups"`
	CPUTimeNS              int64   `json:"cpu_time_ns"`
	TimesliceTotalNS       int64   `json:"timeslice_total_ns"`
	TimesliceCount         int64   `json:"timeslice_count"`
	TimeBucket             int64   `json:"time_bucket,omitempty"` // legacy discriminator key
}

func (e Sched) EventType() Type   { return TypeSched }
func (e Sched) TimestampNS() int64 { return e.Timestamp }

// MemInfo is a 1s-cadence snapshot of /proc/meminfo-equivalent fields, in KiB.
type MemInfo struct {
	Type Type `json:"type,omitempty"`
	Timestamp    int64   `json:"timestamp"`
	TotalKB      uint64  `json:"total_kb"`
	FreeKB       uint64  `json:"free_kb"`
	AvailableKB  uint64  `json:"available_kb"`
	BuffersKB    uint64  `json:"buffers_kb"`
	CachedKB     uint64  `json:"cached_kb"`
	SwapTotalKB  uint64  `json:"swap_total_kb"`
	SwapFreeKB   uint64  `json:"swap_free_kb"`
	ActiveKB     uint64  `json:"active_kb"`
	InactiveKB   uint64  `json:"inactive_kb"`
	DirtyKB      uint64  `json:"dirty_kb"`
	WritebackKB  uint64  `json:"writeback_kb"`
}

func (e MemInfo) EventType() Type   { return TypeMemInfo }
func (e MemInfo) TimestampNS() int64 { return e.Timestamp }

// LoadAvg is a loadavg(5) snapshot.
type LoadAvg struct {
	Type Type `json:"type,omitempty"`
	Timestamp  int64   `json:"timestamp"`
	Load1      float64 `json:"load1"`
	Load5      float64 `json:"load5"`
	Load15     float64 `json:"load15"`
	Running    int32   `json:"running"`
	Total      int32   `json:"total"`
	LastPID    int32   `json:"last_pid"`
}

func (e LoadAvg) EventType() Type   { return TypeLoadAvg }
func (e LoadAvg) TimestampNS() int64 { return e.Timestamp }

// BlockStats is a per-device block layer counter snapshot. All counters
// are cumulative; derivatives are computed downstream (§3.1).
type BlockStats struct {
	Type Type `json:"type,omitempty"`
	Timestamp     int64   `json:"timestamp"`
	Device        string  `json:"device"`
	ReadIOs       Counter `json:"read_ios"`
	WriteIOs      Counter `json:"write_ios"`
	ReadMerges    Counter `json:"read_merges"`
	WriteMerges   Counter `json:"write_merges"`
	ReadSectors   Counter `json:"read_sectors"`
	WriteSectors  Counter `json:"write_sectors"`
	ReadTicksMS   Counter `json:"read_ticks_ms"`
	WriteTicksMS  Counter `json:"write_ticks_ms"`
	InFlight      int64   `json:"in_flight"`
	IOTicksMS     Counter `json:"io_ticks_ms"`
	TimeInQueueMS Counter `json:"time_in_queue_ms"`
}

func (e BlockStats) EventType() Type   { return TypeBlockStats }
func (e BlockStats) TimestampNS() int64 { return e.Timestamp }

// NetInterface is a per-interface cumulative counter snapshot.
type NetInterface struct {
	Type Type `json:"type,omitempty"`
	Timestamp int64   `json:"timestamp"`
	Interface string  `json:"interface"`
	RxBytes   Counter `json:"rx_bytes"`
	TxBytes   Counter `json:"tx_bytes"`
	RxPackets Counter `json:"rx_packets"`
	TxPackets Counter `json:"tx_packets"`
	RxErrors  Counter `json:"rx_errors"`
	TxErrors  Counter `json:"tx_errors"`
	RxDrops   Counter `json:"rx_drops"`
	TxDrops   Counter `json:"tx_drops"`
}

func (e NetInterface) EventType() Type   { return TypeNetInterface }
func (e NetInterface) TimestampNS() int64 { return e.Timestamp }

// TCPStats counts sockets in each TCP state.
type TCPStats struct {
	Type Type `json:"type,omitempty"`
	Timestamp   int64 `json:"timestamp"`
	Established int64 `json:"established"`
	SynSent     int64 `json:"syn_sent"`
	SynRecv     int64 `json:"syn_recv"`
	FinWait1    int64 `json:"fin_wait1"`
	FinWait2    int64 `json:"fin_wait2"`
	TimeWait    int64 `json:"time_wait"`
	Close       int64 `json:"close"`
	CloseWait   int64 `json:"close_wait"`
	LastAck     int64 `json:"last_ack"`
	Listen      int64 `json:"listen"`
	Closing     int64 `json:"closing"`
}

func (e TCPStats) EventType() Type   { return TypeTCPStats }
func (e TCPStats) TimestampNS() int64 { return e.Timestamp }

// TCPRetransmits is the cumulative retransmitted-segment counter.
type TCPRetransmits struct {
	Type Type `json:"type,omitempty"`
	Timestamp int64   `json:"timestamp"`
	Count     Counter `json:"count"`
}

func (e TCPRetransmits) EventType() Type   { return TypeTCPRetransmits }
func (e TCPRetransmits) TimestampNS() int64 { return e.Timestamp }
