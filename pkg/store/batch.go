package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kernelsight/kernelsight/pkg/events"
)

// Batch accumulates events by table so CommitBatch can insert each table
// in one prepared-statement loop inside a single transaction (§4.2, §6.2
// "batched single-writer commits").
type Batch struct {
	Syscall        []events.Syscall
	PageFault      []events.PageFault
	IO             []events.IO
	Sched          []events.Sched
	MemInfo        []events.MemInfo
	LoadAvg        []events.LoadAvg
	BlockStats     []events.BlockStats
	NetInterface   []events.NetInterface
	TCPStats       []events.TCPStats
	TCPRetransmits []events.TCPRetransmits
}

// Add appends e to the slice matching its concrete type.
func (b *Batch) Add(e events.Event) {
	switch v := e.(type) {
	case events.Syscall:
		b.Syscall = append(b.Syscall, v)
	case events.PageFault:
		b.PageFault = append(b.PageFault, v)
	case events.IO:
		b.IO = append(b.IO, v)
	case events.Sched:
		b.Sched = append(b.Sched, v)
	case events.MemInfo:
		b.MemInfo = append(b.MemInfo, v)
	case events.LoadAvg:
		b.LoadAvg = append(b.LoadAvg, v)
	case events.BlockStats:
		b.BlockStats = append(b.BlockStats, v)
	case events.NetInterface:
		b.NetInterface = append(b.NetInterface, v)
	case events.TCPStats:
		b.TCPStats = append(b.TCPStats, v)
	case events.TCPRetransmits:
		b.TCPRetransmits = append(b.TCPRetransmits, v)
	}
}

// Len returns the total number of buffered events across all tables.
func (b *Batch) Len() int {
	return len(b.Syscall) + len(b.PageFault) + len(b.IO) + len(b.Sched) +
		len(b.MemInfo) + len(b.LoadAvg) + len(b.BlockStats) +
		len(b.NetInterface) + len(b.TCPStats) + len(b.TCPRetransmits)
}

// Empty reports whether the batch has nothing to flush.
func (b *Batch) Empty() bool { return b.Len() == 0 }

// CommitBatch inserts every buffered event in one transaction. A busy or
// locked database is Retryable (the caller's ingest loop retries with
// backoff per §6.2); any other insert failure, such as a constraint
// violation or a schema mismatch, is Fatal.
func (s *Store) CommitBatch(ctx context.Context, b *Batch) error {
	if b.Empty() {
		return nil
	}
	return s.withWriteTx(ctx, "store.CommitBatch", func(tx *sql.Tx) error {
		if err := insertSyscalls(ctx, tx, b.Syscall); err != nil {
			return err
		}
		if err := insertPageFaults(ctx, tx, b.PageFault); err != nil {
			return err
		}
		if err := insertIO(ctx, tx, b.IO); err != nil {
			return err
		}
		if err := insertSched(ctx, tx, b.Sched); err != nil {
			return err
		}
		if err := insertMemInfo(ctx, tx, b.MemInfo); err != nil {
			return err
		}
		if err := insertLoadAvg(ctx, tx, b.LoadAvg); err != nil {
			return err
		}
		if err := insertBlockStats(ctx, tx, b.BlockStats); err != nil {
			return err
		}
		if err := insertNetInterface(ctx, tx, b.NetInterface); err != nil {
			return err
		}
		if err := insertTCPStats(ctx, tx, b.TCPStats); err != nil {
			return err
		}
		if err := insertTCPRetransmits(ctx, tx, b.TCPRetransmits); err != nil {
			return err
		}
		return nil
	})
}

func insertSyscalls(ctx context.Context, tx *sql.Tx, rows []events.Syscall) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_syscall
		(timestamp, pid, tid, cpu, uid, syscall_nr, syscall_name, latency_ns, ret_val, is_error, arg0, comm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_syscall: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.PID, r.TID, r.CPU, r.UID,
			r.SyscallNr, r.SyscallName, r.LatencyNS, r.RetVal, r.IsError, r.Arg0, r.Comm); err != nil {
			return fmt.Errorf("insert raw_syscall: %w", err)
		}
	}
	return nil
}

func insertPageFaults(ctx context.Context, tx *sql.Tx, rows []events.PageFault) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_pagefault
		(timestamp, pid, tid, cpu, address, latency_ns, major, write, kernel_mode, instr_fetch, comm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_pagefault: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.PID, r.TID, r.CPU, r.Address,
			r.LatencyNS, r.Major, r.Write, r.KernelMode, r.InstrFetch, r.Comm); err != nil {
			return fmt.Errorf("insert raw_pagefault: %w", err)
		}
	}
	return nil
}

func insertIO(ctx context.Context, tx *sql.Tx, rows []events.IO) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_io
		(timestamp, read_count, write_count, read_bytes, write_bytes,
		 read_p50_us, read_p95_us, read_p99_us, read_max_us,
		 write_p50_us, write_p95_us, write_p99_us, write_max_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_io: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, uint64(r.ReadCount), uint64(r.WriteCount),
			uint64(r.ReadBytes), uint64(r.WriteBytes),
			r.ReadLatencyUS.P50, r.ReadLatencyUS.P95, r.ReadLatencyUS.P99, r.ReadLatencyUS.Max,
			r.WriteLatencyUS.P50, r.WriteLatencyUS.P95, r.WriteLatencyUS.P99, r.WriteLatencyUS.Max); err != nil {
			return fmt.Errorf("insert raw_io: %w", err)
		}
	}
	return nil
}

func insertSched(ctx context.Context, tx *sql.Tx, rows []events.Sched) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_sched
		(timestamp, pid, comm, context_switches, voluntary_switches, involuntary_switches,
		 wakeups, cpu_time_ns, timeslice_total_ns, timeslice_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_sched: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.PID, r.Comm,
			uint64(r.ContextSwitches), uint64(r.VoluntarySwitches), uint64(r.InvoluntarySwitches),
			uint64(r.Wakeups), r.CPUTimeNS, r.TimesliceTotalNS, r.TimesliceCount); err != nil {
			return fmt.Errorf("insert raw_sched: %w", err)
		}
	}
	return nil
}

func insertMemInfo(ctx context.Context, tx *sql.Tx, rows []events.MemInfo) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_meminfo
		(timestamp, total_kb, free_kb, available_kb, buffers_kb, cached_kb,
		 swap_total_kb, swap_free_kb, active_kb, inactive_kb, dirty_kb, writeback_kb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_meminfo: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.TotalKB, r.FreeKB, r.AvailableKB,
			r.BuffersKB, r.CachedKB, r.SwapTotalKB, r.SwapFreeKB, r.ActiveKB, r.InactiveKB,
			r.DirtyKB, r.WritebackKB); err != nil {
			return fmt.Errorf("insert raw_meminfo: %w", err)
		}
	}
	return nil
}

func insertLoadAvg(ctx context.Context, tx *sql.Tx, rows []events.LoadAvg) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_loadavg
		(timestamp, load1, load5, load15, running, total, last_pid)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_loadavg: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.Load1, r.Load5, r.Load15,
			r.Running, r.Total, r.LastPID); err != nil {
			return fmt.Errorf("insert raw_loadavg: %w", err)
		}
	}
	return nil
}

func insertBlockStats(ctx context.Context, tx *sql.Tx, rows []events.BlockStats) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_blockstats
		(timestamp, device, read_ios, write_ios, read_merges, write_merges,
		 read_sectors, write_sectors, read_ticks_ms, write_ticks_ms,
		 in_flight, io_ticks_ms, time_in_queue_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_blockstats: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.Device,
			uint64(r.ReadIOs), uint64(r.WriteIOs), uint64(r.ReadMerges), uint64(r.WriteMerges),
			uint64(r.ReadSectors), uint64(r.WriteSectors), uint64(r.ReadTicksMS), uint64(r.WriteTicksMS),
			r.InFlight, uint64(r.IOTicksMS), uint64(r.TimeInQueueMS)); err != nil {
			return fmt.Errorf("insert raw_blockstats: %w", err)
		}
	}
	return nil
}

func insertNetInterface(ctx context.Context, tx *sql.Tx, rows []events.NetInterface) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_net_interface
		(timestamp, interface, rx_bytes, tx_bytes, rx_packets, tx_packets,
		 rx_errors, tx_errors, rx_drops, tx_drops)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_net_interface: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.Interface,
			uint64(r.RxBytes), uint64(r.TxBytes), uint64(r.RxPackets), uint64(r.TxPackets),
			uint64(r.RxErrors), uint64(r.TxErrors), uint64(r.RxDrops), uint64(r.TxDrops)); err != nil {
			return fmt.Errorf("insert raw_net_interface: %w", err)
		}
	}
	return nil
}

func insertTCPStats(ctx context.Context, tx *sql.Tx, rows []events.TCPStats) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_tcp_stats
		(timestamp, established, syn_sent, syn_recv, fin_wait1, fin_wait2,
		 time_wait, close, close_wait, last_ack, listen, closing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_tcp_stats: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.Established, r.SynSent, r.SynRecv,
			r.FinWait1, r.FinWait2, r.TimeWait, r.Close, r.CloseWait, r.LastAck, r.Listen, r.Closing); err != nil {
			return fmt.Errorf("insert raw_tcp_stats: %w", err)
		}
	}
	return nil
}

func insertTCPRetransmits(ctx context.Context, tx *sql.Tx, rows []events.TCPRetransmits) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_tcp_retransmits (timestamp, count) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw_tcp_retransmits: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, uint64(r.Count)); err != nil {
			return fmt.Errorf("insert raw_tcp_retransmits: %w", err)
		}
	}
	return nil
}
