package classify

import (
	"context"
	"database/sql"
	"time"
)

// Row mirrors for each raw table, scoped to the window the classifier
// pass is driven over. Only the columns a classifier actually reads are
// included.

type memRow struct {
	id                        int64
	at                        time.Time
	totalKB, availableKB      uint64
	swapTotalKB, swapFreeKB   uint64
	dirtyKB, writebackKB      uint64
}

type loadRow struct {
	id    int64
	at    time.Time
	load1 float64
}

type ioRow struct {
	id                     int64
	at                     time.Time
	readP95US, writeP95US  float64
}

type blockRow struct {
	id                                    int64
	at                                    time.Time
	device                                string
	readIOs, writeIOs                     uint64
	readTicksMS, writeTicksMS, ioTicksMS  uint64
	inFlight                              int64
}

type netRow struct {
	id                                          int64
	at                                          time.Time
	iface                                       string
	rxErrors, txErrors, rxDrops, txDrops        uint64
}

type tcpRow struct {
	id                          int64
	at                          time.Time
	established, synRecv, timeWait int64
}

type schedRow struct {
	id                                  int64
	at                                  time.Time
	pid                                 int32
	comm                                string
	contextSwitches, involuntary, wakeups uint64
}

type syscallRow struct {
	id          int64
	at          time.Time
	comm        string
	syscallName string
	latencyNS   int64
	isError     bool
}

type pagefaultRow struct {
	id        int64
	at        time.Time
	pid       int32
	latencyNS int64
	major     bool
}

// Window is the set of raw rows newer than Since, fetched from a single
// store.Snapshot so classifiers see a consistent cut (§4.2 "classifiers
// run against a snapshot").
type Window struct {
	Since time.Time

	MemInfo    []memRow
	LoadAvg    []loadRow
	IO         []ioRow
	BlockStats []blockRow
	NetIface   []netRow
	TCPStats   []tcpRow
	Sched      []schedRow
	Syscalls   []syscallRow
	PageFaults []pagefaultRow
}

// LoadWindow fetches every raw row newer than since from db.
func LoadWindow(ctx context.Context, db *sql.DB, since time.Time) (*Window, error) {
	w := &Window{Since: since}

	if err := scanRows(ctx, db, `SELECT id, timestamp, total_kb, available_kb, swap_total_kb, swap_free_kb, dirty_kb, writeback_kb
		FROM raw_meminfo WHERE timestamp >= ? ORDER BY timestamp`, since, func(rs *sql.Rows) error {
		var r memRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.totalKB, &r.availableKB, &r.swapTotalKB, &r.swapFreeKB, &r.dirtyKB, &r.writebackKB); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.MemInfo = append(w.MemInfo, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, load1 FROM raw_loadavg WHERE timestamp >= ? ORDER BY timestamp`, since, func(rs *sql.Rows) error {
		var r loadRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.load1); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.LoadAvg = append(w.LoadAvg, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, read_p95_us, write_p95_us FROM raw_io WHERE timestamp >= ? ORDER BY timestamp`, since, func(rs *sql.Rows) error {
		var r ioRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.readP95US, &r.writeP95US); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.IO = append(w.IO, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, device, read_ios, write_ios, read_ticks_ms, write_ticks_ms, in_flight, io_ticks_ms
		FROM raw_blockstats WHERE timestamp >= ? ORDER BY device, timestamp`, since, func(rs *sql.Rows) error {
		var r blockRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.device, &r.readIOs, &r.writeIOs, &r.readTicksMS, &r.writeTicksMS, &r.inFlight, &r.ioTicksMS); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.BlockStats = append(w.BlockStats, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, interface, rx_errors, tx_errors, rx_drops, tx_drops
		FROM raw_net_interface WHERE timestamp >= ? ORDER BY interface, timestamp`, since, func(rs *sql.Rows) error {
		var r netRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.iface, &r.rxErrors, &r.txErrors, &r.rxDrops, &r.txDrops); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.NetIface = append(w.NetIface, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, established, syn_recv, time_wait FROM raw_tcp_stats WHERE timestamp >= ? ORDER BY timestamp`, since, func(rs *sql.Rows) error {
		var r tcpRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.established, &r.synRecv, &r.timeWait); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.TCPStats = append(w.TCPStats, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, pid, comm, context_switches, involuntary_switches, wakeups
		FROM raw_sched WHERE timestamp >= ? ORDER BY pid, timestamp`, since, func(rs *sql.Rows) error {
		var r schedRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.pid, &r.comm, &r.contextSwitches, &r.involuntary, &r.wakeups); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.Sched = append(w.Sched, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, comm, syscall_name, latency_ns, is_error
		FROM raw_syscall WHERE timestamp >= ? ORDER BY comm, syscall_name, timestamp`, since, func(rs *sql.Rows) error {
		var r syscallRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.comm, &r.syscallName, &r.latencyNS, &r.isError); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.Syscalls = append(w.Syscalls, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := scanRows(ctx, db, `SELECT id, timestamp, pid, latency_ns, major FROM raw_pagefault WHERE timestamp >= ? ORDER BY pid, timestamp`, since, func(rs *sql.Rows) error {
		var r pagefaultRow
		var ts int64
		if err := rs.Scan(&r.id, &ts, &r.pid, &r.latencyNS, &r.major); err != nil {
			return err
		}
		r.at = time.Unix(ts, 0).UTC()
		w.PageFaults = append(w.PageFaults, r)
		return nil
	}); err != nil {
		return nil, err
	}

	return w, nil
}

func scanRows(ctx context.Context, db *sql.DB, q string, since time.Time, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, q, since.Unix())
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
