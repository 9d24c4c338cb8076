package baseline

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sample is one (timestamp, value) row pulled from a raw table.
type sample struct {
	at    time.Time
	value float64
}

// queryFn pulls the raw samples a metric family's baseline/trend is
// computed over. scope is the entity id (device/interface/pid) for
// per-entity families, empty for system-wide ones.
type queryFn func(ctx context.Context, db *sql.DB, since time.Time, scope string) ([]sample, error)

// queries maps a metric type to the raw-table query that feeds it. Per-
// entity metric types are looked up with their scope folded into the key
// by callers (e.g. "net_error_rate:eth0") — the table below is keyed on
// the family prefix, resolved by metricFamily.
var queries = map[string]queryFn{
	"memory_pressure_pct": queryMemoryPressure,
	"load1_per_cpu":       queryLoad1,
	"io_read_p95_us":      queryIOReadP95,
	"io_write_p95_us":     queryIOWriteP95,
	"tcp_time_wait":       queryTCPTimeWait,
	"tcp_syn_recv":        queryTCPSynRecv,
	"net_error_rate":      queryNetErrorRate,
	"block_util":          queryBlockUtil,
}

func queryMemoryPressure(ctx context.Context, db *sql.DB, since time.Time, _ string) ([]sample, error) {
	rows, err := db.QueryContext(ctx, `SELECT timestamp, total_kb, available_kb FROM raw_meminfo WHERE timestamp >= ? ORDER BY timestamp`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sample
	for rows.Next() {
		var ts int64
		var total, avail uint64
		if err := rows.Scan(&ts, &total, &avail); err != nil {
			return nil, err
		}
		if total == 0 {
			continue
		}
		out = append(out, sample{at: time.Unix(ts, 0).UTC(), value: float64(total-avail) / float64(total)})
	}
	return out, rows.Err()
}

func queryLoad1(ctx context.Context, db *sql.DB, since time.Time, _ string) ([]sample, error) {
	return queryFloatColumn(ctx, db, "raw_loadavg", "load1", since)
}

func queryIOReadP95(ctx context.Context, db *sql.DB, since time.Time, _ string) ([]sample, error) {
	return queryFloatColumn(ctx, db, "raw_io", "read_p95_us", since)
}

func queryIOWriteP95(ctx context.Context, db *sql.DB, since time.Time, _ string) ([]sample, error) {
	return queryFloatColumn(ctx, db, "raw_io", "write_p95_us", since)
}

func queryTCPTimeWait(ctx context.Context, db *sql.DB, since time.Time, _ string) ([]sample, error) {
	return queryFloatColumn(ctx, db, "raw_tcp_stats", "time_wait", since)
}

func queryTCPSynRecv(ctx context.Context, db *sql.DB, since time.Time, _ string) ([]sample, error) {
	return queryFloatColumn(ctx, db, "raw_tcp_stats", "syn_recv", since)
}

func queryFloatColumn(ctx context.Context, db *sql.DB, table, col string, since time.Time) ([]sample, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT timestamp, %s FROM %s WHERE timestamp >= ? ORDER BY timestamp`, col, table), since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sample
	for rows.Next() {
		var ts int64
		var v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, err
		}
		out = append(out, sample{at: time.Unix(ts, 0).UTC(), value: v})
	}
	return out, rows.Err()
}

// queryNetErrorRate derives a per-second error+drop rate per interface
// from consecutive cumulative-counter snapshots (§3.1 "derivatives are
// computed downstream").
func queryNetErrorRate(ctx context.Context, db *sql.DB, since time.Time, iface string) ([]sample, error) {
	rows, err := db.QueryContext(ctx, `SELECT timestamp, rx_errors, tx_errors, rx_drops, tx_drops FROM raw_net_interface
		WHERE interface = ? AND timestamp >= ? ORDER BY timestamp`, iface, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var raw []counterSample
	for rows.Next() {
		var ts int64
		var rxE, txE, rxD, txD uint64
		if err := rows.Scan(&ts, &rxE, &txE, &rxD, &txD); err != nil {
			return nil, err
		}
		raw = append(raw, counterSample{ts: ts, total: rxE + txE + rxD + txD})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return derivativeRate(raw), nil
}

// queryBlockUtil derives an instantaneous utilization fraction per device
// from consecutive io_ticks_ms snapshots (time spent doing I/O divided by
// wall time elapsed), the Little's-law-derived utilization of §4.4.
func queryBlockUtil(ctx context.Context, db *sql.DB, since time.Time, device string) ([]sample, error) {
	rows, err := db.QueryContext(ctx, `SELECT timestamp, io_ticks_ms FROM raw_blockstats
		WHERE device = ? AND timestamp >= ? ORDER BY timestamp`, device, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		ts    int64
		ticks uint64
	}
	var raw []row
	for rows.Next() {
		var ts int64
		var ticks uint64
		if err := rows.Scan(&ts, &ticks); err != nil {
			return nil, err
		}
		raw = append(raw, row{ts: ts, ticks: ticks})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []sample
	for i := 1; i < len(raw); i++ {
		dt := raw[i].ts - raw[i-1].ts
		if dt <= 0 || raw[i].ticks < raw[i-1].ticks {
			continue
		}
		busyMS := raw[i].ticks - raw[i-1].ticks
		util := float64(busyMS) / (float64(dt) * 1000.0)
		if util > 1 {
			util = 1
		}
		out = append(out, sample{at: time.Unix(raw[i].ts, 0).UTC(), value: util})
	}
	return out, nil
}

// counterSample is one cumulative-counter observation at a point in
// time, the shared shape queryNetErrorRate feeds to derivativeRate.
type counterSample struct {
	ts    int64
	total uint64
}

func derivativeRate(raw []counterSample) []sample {
	var out []sample
	for i := 1; i < len(raw); i++ {
		dt := raw[i].ts - raw[i-1].ts
		if dt <= 0 || raw[i].total < raw[i-1].total {
			continue
		}
		rate := float64(raw[i].total-raw[i-1].total) / float64(dt)
		out = append(out, sample{at: time.Unix(raw[i].ts, 0).UTC(), value: rate})
	}
	return out
}
