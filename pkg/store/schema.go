package store

// schemaVersion is bumped whenever the DDL below changes. Init() is
// idempotent: it runs every statement below on each call (all are
// IF NOT EXISTS) and records schemaVersion in schema_version only when
// the stored version is lower (§4.2, §6.2, §8.2).
const schemaVersion = 1

// ddl is applied in order inside a single transaction at Init time. Every
// index named in §3.2 is created here.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS raw_syscall (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		tid INTEGER NOT NULL,
		cpu INTEGER NOT NULL,
		uid INTEGER NOT NULL,
		syscall_nr INTEGER NOT NULL,
		syscall_name TEXT NOT NULL,
		latency_ns INTEGER NOT NULL,
		ret_val INTEGER NOT NULL,
		is_error INTEGER NOT NULL,
		arg0 INTEGER NOT NULL,
		comm TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_syscall_ts ON raw_syscall(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_syscall_pid ON raw_syscall(pid)`,

	`CREATE TABLE IF NOT EXISTS raw_pagefault (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		tid INTEGER NOT NULL,
		cpu INTEGER NOT NULL,
		address INTEGER NOT NULL,
		latency_ns INTEGER NOT NULL,
		major INTEGER NOT NULL,
		write INTEGER NOT NULL,
		kernel_mode INTEGER NOT NULL,
		instr_fetch INTEGER NOT NULL,
		comm TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_pagefault_ts ON raw_pagefault(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_pagefault_pid ON raw_pagefault(pid)`,

	`CREATE TABLE IF NOT EXISTS raw_io (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		read_count INTEGER NOT NULL,
		write_count INTEGER NOT NULL,
		read_bytes INTEGER NOT NULL,
		write_bytes INTEGER NOT NULL,
		read_p50_us REAL NOT NULL,
		read_p95_us REAL NOT NULL,
		read_p99_us REAL NOT NULL,
		read_max_us REAL NOT NULL,
		write_p50_us REAL NOT NULL,
		write_p95_us REAL NOT NULL,
		write_p99_us REAL NOT NULL,
		write_max_us REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_io_ts ON raw_io(timestamp)`,

	`CREATE TABLE IF NOT EXISTS raw_sched (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		comm TEXT NOT NULL,
		context_switches INTEGER NOT NULL,
		voluntary_switches INTEGER NOT NULL,
		involuntary_switches INTEGER NOT NULL,
		wakeups INTEGER NOT NULL,
		cpu_time_ns INTEGER NOT NULL,
		timeslice_total_ns INTEGER NOT NULL,
		timeslice_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_sched_ts ON raw_sched(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_sched_pid ON raw_sched(pid)`,

	`CREATE TABLE IF NOT EXISTS raw_meminfo (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		total_kb INTEGER NOT NULL,
		free_kb INTEGER NOT NULL,
		available_kb INTEGER NOT NULL,
		buffers_kb INTEGER NOT NULL,
		cached_kb INTEGER NOT NULL,
		swap_total_kb INTEGER NOT NULL,
		swap_free_kb INTEGER NOT NULL,
		active_kb INTEGER NOT NULL,
		inactive_kb INTEGER NOT NULL,
		dirty_kb INTEGER NOT NULL,
		writeback_kb INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_meminfo_ts ON raw_meminfo(timestamp)`,

	`CREATE TABLE IF NOT EXISTS raw_loadavg (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		load1 REAL NOT NULL,
		load5 REAL NOT NULL,
		load15 REAL NOT NULL,
		running INTEGER NOT NULL,
		total INTEGER NOT NULL,
		last_pid INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_loadavg_ts ON raw_loadavg(timestamp)`,

	`CREATE TABLE IF NOT EXISTS raw_blockstats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		device TEXT NOT NULL,
		read_ios INTEGER NOT NULL,
		write_ios INTEGER NOT NULL,
		read_merges INTEGER NOT NULL,
		write_merges INTEGER NOT NULL,
		read_sectors INTEGER NOT NULL,
		write_sectors INTEGER NOT NULL,
		read_ticks_ms INTEGER NOT NULL,
		write_ticks_ms INTEGER NOT NULL,
		in_flight INTEGER NOT NULL,
		io_ticks_ms INTEGER NOT NULL,
		time_in_queue_ms INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_blockstats_ts ON raw_blockstats(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_blockstats_device ON raw_blockstats(device)`,

	`CREATE TABLE IF NOT EXISTS raw_net_interface (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		interface TEXT NOT NULL,
		rx_bytes INTEGER NOT NULL,
		tx_bytes INTEGER NOT NULL,
		rx_packets INTEGER NOT NULL,
		tx_packets INTEGER NOT NULL,
		rx_errors INTEGER NOT NULL,
		tx_errors INTEGER NOT NULL,
		rx_drops INTEGER NOT NULL,
		tx_drops INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_net_interface_ts ON raw_net_interface(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_net_interface_name ON raw_net_interface(interface)`,

	`CREATE TABLE IF NOT EXISTS raw_tcp_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		established INTEGER NOT NULL,
		syn_sent INTEGER NOT NULL,
		syn_recv INTEGER NOT NULL,
		fin_wait1 INTEGER NOT NULL,
		fin_wait2 INTEGER NOT NULL,
		time_wait INTEGER NOT NULL,
		close INTEGER NOT NULL,
		close_wait INTEGER NOT NULL,
		last_ack INTEGER NOT NULL,
		listen INTEGER NOT NULL,
		closing INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_tcp_stats_ts ON raw_tcp_stats(timestamp)`,

	`CREATE TABLE IF NOT EXISTS raw_tcp_retransmits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_tcp_retransmits_ts ON raw_tcp_retransmits(timestamp)`,

	`CREATE TABLE IF NOT EXISTS signal_metadata (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		category TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		scope TEXT NOT NULL,
		semantic_label TEXT NOT NULL,
		severity TEXT NOT NULL,
		pressure_score REAL NOT NULL,
		summary TEXT NOT NULL,
		patterns TEXT NOT NULL,
		reasoning_hints TEXT NOT NULL,
		source_table TEXT NOT NULL,
		source_id INTEGER NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entity_name TEXT NOT NULL,
		context_json TEXT NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		occurrence_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_ts ON signal_metadata(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_type ON signal_metadata(signal_type)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_coalesce ON signal_metadata(signal_type, entity_id, semantic_label, last_seen)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_severity ON signal_metadata(severity)`,

	`CREATE TABLE IF NOT EXISTS system_baselines (
		metric_type TEXT NOT NULL,
		lookback_seconds INTEGER NOT NULL,
		payload_json TEXT NOT NULL,
		sample_count INTEGER NOT NULL,
		last_updated INTEGER NOT NULL,
		PRIMARY KEY (metric_type, lookback_seconds)
	)`,

	`CREATE TABLE IF NOT EXISTS reasoning_traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		phase TEXT NOT NULL,
		signal_ids TEXT NOT NULL,
		system_state_json TEXT NOT NULL,
		observation TEXT NOT NULL,
		hypothesis TEXT NOT NULL,
		evidence_json TEXT NOT NULL,
		baseline_context_json TEXT NOT NULL,
		predicted_outcome_json TEXT NOT NULL,
		action_type TEXT NOT NULL,
		action_params_json TEXT NOT NULL,
		rendered_command TEXT NOT NULL,
		confidence REAL NOT NULL,
		action_executed INTEGER NOT NULL,
		rejected_reason TEXT NOT NULL,
		actual_outcome_json TEXT NOT NULL,
		hypothesis_correct INTEGER,
		prediction_accurate INTEGER,
		confidence_calibrated INTEGER,
		lessons_json TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_traces_cycle ON reasoning_traces(cycle_id)`,
	`CREATE INDEX IF NOT EXISTS idx_traces_started ON reasoning_traces(started_at)`,
}
