package actions

// Catalog is the fixed action enumeration (§4.7). It is built once at
// startup and never mutated at runtime.
var Catalog = map[string]*Spec{
	"lower_process_priority": {
		ActionType:       "lower_process_priority",
		Category:         CategoryProcess,
		Params:           []Param{{"pid", positiveInt("pid")}, {"priority", intRange("priority", 1, 20)}},
		CommandTemplate:  "renice -n {priority} -p {pid}",
		DefaultRisk:      RiskLow,
		RollbackTemplate: "renice -n 0 -p {pid}",
		RequiresRoot:     true,
		Allowlist:        `^renice -n \d+ -p \d+$`,
	},
	"throttle_cpu": {
		ActionType:       "throttle_cpu",
		Category:         CategoryProcess,
		Params:           []Param{{"pid", positiveInt("pid")}, {"limit", intRange("limit", 1, 100)}},
		CommandTemplate:  "cpulimit --pid {pid} --limit {limit}",
		DefaultRisk:      RiskMedium,
		RequiresRoot:     true,
		Allowlist:        `^cpulimit --pid \d+ --limit \d+$`,
	},
	"set_cpu_affinity": {
		ActionType:       "set_cpu_affinity",
		Category:         CategoryProcess,
		Params:           []Param{{"pid", positiveInt("pid")}, {"cpus", cpuSet("cpus")}},
		CommandTemplate:  "taskset -pc {cpus} {pid}",
		DefaultRisk:      RiskLow,
		RequiresRoot:     true,
		Allowlist:        `^taskset -pc [\d,\-]+ \d+$`,
	},
	"pause_process": {
		ActionType:       "pause_process",
		Category:         CategoryProcess,
		Params:           []Param{{"pid", positiveInt("pid")}},
		CommandTemplate:  "kill -STOP {pid}",
		DefaultRisk:      RiskMedium,
		RollbackTemplate: "kill -CONT {pid}",
		RequiresRoot:     true,
		Allowlist:        `^kill -STOP \d+$`,
	},
	"resume_process": {
		ActionType:      "resume_process",
		Category:        CategoryProcess,
		Params:          []Param{{"pid", positiveInt("pid")}},
		CommandTemplate: "kill -CONT {pid}",
		DefaultRisk:     RiskLow,
		RequiresRoot:    true,
		Allowlist:       `^kill -CONT \d+$`,
	},
	"terminate_process": {
		ActionType:       "terminate_process",
		Category:         CategoryProcess,
		Params:           []Param{{"pid", positiveInt("pid")}},
		CommandTemplate:  "kill -TERM {pid}",
		DefaultRisk:      RiskHigh,
		RequiresRoot:     true,
		Allowlist:        `^kill -TERM \d+$`,
	},
	"lower_io_priority": {
		ActionType:       "lower_io_priority",
		Category:         CategoryIO,
		Params:           []Param{{"pid", positiveInt("pid")}, {"io_class", intRange("io_class", 1, 3)}},
		CommandTemplate:  "ionice -c {io_class} -n 7 -p {pid}",
		DefaultRisk:      RiskLow,
		RequiresRoot:     true,
		Allowlist:        `^ionice -c \d+ -n 7 -p \d+$`,
	},
	"flush_buffers": {
		ActionType:      "flush_buffers",
		Category:        CategoryIO,
		Params:          nil,
		CommandTemplate: "sync",
		DefaultRisk:     RiskLow,
		RequiresRoot:    false,
		Allowlist:       `^sync$`,
	},
	"reduce_swappiness": {
		ActionType:       "reduce_swappiness",
		Category:         CategoryMemory,
		Params:           []Param{{"value", intRange("value", 0, 100)}},
		CommandTemplate:  "sysctl -w vm.swappiness={value}",
		DefaultRisk:      RiskMedium,
		RollbackTemplate: "sysctl -w vm.swappiness=60",
		RequiresRoot:     true,
		Allowlist:        `^sysctl -w vm\.swappiness=\d+$`,
	},
	"clear_page_cache": {
		ActionType:      "clear_page_cache",
		Category:        CategoryMemory,
		Params:          nil,
		CommandTemplate: "sysctl -w vm.drop_caches=1",
		DefaultRisk:     RiskHigh,
		RequiresRoot:    true,
		Allowlist:       `^sysctl -w vm\.drop_caches=1$`,
	},
	"increase_tcp_backlog": {
		ActionType:       "increase_tcp_backlog",
		Category:         CategoryNetwork,
		Params:           []Param{{"value", intRange("value", 128, 65535)}},
		CommandTemplate:  "sysctl -w net.core.somaxconn={value}",
		DefaultRisk:      RiskMedium,
		RollbackTemplate: "sysctl -w net.core.somaxconn=128",
		RequiresRoot:     true,
		Allowlist:        `^sysctl -w net\.core\.somaxconn=\d+$`,
	},
	"reduce_fin_timeout": {
		ActionType:       "reduce_fin_timeout",
		Category:         CategoryNetwork,
		Params:           []Param{{"seconds", intRange("seconds", 5, 60)}},
		CommandTemplate:  "sysctl -w net.ipv4.tcp_fin_timeout={seconds}",
		DefaultRisk:      RiskMedium,
		RollbackTemplate: "sysctl -w net.ipv4.tcp_fin_timeout=60",
		RequiresRoot:     true,
		Allowlist:        `^sysctl -w net\.ipv4\.tcp_fin_timeout=\d+$`,
	},
	"rate_limit_syn": {
		ActionType:       "rate_limit_syn",
		Category:         CategoryNetwork,
		Params:           []Param{{"iface", ifaceName("iface")}, {"rate", intRange("rate", 1, 10000)}},
		CommandTemplate:  "tc filter add dev {iface} parent ffff: protocol ip prio 1 u32 match ip protocol 6 0xff match u8 2 0x3f at 33 action police rate {rate}pps burst 10k",
		DefaultRisk:      RiskHigh,
		RollbackTemplate: "tc filter del dev {iface} parent ffff:",
		RequiresRoot:     true,
		Allowlist:        `^tc filter add dev [a-zA-Z0-9_.]+ parent ffff: protocol ip prio 1 u32 match ip protocol 6 0xff match u8 2 0x3f at 33 action police rate \d+pps burst 10k$`,
	},
	"list_top_memory": {
		ActionType:       "list_top_memory",
		Category:         CategoryInfo,
		Params:           []Param{{"limit", intRange("limit", 1, 100)}},
		CommandTemplate:  "ps -eo pid,comm,%mem --sort=-%mem --no-headers",
		DefaultRisk:      RiskNone,
		RequiresRoot:     false,
		Allowlist:        `^ps -eo pid,comm,%mem --sort=-%mem --no-headers$`,
		OutputLimitParam: "limit",
	},
	"list_top_cpu": {
		ActionType:       "list_top_cpu",
		Category:         CategoryInfo,
		Params:           []Param{{"limit", intRange("limit", 1, 100)}},
		CommandTemplate:  "ps -eo pid,comm,%cpu --sort=-%cpu --no-headers",
		DefaultRisk:      RiskNone,
		RequiresRoot:     false,
		Allowlist:        `^ps -eo pid,comm,%cpu --sort=-%cpu --no-headers$`,
		OutputLimitParam: "limit",
	},
	"check_io_activity": {
		ActionType:      "check_io_activity",
		Category:        CategoryInfo,
		Params:          []Param{{"device", deviceName("device")}},
		CommandTemplate: "iostat -x {device} 1 1",
		DefaultRisk:     RiskNone,
		RequiresRoot:    false,
		Allowlist:       `^iostat -x [a-zA-Z0-9]+ 1 1$`,
	},
	"check_network_stats": {
		ActionType:      "check_network_stats",
		Category:        CategoryInfo,
		Params:          []Param{{"iface", ifaceName("iface")}},
		CommandTemplate: "ip -s link show {iface}",
		DefaultRisk:     RiskNone,
		RequiresRoot:    false,
		Allowlist:       `^ip -s link show [a-zA-Z0-9_.]+$`,
	},
	"check_tcp_stats": {
		ActionType:      "check_tcp_stats",
		Category:        CategoryInfo,
		Params:          nil,
		CommandTemplate: "ss -s",
		DefaultRisk:     RiskNone,
		RequiresRoot:    false,
		Allowlist:       `^ss -s$`,
	},
	"monitor_swap": {
		ActionType:      "monitor_swap",
		Category:        CategoryInfo,
		Params:          nil,
		CommandTemplate: "swapon --show",
		DefaultRisk:     RiskNone,
		RequiresRoot:    false,
		Allowlist:       `^swapon --show$`,
	},
	"check_process_tree": {
		ActionType:      "check_process_tree",
		Category:        CategoryInfo,
		Params:          []Param{{"pid", positiveInt("pid")}},
		CommandTemplate: "pstree -p {pid}",
		DefaultRisk:     RiskNone,
		RequiresRoot:    false,
		Allowlist:       `^pstree -p \d+$`,
	},
	"check_open_files": {
		ActionType:      "check_open_files",
		Category:        CategoryInfo,
		Params:          []Param{{"pid", positiveInt("pid")}},
		CommandTemplate: "lsof -p {pid}",
		DefaultRisk:     RiskNone,
		RequiresRoot:    false,
		Allowlist:       `^lsof -p \d+$`,
	},
	"check_cgroup_pressure": {
		ActionType:      "check_cgroup_pressure",
		Category:        CategoryInfo,
		Params:          []Param{{"pid", positiveInt("pid")}},
		CommandTemplate: "cat /proc/{pid}/cgroup",
		DefaultRisk:     RiskNone,
		RequiresRoot:    false,
		Allowlist:       `^cat /proc/\d+/cgroup$`,
	},
}

// Lookup returns the catalog entry for actionType, or nil if unknown.
func Lookup(actionType string) *Spec {
	return Catalog[actionType]
}
