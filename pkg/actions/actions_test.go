package actions

import (
	"testing"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/stretchr/testify/require"
)

func TestBuildLowerProcessPriority(t *testing.T) {
	b, err := Build("lower_process_priority", map[string]any{"pid": 1234, "priority": 10})
	require.NoError(t, err)
	require.Equal(t, "renice -n 10 -p 1234", b.Command)
	require.Equal(t, RiskLow, b.Risk)
	require.Equal(t, "renice -n 0 -p 1234", b.Rollback)
}

func TestBuildUnknownActionFails(t *testing.T) {
	_, err := Build("nonexistent_action", nil)
	require.Error(t, err)
	require.True(t, kernsight.IsKind(err, kernsight.KindUnknownType))
}

func TestBuildMissingParamFailsValidation(t *testing.T) {
	_, err := Build("lower_process_priority", map[string]any{"pid": 1234})
	require.Error(t, err)
	require.True(t, kernsight.IsKind(err, kernsight.KindValidationFailure))
}

func TestBuildOutOfRangeParamFailsValidation(t *testing.T) {
	_, err := Build("lower_process_priority", map[string]any{"pid": 1234, "priority": 99})
	require.Error(t, err)
	require.True(t, kernsight.IsKind(err, kernsight.KindValidationFailure))
}

func TestBuildNonPositivePIDFailsValidation(t *testing.T) {
	_, err := Build("terminate_process", map[string]any{"pid": -5})
	require.Error(t, err)
	require.True(t, kernsight.IsKind(err, kernsight.KindValidationFailure))
}

func TestBuildInfoActionHasNoneRiskAndNoRoot(t *testing.T) {
	b, err := Build("check_tcp_stats", nil)
	require.NoError(t, err)
	require.Equal(t, RiskNone, b.Risk)
	require.Equal(t, "ss -s", b.Command)
	require.False(t, Lookup("check_tcp_stats").RequiresRoot)
}

func TestBuildListTopMemoryCapturesOutputLimit(t *testing.T) {
	b, err := Build("list_top_memory", map[string]any{"limit": 5})
	require.NoError(t, err)
	require.Equal(t, 5, b.OutputLimit)
	require.NotContains(t, b.Command, "|")
}

func TestBuildSetCPUAffinityAcceptsRangeAndList(t *testing.T) {
	b, err := Build("set_cpu_affinity", map[string]any{"pid": 9, "cpus": "0-3,7"})
	require.NoError(t, err)
	require.Equal(t, "taskset -pc 0-3,7 9", b.Command)
}

func TestBuildRejectsMalformedCPUSet(t *testing.T) {
	_, err := Build("set_cpu_affinity", map[string]any{"pid": 9, "cpus": "abc; rm -rf /"})
	require.Error(t, err)
	require.True(t, kernsight.IsKind(err, kernsight.KindValidationFailure))
}

func TestCatalogHasAtLeast20Entries(t *testing.T) {
	require.GreaterOrEqual(t, len(Catalog), 20)
}

func TestEveryCatalogEntryRendersWithinItsAllowlist(t *testing.T) {
	samples := map[string]map[string]any{
		"lower_process_priority": {"pid": 1, "priority": 5},
		"throttle_cpu":           {"pid": 1, "limit": 50},
		"set_cpu_affinity":       {"pid": 1, "cpus": "0,1"},
		"pause_process":          {"pid": 1},
		"resume_process":         {"pid": 1},
		"terminate_process":      {"pid": 1},
		"lower_io_priority":      {"pid": 1, "io_class": 2},
		"flush_buffers":          {},
		"reduce_swappiness":      {"value": 10},
		"clear_page_cache":       {},
		"increase_tcp_backlog":   {"value": 1024},
		"reduce_fin_timeout":     {"seconds": 15},
		"rate_limit_syn":         {"iface": "eth0", "rate": 100},
		"list_top_memory":        {"limit": 10},
		"list_top_cpu":           {"limit": 10},
		"check_io_activity":      {"device": "sda"},
		"check_network_stats":    {"iface": "eth0"},
		"check_tcp_stats":        {},
		"monitor_swap":           {},
		"check_process_tree":     {"pid": 1},
		"check_open_files":       {"pid": 1},
		"check_cgroup_pressure":  {"pid": 1},
	}
	for actionType, spec := range Catalog {
		params, ok := samples[actionType]
		require.True(t, ok, "missing sample params for %s", actionType)
		b, err := Build(actionType, params)
		require.NoError(t, err, "building %s", actionType)
		require.NotEmpty(t, b.Command)
		require.Equal(t, spec.DefaultRisk, b.Risk)
	}
}
