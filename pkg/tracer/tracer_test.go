package tracer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDetectCapabilityReportsReasonWhenUnavailable(t *testing.T) {
	cap := DetectCapability()
	if !cap.Available {
		require.NotEmpty(t, cap.Reason)
	} else {
		require.Empty(t, cap.Reason)
	}
}

func TestSourcesWithEBPFDisabledOnlyReturnsProcfsSources(t *testing.T) {
	cfg := Config{EnableEBPF: false}
	sources := Sources(cfg)
	require.Len(t, sources, 5)

	var names []string
	for _, s := range sources {
		names = append(names, s.Name())
	}
	require.ElementsMatch(t, []string{"meminfo", "loadavg", "blockstats", "net_interface", "tcp_stats"}, names)
}

func TestSourcesWithEBPFEnabledIncludesAllFour(t *testing.T) {
	cfg := Config{EnableEBPF: true}
	sources := Sources(cfg)
	require.Len(t, sources, 9)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	require.Equal(t, "/proc", cfg.procRoot())
	require.Equal(t, time.Second, cfg.snapshotPeriod())

	cfg2 := Config{ProcRoot: "/tmp/x", SnapshotPeriod: 5 * time.Second}
	require.Equal(t, "/tmp/x", cfg2.procRoot())
	require.Equal(t, 5*time.Second, cfg2.snapshotPeriod())
}
