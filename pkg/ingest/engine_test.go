package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

func newTestEngine(t *testing.T, cfg kernsight.Config) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"), kernsight.SystemClock{})
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { st.Close() })
	return New(st, cfg, kernsight.SystemClock{}, nil, kernsight.NewMetrics()), st
}

func testConfig() kernsight.Config {
	cfg := kernsight.Default()
	cfg.BatchSize = 5
	cfg.BatchTimeout = 50 * time.Millisecond
	cfg.DropCap = 3
	return cfg
}

func TestHandleLineBuffersAndFlushesAtBatchSize(t *testing.T) {
	eng, st := newTestEngine(t, testConfig())
	for i := 0; i < 5; i++ {
		eng.handleLine("meminfo", []byte(fmt.Sprintf(`{"type":"meminfo","timestamp":%d,"total_kb":100}`, 1700000000+i)))
	}
	// the 5th line should have triggered a size-based flush synchronously
	stats, err := st.TableStats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 5, stats["raw_meminfo"])
}

func TestHandleLineMalformedAdvancesPastLine(t *testing.T) {
	eng, st := newTestEngine(t, testConfig())
	eng.handleLine("meminfo", []byte(`not json`))
	eng.handleLine("meminfo", []byte(`{"type":"meminfo","timestamp":1700000000,"total_kb":100}`))
	eng.handleLine("meminfo", []byte(`{"type":"meminfo","timestamp":1700000001,"total_kb":100}`))
	require.NoError(t, eng.flush(context.Background()))

	stats, err := st.TableStats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats["raw_meminfo"])
}

func TestDropCapProtectsOtherStreams(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1000 // disable size-triggered flush for this test
	eng, st := newTestEngine(t, cfg)

	// "loud" stream fills the batch past DropCap.
	for i := 0; i < 4; i++ {
		eng.handleLine("loud", []byte(fmt.Sprintf(`{"type":"loadavg","timestamp":%d,"load1":1.0}`, 1700000000+i)))
	}
	// "quiet" stream's event should still be accepted.
	eng.handleLine("quiet", []byte(`{"type":"loadavg","timestamp":1700000100,"load1":2.0}`))

	require.NoError(t, eng.flush(context.Background()))

	// Three loud events plus the quiet one; the fourth loud event was dropped.
	stats, err := st.TableStats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, stats["raw_loadavg"])
}

func TestRunTailsGrowableAndNonGrowableFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meminfo.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"type":"meminfo","timestamp":1700000000,"total_kb":100}`+"\n"+
			`{"type":"meminfo","timestamp":1700000001,"total_kb":110}`+"\n"), 0644))

	cfg := testConfig()
	cfg.BatchTimeout = 20 * time.Millisecond
	eng, st := newTestEngine(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := eng.Run(ctx, map[string]string{"meminfo": path})
	require.NoError(t, err)

	stats, err := st.TableStats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats["raw_meminfo"])
}
