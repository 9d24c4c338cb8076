package tracer

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kernelsight/kernelsight/pkg/events"
)

func TestWriterRoundTripsThroughEventsParse(t *testing.T) {
	dir := t.TempDir()
	w, err := newWriter(dir, "meminfo")
	require.NoError(t, err)

	want := events.MemInfo{Timestamp: 123, TotalKB: 16384000, FreeKB: 1024000}
	require.NoError(t, w.writeEvent(want))
	require.NoError(t, w.close())

	f, err := os.Open(filepath.Join(dir, "meminfo.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	line := scanner.Bytes()

	got, err := events.Parse(line)
	require.NoError(t, err)
	mi, ok := got.(events.MemInfo)
	require.True(t, ok)
	require.Equal(t, want.TotalKB, mi.TotalKB)
	require.Equal(t, want.FreeKB, mi.FreeKB)

	require.False(t, scanner.Scan(), "exactly one line expected")
}

func TestWriterAppendsAcrossMultipleEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := newWriter(dir, "loadavg")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.writeEvent(events.LoadAvg{Timestamp: int64(i), Load1: float64(i)}))
	}
	require.NoError(t, w.close())

	data, err := os.ReadFile(filepath.Join(dir, "loadavg.jsonl"))
	require.NoError(t, err)

	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	require.Equal(t, 3, lines)
}
