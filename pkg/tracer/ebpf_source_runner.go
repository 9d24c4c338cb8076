//go:build linux

package tracer

import (
	"context"
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cilium/ebpf/ringbuf"

	"github.com/kernelsight/kernelsight/pkg/events"
)

// aggregateWindow is the cadence aggregated eBPF sources (sched, io) fold
// their raw per-event samples into one events.Event, matching the
// "one-second aggregate" cadence §3.1 specifies for these two sources.
const aggregateWindow = time.Second

// ebpfSource is the single Source implementation every eBPF-backed
// probe pack uses. decode converts one ring buffer record straight to
// an events.Event for per-occurrence sources (syscall, pagefault).
// aggregate, when set, instead buffers raw records for aggregateWindow
// and folds the whole window into zero-or-more events in one call —
// used by the two sources (sched, io) §3.1 defines as 1s aggregates
// rather than per-event.
type ebpfSource struct {
	spec      attachSpec
	decode    func([]byte) (events.Event, error)
	aggregate func(now time.Time, raws [][]byte) []events.Event
}

func (s *ebpfSource) Name() string { return s.spec.objectName }

func (s *ebpfSource) Available() (bool, string) {
	return s.spec.available(DetectCapability())
}

func (s *ebpfSource) Run(ctx context.Context, emit func(events.Event)) error {
	probe, err := attachBPFProbe(s.spec)
	if err != nil {
		return err
	}
	defer probe.close()

	if s.aggregate == nil {
		return s.runPerRecord(ctx, probe, emit)
	}
	return s.runAggregated(ctx, probe, emit)
}

func (s *ebpfSource) runPerRecord(ctx context.Context, probe *bpfProbe, emit func(events.Event)) error {
	go func() {
		<-ctx.Done()
		probe.reader.Close()
	}()

	for {
		rec, err := probe.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		ev, err := s.decode(rec.RawSample)
		if err != nil {
			continue
		}
		emit(ev)
	}
}

func (s *ebpfSource) runAggregated(ctx context.Context, probe *bpfProbe, emit func(events.Event)) error {
	records := make(chan []byte, 4096)
	readErr := make(chan error, 1)

	go func() {
		<-ctx.Done()
		probe.reader.Close()
	}()
	go func() {
		for {
			rec, err := probe.reader.Read()
			if err != nil {
				if errors.Is(err, ringbuf.ErrClosed) || ctx.Err() != nil {
					readErr <- nil
				} else {
					readErr <- err
				}
				close(records)
				return
			}
			records <- rec.RawSample
		}
	}()

	ticker := time.NewTicker(aggregateWindow)
	defer ticker.Stop()

	var window [][]byte
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case raw, ok := <-records:
			if !ok {
				return nil
			}
			window = append(window, raw)
		case now := <-ticker.C:
			for _, ev := range s.aggregate(now, window) {
				emit(ev)
			}
			window = window[:0]
		}
	}
}

// latencyStatsFrom reduces a batch of microsecond latency samples to the
// p50/p95/p99/max quartet events.IO carries, using the same
// gonum.org/v1/gonum/stat.Quantile estimator pkg/baseline uses for its
// own percentile fields.
func latencyStatsFrom(samples []float64) events.LatencyStats {
	if len(samples) == 0 {
		return events.LatencyStats{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	max := sorted[len(sorted)-1]
	return events.LatencyStats{
		P50: stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95: stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99: stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Max: max,
	}
}
