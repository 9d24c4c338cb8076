// Package tracer produces the events.Event union as newline-delimited
// JSON on per-source files so pkg/ingest has something concrete to tail.
// Sources are either eBPF probe packs (syscall/pagefault/sched/io,
// process-exec-triggered or tracepoint-driven) or one-second procfs
// snapshots (meminfo, loadavg, blockstats, net_interface, tcp_stats,
// tcp_retransmits). A source that cannot attach — missing BTF,
// insufficient privilege, an unreadable /proc path — is logged and
// skipped; it never aborts the others.
package tracer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/events"
)

// Source is one self-contained collector. Name identifies the source in
// logs/metrics and is also the default output file stem. Available
// reports whether this source's prerequisites (BTF, root, tracepoint
// presence, a readable /proc path) are satisfied on this host; Run is
// only ever called when Available() is true.
type Source interface {
	Name() string
	Available() (bool, string) // ok, reason-if-not
	Run(ctx context.Context, emit func(events.Event)) error
}

// Config controls which sources run and how often the procfs snapshot
// sources sample.
type Config struct {
	OutputDir      string        // one "<source>.jsonl" file per active source
	SnapshotPeriod time.Duration // cadence for meminfo/loadavg/blockstats/net/tcp (default 1s)
	ProcRoot       string        // override for /proc, tests only; "" means "/proc"
	EnableEBPF     bool          // attempt syscall/pagefault/sched/io probes
}

func (c Config) procRoot() string {
	if c.ProcRoot == "" {
		return "/proc"
	}
	return c.ProcRoot
}

func (c Config) snapshotPeriod() time.Duration {
	if c.SnapshotPeriod <= 0 {
		return time.Second
	}
	return c.SnapshotPeriod
}

// Sources returns every source Run should attempt, in a fixed order:
// eBPF packs first (if enabled), then procfs snapshot sources. Capability
// is not checked here — callers probe Available() per source so a
// degraded host still gets every source that *can* run.
func Sources(cfg Config) []Source {
	var out []Source
	if cfg.EnableEBPF {
		out = append(out,
			newSyscallSource(),
			newPageFaultSource(),
			newSchedSource(),
			newIOSource(),
		)
	}
	out = append(out,
		newMemInfoSource(cfg.procRoot(), cfg.snapshotPeriod()),
		newLoadAvgSource(cfg.procRoot(), cfg.snapshotPeriod()),
		newBlockStatsSource(cfg.procRoot(), cfg.snapshotPeriod()),
		newNetInterfaceSource(cfg.procRoot(), cfg.snapshotPeriod()),
		newTCPStatsSource(cfg.procRoot(), cfg.snapshotPeriod()),
	)
	return out
}

// Run starts every available source under cfg, writing each source's
// events to <OutputDir>/<name>.jsonl, and blocks until ctx is cancelled.
// Sources that fail Available() are logged at WARN and skipped; a source
// whose Run returns an error after starting is logged at ERROR and the
// rest keep running — one bad probe pack never takes down ingestion for
// the others.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	sources := Sources(cfg)

	active := 0
	for _, src := range sources {
		ok, reason := src.Available()
		if !ok {
			logger.Warn("tracer source unavailable, skipping", zap.String("source", src.Name()), zap.String("reason", reason))
			continue
		}

		w, err := newWriter(cfg.OutputDir, src.Name())
		if err != nil {
			logger.Error("tracer source output unopenable, skipping", zap.String("source", src.Name()), zap.Error(err))
			continue
		}

		active++
		go func(src Source, w *writer) {
			defer w.close()
			err := src.Run(ctx, func(e events.Event) {
				if werr := w.writeEvent(e); werr != nil {
					logger.Error("tracer write failed", zap.String("source", src.Name()), zap.Error(werr))
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("tracer source exited", zap.String("source", src.Name()), zap.Error(err))
			}
		}(src, w)
	}

	if active == 0 {
		logger.Warn("no tracer sources available on this host")
	}

	<-ctx.Done()
	return nil
}
