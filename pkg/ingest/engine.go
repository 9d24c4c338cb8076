package ingest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kernelsight/kernelsight/pkg/events"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// maxRetries bounds the exponential backoff on a transient store error
// before the engine escalates to a fatal shutdown (§4.3 "retried up to
// three times with exponential backoff").
const maxRetries = 3

// Engine is the C3 ingestion engine: one stream reader goroutine per
// source file, all adding to one shared batch under mu. Flushes are not
// confined to one goroutine: a reader that fills the batch to BatchSize,
// or sits idle at EOF past BatchTimeout, flushes on its own goroutine,
// and Run's ticker flushes on Run's goroutine. Each flush swaps the batch
// out under mu before committing, and the store's single write
// connection serializes the commits.
type Engine struct {
	store  *store.Store
	cfg    kernsight.Config
	clock  kernsight.Clock
	logger *zap.Logger
	metric *kernsight.Metrics

	mu            sync.Mutex
	batch         store.Batch
	pending       map[string]int // per-stream count of events currently buffered
	batchOpenedAt time.Time

	fatalCh chan error
}

// New constructs an Engine bound to an open, initialized store.
func New(st *store.Store, cfg kernsight.Config, clock kernsight.Clock, logger *zap.Logger, metrics *kernsight.Metrics) *Engine {
	if clock == nil {
		clock = kernsight.SystemClock{}
	}
	return &Engine{
		store:   st,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metric:  metrics,
		pending: make(map[string]int),
	}
}

// Run tails every named source file until ctx is cancelled or a
// persistent store failure escalates to Fatal. sources maps a stream
// name (used in metrics/logs) to its file path.
func (e *Engine) Run(ctx context.Context, sources map[string]string) error {
	if len(sources) == 0 {
		return kernsight.ValidationFailure("ingest.Run", fmt.Errorf("no source files configured"))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One reader goroutine per stream, grouped so Run can wait for all of
	// them to drain (ctx cancellation or EOF on every non-growable
	// source) without hand-rolling the WaitGroup+done-channel pairing
	// (§5's "stream readers: many, blocking" task table entry).
	g, gctx := errgroup.WithContext(ctx)
	e.fatalCh = make(chan error, 1)

	for name, path := range sources {
		st, err := openStream(name, path)
		if err != nil {
			return kernsight.Fatal("ingest.Run", fmt.Errorf("open source %s: %w", name, err))
		}
		g.Go(func() error {
			defer st.close()
			st.run(gctx, e.handleLine, e.handleIdle)
			return nil
		})
	}

	e.batchOpenedAt = e.clock.Now()

	ticker := time.NewTicker(e.cfg.BatchTimeout)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			e.flushFinal()
			return nil
		case err := <-e.fatalCh:
			cancel()
			e.flushFinal()
			return err
		case <-ticker.C:
			if e.batchAge() >= e.cfg.BatchTimeout {
				if err := e.flush(ctx); err != nil {
					if kernsight.IsKind(err, kernsight.KindFatal) {
						return err
					}
				}
			}
		case <-done:
			// All streams closed (non-growable sources hit EOF).
			e.flushFinal()
			return nil
		}
	}
}

func (e *Engine) flushFinal() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.flush(ctx)
}

func (e *Engine) batchAge() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now().Sub(e.batchOpenedAt)
}

// handleLine parses and classifies one line from stream name, applying
// the drop-cap back-pressure policy before buffering it (§4.3).
func (e *Engine) handleLine(name string, line []byte) {
	ev, err := events.Parse(line)
	if err != nil {
		if kernsight.IsKind(err, kernsight.KindUnknownType) {
			e.metric.UnknownType.Inc()
		} else {
			e.metric.ParseErrors.Inc()
		}
		if e.logger != nil {
			e.logger.Debug("ingest: discarding line", zap.String("stream", name), zap.Error(err))
		}
		return
	}

	e.mu.Lock()
	total := e.batch.Len()
	if total >= e.cfg.DropCap {
		slowest := e.slowestStreamLocked()
		if slowest == name {
			e.pending[name]++ // count attempted, even though dropped
			e.mu.Unlock()
			e.metric.Dropped.WithLabelValues(name).Inc()
			return
		}
	}
	e.batch.Add(ev)
	e.pending[name]++
	size := e.batch.Len()
	e.mu.Unlock()

	e.metric.EventsTotal.WithLabelValues(string(ev.EventType())).Inc()

	if size >= e.cfg.BatchSize {
		e.flushAsync()
	}
}

// flushAsync runs flush and, if it escalates to Fatal, forwards the
// error to Run's select loop so the engine can shut down cleanly instead
// of looping forever on a broken store.
func (e *Engine) flushAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.flush(ctx); err != nil && kernsight.IsKind(err, kernsight.KindFatal) {
		select {
		case e.fatalCh <- err:
		default:
		}
	}
}

// handleIdle is invoked once per poll interval a stream spends at EOF. A
// commit-interval's worth of idle time is itself a flush trigger (§4.3
// "stream EOF + idle for one commit interval").
func (e *Engine) handleIdle(name string) {
	if e.batchAge() >= e.cfg.BatchTimeout {
		e.flushAsync()
	}
}

func (e *Engine) slowestStreamLocked() string {
	var worst string
	var worstN int
	for name, n := range e.pending {
		if n > worstN {
			worst, worstN = name, n
		}
	}
	return worst
}

// flush swaps out the current batch and commits it, retrying transient
// store errors with exponential backoff before escalating to Fatal.
func (e *Engine) flush(ctx context.Context) error {
	e.mu.Lock()
	if e.batch.Empty() {
		e.batchOpenedAt = e.clock.Now()
		e.mu.Unlock()
		return nil
	}
	b := e.batch
	e.batch = store.Batch{}
	e.pending = make(map[string]int)
	e.batchOpenedAt = e.clock.Now()
	e.mu.Unlock()

	start := e.clock.Now()
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = e.store.CommitBatch(ctx, &b)
		if err == nil {
			break
		}
		if !kernsight.IsKind(err, kernsight.KindRetryable) {
			break
		}
		if attempt == maxRetries {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if e.metric.BatchFlushSeconds != nil {
		e.metric.BatchFlushSeconds.Observe(e.clock.Now().Sub(start).Seconds())
	}

	if err != nil {
		e.metric.InsertErrors.Inc()
		e.metric.RecordError(kernsight.KindFatal)
		if e.logger != nil {
			e.logger.Error("ingest: persistent store failure, escalating", zap.Error(err))
		}
		return kernsight.Fatal("ingest.flush", err)
	}
	return nil
}
