package tracer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kernelsight/kernelsight/pkg/events"
)

// flushInterval bounds how stale a tracer output file can get for a
// consumer tailing it with pkg/ingest's 100ms poll (§4.3) — small enough
// that ingestion sees a new line within about one flush cycle.
const flushInterval = 200 * time.Millisecond

// writer appends newline-delimited events.Event JSON to one source file,
// mirroring pkg/ingest's stream on the read side: one file, one owning
// goroutine, append-only. A background ticker flushes the buffer so a
// slow-writing source (a one-second snapshot) still shows up promptly.
type writer struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	stopCh chan struct{}
	doneCh chan struct{}
}

func newWriter(dir, name string) (*writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	w := &writer{
		file:   f,
		buf:    bufio.NewWriterSize(f, 64*1024),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go w.flushLoop()
	return w, nil
}

func (w *writer) flushLoop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			w.buf.Flush()
			w.mu.Unlock()
		}
	}
}

func (w *writer) writeEvent(e events.Event) error {
	line, err := events.Serialize(e)
	if err != nil {
		return fmt.Errorf("serialize %T: %w", e, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

func (w *writer) close() error {
	close(w.stopCh)
	<-w.doneCh
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
