package main

import (
	"flag"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/ingest"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// runIngest implements `ingest --db PATH --watch FILE[,FILE...]
// [--batch-size N] [--batch-timeout S]` (§6.3): run the ingestion engine
// until signalled.
func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Path to the store file")
	watch := fs.String("watch", "", "Comma-separated tracer source files to tail (required)")
	batchSize := fs.Int("batch-size", 0, "Events per commit batch (default: config)")
	batchTimeout := fs.Int("batch-timeout", 0, "Seconds before a partial batch flushes (default: config)")
	if err := fs.Parse(args); err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: err}
	}

	if strings.TrimSpace(*watch) == "" {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: fmt.Errorf("--watch is required")}
	}
	sources, err := parseWatchList(*watch)
	if err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: err}
	}

	cfg := kernsight.Load()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	} else {
		cfg.DBPath = defaultDBPath(cfg)
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *batchTimeout > 0 {
		cfg.BatchTimeout = time.Duration(*batchTimeout) * time.Second
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := openContext(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	eng := ingest.New(app.Store, app.Config, app.Clock, app.Logger, app.Metrics)

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("ingest starting", zap.Strings("streams", streamNames(sources)))
	if err := eng.Run(ctx, sources); err != nil {
		if kernsight.IsKind(err, kernsight.KindFatal) {
			return kernsight.ExitCodeError{Code: kernsight.ExitStoreFailure, Err: err}
		}
		return kernsight.ExitCodeError{Code: kernsight.ExitIOFailure, Err: err}
	}
	return nil
}

// parseWatchList turns "name=path,name=path" or a bare comma-separated
// list of paths into the stream-name -> path map ingest.Engine.Run wants.
// A bare path's stream name is its base filename without extension,
// matching the tracer's own <name>.jsonl output convention (pkg/tracer's
// writer).
func parseWatchList(spec string) (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, path, ok := strings.Cut(entry, "=")
		if !ok {
			path = name
			name = streamNameFromPath(path)
		}
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid --watch entry %q", entry)
		}
		out[name] = path
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--watch must name at least one file")
	}
	return out, nil
}

func streamNameFromPath(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

func streamNames(sources map[string]string) []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
