package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/loop"
	"github.com/kernelsight/kernelsight/pkg/simulate"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// runQuery dispatches `query signals` and `query predict` (§6.3), the
// read-side subcommands consumed by surrounding tooling.
func runQuery(args []string) error {
	if len(args) == 0 {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: fmt.Errorf("query requires a subcommand: signals, predict")}
	}
	switch args[0] {
	case "signals":
		return runQuerySignals(args[1:])
	case "predict":
		return runQueryPredict(args[1:])
	default:
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: fmt.Errorf("unknown query subcommand %q", args[0])}
	}
}

// runQuerySignals implements `query signals [--severity LEVEL] [--type T]
// [--since SECONDS] [--limit N] [--json]`.
func runQuerySignals(args []string) error {
	fs := flag.NewFlagSet("query signals", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Path to the store file")
	severity := fs.String("severity", "", "Minimum severity to include")
	signalType := fs.String("type", "", "Restrict to one signal_type")
	sinceSec := fs.Int("since", 0, "Lookback window in seconds")
	limit := fs.Int("limit", 100, "Maximum rows to return")
	asJSON := fs.Bool("json", false, "Emit JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: err}
	}

	cfg := kernsight.Load()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	} else {
		cfg.DBPath = defaultDBPath(cfg)
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

	filter := store.SignalFilter{
		SignalType: *signalType,
		Severity:   *severity,
		Limit:      *limit,
	}
	if *sinceSec > 0 {
		filter.Since = app.Clock.Now().Add(-time.Duration(*sinceSec) * time.Second)
	}

	sigs, err := app.Store.Snapshot().QuerySignals(context.Background(), filter)
	if err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitStoreFailure, Err: err}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sigs)
	}

	for _, sig := range sigs {
		fmt.Printf("%-20s %-24s %-9s %-6s %s\n",
			sig.LastSeen.Format(time.RFC3339), sig.SignalType, sig.Severity, strconv.Itoa(sig.OccurrenceCount), sig.Summary)
	}
	return nil
}

// runQueryPredict implements `query predict --signal-type T --duration
// SECONDS [--slope F]`: runs the simulator alone, against the signal
// type's own escalation schedule (pkg/loop.DefaultThresholds) and its
// current baseline trend (or an operator-supplied slope override) rather
// than a specific triggered signal, which `query predict` never has.
func runQueryPredict(args []string) error {
	fs := flag.NewFlagSet("query predict", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Path to the store file")
	signalType := fs.String("signal-type", "", "Signal type to project (required)")
	durationSec := fs.Int("duration", 0, "Projection horizon in seconds (required)")
	slope := fs.Float64("slope", 0, "Operator-supplied slope (metric-units/minute), used when no trend is established")
	if err := fs.Parse(args); err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: err}
	}
	hasSlope := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "slope" {
			hasSlope = true
		}
	})

	if *signalType == "" || *durationSec <= 0 {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: fmt.Errorf("--signal-type and --duration are required")}
	}

	cfg := kernsight.Load()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	} else {
		cfg.DBPath = defaultDBPath(cfg)
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

	bands := loop.DefaultThresholds(*signalType)
	if bands == nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: fmt.Errorf("signal type %q has no tracked escalation schedule", *signalType)}
	}

	// query predict has no triggering signal to read an entity scope
	// (device/interface) from, so scoped families project against the
	// host-wide baseline key ("") — callers who need a specific device's
	// trend go through `loop` or `classify`, which have a signal to scope
	// against.
	family, _, ok := loop.BaselineFamilyFor(*signalType)
	var trend baseline.Trend
	var current float64
	ctx := context.Background()
	if ok {
		trend, err = app.Baselines.Trend(ctx, family, "", cfg.TrendWindow)
		if err != nil {
			logger.Warn("trend lookup failed, projection will rely on --slope", zap.String("signal_type", *signalType), zap.Error(err))
		}
		if st, gerr := app.Baselines.Get(ctx, family, "", cfg.BaselineLookback); gerr == nil && st != nil {
			current = st.Mean
		}
	}

	in := simulate.Input{
		SignalType: *signalType,
		Current:    current,
		Trend:      trend,
		Horizon:    time.Duration(*durationSec) * time.Second,
		Thresholds: bands,
	}
	if hasSlope {
		in.OperatorSlope = slope
	}

	projection, err := simulate.Project(in)
	if err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: err}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(projection)
}
