package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"time"

	"github.com/kernelsight/kernelsight/pkg/classify"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// runClassify implements `classify --db PATH [--since SECONDS]` (§6.3):
// one classifier sweep over recent raw events, exit 0 regardless of how
// many signals it produces (§8.2 "classify --since S twice in succession
// yields zero new rows" is a property of coalescing, not a failure mode).
func runClassify(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Path to the store file")
	sinceSec := fs.Int("since", 0, "Lookback window in seconds (default: decision interval)")
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

	lookback := cfg.DecisionInterval
	if *sinceSec > 0 {
		lookback = time.Duration(*sinceSec) * time.Second
	}
	since := app.Clock.Now().Add(-lookback)

	eng := classify.New(app.Store, app.Baselines, app.Config, app.Clock)
	signals, err := eng.Run(context.Background(), since, runtime.NumCPU())
	if err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitStoreFailure, Err: err}
	}

	fmt.Printf("kernelsight: classified %d signal(s) since %s\n", len(signals), since.Format(time.RFC3339))
	for _, sig := range signals {
		fmt.Printf("  %-24s %-9s %s\n", sig.SignalType, sig.Severity, sig.Summary)
	}
	return nil
}
