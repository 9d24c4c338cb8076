package main

import (
	"flag"
	"os"
	"time"

	"github.com/kernelsight/kernelsight/pkg/executor"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/loop"
	"github.com/kernelsight/kernelsight/pkg/reason"
)

// runLoop implements `loop --db PATH [--interval S] [--no-approval]`
// (§6.3): run the eight-phase decision loop until signalled.
func runLoop(args []string) error {
	fs := flag.NewFlagSet("loop", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Path to the store file")
	intervalSec := fs.Int("interval", 0, "Decision cadence in seconds (default: config)")
	noApproval := fs.Bool("no-approval", false, "Skip the approval gate (dangerous — testing only)")
	if err := fs.Parse(args); err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: err}
	}

	cfg := kernsight.Load()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	} else {
		cfg.DBPath = defaultDBPath(cfg)
	}
	if *intervalSec > 0 {
		cfg.DecisionInterval = time.Duration(*intervalSec) * time.Second
	}
	if *noApproval {
		cfg.RequireApproval = false
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

	// Hybrid falls through to the rule-based table whenever the oracle is
	// disabled or nil, so it's always the reasoner here — only the oracle
	// half is conditionally built, matching KERNELSIGHT_ORACLE_ENABLED.
	var oracle *reason.Oracle
	if cfg.OracleEnabled {
		oracle = reason.NewOracle(os.Getenv("ANTHROPIC_API_KEY"), logger)
	}
	reasoner := reason.NewHybrid(oracle, cfg.OracleEnabled, logger)

	approver := loop.Approver(loop.NewSocketApprover(cfg.ApprovalSocket))

	eng := loop.NewEngine(app.Store, app.Baselines, reasoner, executor.New(), approver, app.Metrics, app.Clock, app.Config, logger)

	ctx, cancel := signalContext()
	defer cancel()

	return eng.Run(ctx)
}
