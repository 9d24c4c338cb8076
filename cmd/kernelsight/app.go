package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// defaultDBPath resolves --db PATH's default: an explicit flag wins,
// then KERNELSIGHT_DB, then the config file's stored path.
func defaultDBPath(cfg kernsight.Config) string {
	if v := os.Getenv("KERNELSIGHT_DB"); v != "" {
		return v
	}
	return cfg.DBPath
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so a long
// running subcommand can flush and exit cleanly instead of being killed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newLogger builds the process logger, wrapping kernsight.NewLogger's
// error as an internal-exit failure — a daemon that can't log is not
// safe to run.
func newLogger() (*zap.Logger, error) {
	logger, err := kernsight.NewLogger()
	if err != nil {
		return nil, kernsight.ExitCodeError{Code: kernsight.ExitInternal, Err: err}
	}
	return logger, nil
}

// openContext wires a kernsight.Context against dbPath, mapping a store
// open failure to the store-failure exit code.
func openContext(cfg kernsight.Config, logger *zap.Logger) (*kernsight.Context, error) {
	app, err := kernsight.NewContext(cfg, logger)
	if err != nil {
		return nil, kernsight.ExitCodeError{Code: kernsight.ExitStoreFailure, Err: err}
	}
	return app, nil
}
