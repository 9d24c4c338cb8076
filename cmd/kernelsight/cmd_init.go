package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// runInit implements `init --db PATH` (§6.3): create/migrate schema,
// idempotently (§8.2 "running init twice on the same DB path is a
// no-op").
func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Path to the store file (required)")
	if err := fs.Parse(args); err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: err}
	}

	cfg := kernsight.Default()
	path := *dbPath
	if path == "" {
		path = defaultDBPath(cfg)
	}
	if path == "" {
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs, Err: fmt.Errorf("--db is required")}
	}

	// init's own exit codes are 0/64/70 only (§6.3) — a store that can't
	// even open counts as a schema failure here, not 73 (which is
	// ingest's persistent-store-failure code).
	st, err := store.Open(path, kernsight.SystemClock{})
	if err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInternal, Err: err}
	}
	defer st.Close()

	if err := st.Init(context.Background()); err != nil {
		return kernsight.ExitCodeError{Code: kernsight.ExitInternal, Err: fmt.Errorf("schema init: %w", err)}
	}

	fmt.Printf("kernelsight: schema ready at %s\n", path)
	return nil
}
