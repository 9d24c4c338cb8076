// Command kernelsight is the CLI surface: init, ingest, classify, loop,
// and the read-side query subcommands. Each subcommand gets its own
// flag.FlagSet so its flags don't leak into the others.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var exitErr kernsight.ExitCodeError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(kernsight.ExitInternal)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs}
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return runInit(rest)
	case "ingest":
		return runIngest(rest)
	case "classify":
		return runClassify(rest)
	case "loop":
		return runLoop(rest)
	case "query":
		return runQuery(rest)
	case "-h", "-help", "--help", "help":
		printUsage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "kernelsight: unknown command %q\n\n", cmd)
		printUsage()
		return kernsight.ExitCodeError{Code: kernsight.ExitInvalidArgs}
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `kernelsight — autonomous host-level observability and remediation

Usage:
  kernelsight <command> [flags]

Commands:
  init --db PATH
        Create or migrate the store schema. Idempotent.

  ingest --db PATH --watch FILE[,FILE...] [--batch-size N] [--batch-timeout S]
        Tail tracer source files and commit events until signalled.

  classify --db PATH [--since SECONDS]
        Run one classifier sweep over recent raw events.

  loop --db PATH [--interval S] [--no-approval]
        Run the decision loop (observe/explain/simulate/decide/approve/
        execute/verify/reflect) until signalled.

  query signals [--severity LEVEL] [--type T] [--since SECONDS] [--limit N] [--json]
        List recent signals.

  query predict --signal-type T --duration SECONDS [--slope F]
        Run the counterfactual simulator against a signal type's current
        baseline trend (or an operator-supplied slope) without a live
        decision cycle.

Environment:
  KERNELSIGHT_DB               default --db path
  KERNELSIGHT_LOG_LEVEL         DEBUG|INFO|WARN|ERROR
  KERNELSIGHT_ORACLE_ENABLED    "false" forces rule-based reasoning
  KERNELSIGHT_APPROVAL_SOCKET   unix socket for loop approval replies

Exit codes: 0 success, 64 invalid arguments, 70 internal error, 73 store
failure, 74 I/O failure, 77 permission denied.
`)
}
