package executor

import (
	"context"
	"testing"
	"time"

	"github.com/kernelsight/kernelsight/pkg/actions"
	"github.com/stretchr/testify/require"
)

func TestRunDryRunNeverSpawns(t *testing.T) {
	e := New()
	b := &actions.Built{ActionType: "terminate_process", Command: "kill -TERM 1234", Args: []string{"kill", "-TERM", "1234"}, Rollback: ""}
	res, err := e.Run(context.Background(), b, actions.CategoryProcess, true)
	require.NoError(t, err)
	require.True(t, res.DryRun)
	require.Contains(t, res.PredictedEffect, "kill -TERM 1234")
}

func TestRunSucceedsOnZeroExit(t *testing.T) {
	e := New()
	b := &actions.Built{ActionType: "noop", Command: "true", Args: []string{"true"}}
	res, err := e.Run(context.Background(), b, actions.CategoryInfo, false)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.False(t, res.DryRun)
}

func TestRunReturnsNonZeroExitError(t *testing.T) {
	e := New()
	b := &actions.Built{ActionType: "noop", Command: "false", Args: []string{"false"}}
	res, err := e.Run(context.Background(), b, actions.CategoryInfo, false)
	require.Error(t, err)
	var nz *NonZeroExitError
	require.ErrorAs(t, err, &nz)
	require.NotZero(t, nz.Code)
	require.NotNil(t, res)
}

func TestRunTimesOutUnderShortDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	e := New()
	b := &actions.Built{ActionType: "noop", Command: "sleep 5", Args: []string{"sleep", "5"}}
	_, err := e.Run(ctx, b, actions.CategoryInfo, false)
	require.Error(t, err)
}

func TestRunRejectsUnresolvableBinary(t *testing.T) {
	e := New()
	b := &actions.Built{ActionType: "noop", Command: "totally-not-a-real-binary", Args: []string{"totally-not-a-real-binary"}}
	_, err := e.Run(context.Background(), b, actions.CategoryInfo, false)
	require.Error(t, err)
}

func TestRunTruncatesOutputToLimit(t *testing.T) {
	e := New()
	b := &actions.Built{ActionType: "noop", Command: "echo", Args: []string{"echo", "-e", "a\\nb\\nc"}, OutputLimit: 1}
	res, err := e.Run(context.Background(), b, actions.CategoryInfo, false)
	require.NoError(t, err)
	require.Equal(t, "a\n", res.Stdout)
}
