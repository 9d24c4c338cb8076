//go:build !linux

package tracer

import (
	"context"

	"github.com/kernelsight/kernelsight/pkg/events"
)

// stubSource reports Unavailable unconditionally on non-Linux builds —
// eBPF is Linux-only, and KernelSight's procfs sources carry the rest of
// the host signal on these platforms (§11.8's degradation floor).
type stubSource struct{ name string }

func (s stubSource) Name() string                 { return s.name }
func (s stubSource) Available() (bool, string)     { return false, "eBPF is only supported on linux" }
func (s stubSource) Run(context.Context, func(events.Event)) error { return nil }

func newSyscallSource() Source   { return stubSource{"syscall"} }
func newPageFaultSource() Source { return stubSource{"pagefault"} }
func newSchedSource() Source     { return stubSource{"sched"} }
func newIOSource() Source        { return stubSource{"io"} }
