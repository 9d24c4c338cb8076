package tracer

import "os"

// Capability describes what eBPF probing this host supports, mirroring
// collector/ebpf/detect.go's Detect(): CO-RE needs kernel BTF, and
// attaching any tracepoint/kprobe program needs root. The eBPF sources
// consult this in Available(), before Run is ever called (§11.8's
// "capability detection / graceful probe degradation"); the procfs
// snapshot sources do not.
type Capability struct {
	BTF     bool
	Root    bool
	Reason  string // set only when Available is false
	Available bool
}

const btfPath = "/sys/kernel/btf/vmlinux"

// DetectCapability probes BTF presence and effective UID once; every
// eBPF Source shares the result rather than re-statting the filesystem
// per source.
func DetectCapability() Capability {
	cap := Capability{}

	if _, err := os.Stat(btfPath); err == nil {
		cap.BTF = true
	}
	cap.Root = os.Geteuid() == 0

	switch {
	case !cap.BTF:
		cap.Reason = "kernel BTF not available (" + btfPath + " missing)"
	case !cap.Root:
		cap.Reason = "root privileges required for eBPF probes"
	default:
		cap.Available = true
	}
	return cap
}
