//go:build linux

package tracer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"golang.org/x/sys/unix"
)

// bpfDirEnv names the directory a deployment drops its compiled probe
// objects into. KernelSight ships the Go binary and the CO-RE .o files
// separately (per §11.1's "thin wrapper" framing, the BPF C source and
// its bpf2go build step live outside this module) — a missing object is
// the common case on a host without the probe packs installed, and must
// degrade the same way a missing BTF file does (§11.8), not crash.
const bpfDirEnv = "KERNELSIGHT_BPF_DIR"

const defaultBPFDir = "/usr/lib/kernelsight/bpf"

func bpfObjectPath(name string) string {
	dir := os.Getenv(bpfDirEnv)
	if dir == "" {
		dir = defaultBPFDir
	}
	return filepath.Join(dir, name+".o")
}

// attachSpec names the tracepoint or kprobe a loaded program attaches to,
// and the program/ring-buffer-map names inside the object that implement
// it.
type attachSpec struct {
	objectName string // <name>.o under KERNELSIGHT_BPF_DIR
	progName   string // program name inside the object's SEC()
	mapName    string // BPF_MAP_TYPE_RINGBUF map holding emitted records
	tp         tracepointRef
	kprobe     string // kernel symbol, if this attaches via kprobe instead
}

type tracepointRef struct {
	group string
	name  string
}

// bpfProbe is one attached eBPF program plus its ring buffer reader. It
// owns every kernel-side resource the probe holds and releases all of
// them on close.
type bpfProbe struct {
	coll   *ebpf.Collection
	link   link.Link
	reader *ringbuf.Reader
}

// available reports whether this probe's object file exists without
// attempting to load it — used by Source.Available() so an unattached
// probe is reported with a precise, actionable reason.
func (s attachSpec) available(cap Capability) (bool, string) {
	if !cap.Available {
		return false, cap.Reason
	}
	path := bpfObjectPath(s.objectName)
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Sprintf("probe object not installed: %s", path)
	}
	return true, ""
}

var removeMemlockOnce sync.Once

// removeMemlockRlimit lifts RLIMIT_MEMLOCK before the first eBPF load —
// pre-5.11 kernels charge map allocations against it, and the default
// limit is too low for anything but a single small probe.
func removeMemlockRlimit() error {
	var rlimitErr error
	removeMemlockOnce.Do(func() {
		rlimitErr = unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY})
	})
	return rlimitErr
}

func attachBPFProbe(s attachSpec) (*bpfProbe, error) {
	if err := removeMemlockRlimit(); err != nil {
		return nil, fmt.Errorf("remove memlock rlimit: %w", err)
	}
	path := bpfObjectPath(s.objectName)
	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", path, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", path, err)
	}

	prog, ok := coll.Programs[s.progName]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("program %q not found in %s", s.progName, path)
	}
	m, ok := coll.Maps[s.mapName]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("map %q not found in %s", s.mapName, path)
	}

	var l link.Link
	if s.kprobe != "" {
		l, err = link.Kprobe(s.kprobe, prog, nil)
	} else {
		l, err = link.Tracepoint(s.tp.group, s.tp.name, prog, nil)
	}
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("attach %s: %w", s.progName, err)
	}

	rd, err := ringbuf.NewReader(m)
	if err != nil {
		l.Close()
		coll.Close()
		return nil, fmt.Errorf("open ring buffer %s: %w", s.mapName, err)
	}

	return &bpfProbe{coll: coll, link: l, reader: rd}, nil
}

func (p *bpfProbe) close() {
	p.reader.Close()
	p.link.Close()
	p.coll.Close()
}
