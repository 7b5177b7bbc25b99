// Package task implements spec §3's Task: the handle tying together
// everything attached to one target PID — ptrace control, memory I/O, the
// VMA model, the symbol index, the remote-syscall session, and (if
// requested) the on-disk patch registry. Grounded on the teacher's
// top-level attach/detach orchestration shape, generalized from one
// in-process Unicorn emulator instance to one real ptrace-attached
// external process.
package task

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ulpatch/ulpatch/internal/arch"
	"github.com/ulpatch/ulpatch/internal/memio"
	"github.com/ulpatch/ulpatch/internal/operr"
	"github.com/ulpatch/ulpatch/internal/ptrace"
	"github.com/ulpatch/ulpatch/internal/registry"
	"github.com/ulpatch/ulpatch/internal/rsyscall"
	"github.com/ulpatch/ulpatch/internal/symbol"
	"github.com/ulpatch/ulpatch/internal/ulog"
	"github.com/ulpatch/ulpatch/internal/vma"
)

// Flags is the open_target capability set from spec §3.
type Flags uint32

const (
	RDWR Flags = 1 << iota
	LoadSelfELF
	LoadLibcELF
	LoadVMAs
	LoadVMAELFs
	LoadSymbols
	RegisterOnDisk
)

// Has reports whether every bit in want is set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Task represents one attached process: spec §3's Target.
type Task struct {
	PID     int
	Comm    string
	ExePath string
	ISA     arch.ISA

	Ctrl  *ptrace.Control
	Mem   *memio.Mem
	VMAs  *vma.Set
	Syms  *symbol.Index
	RSys  *rsyscall.Session
	Enc   arch.Encoder
	Reg   *registry.Registry
	Flags Flags

	// Verify gates an internal/verify sandbox dry run of a patch's
	// replacement function before it is staged into the target. Off by
	// default since spec §1 treats ABI/semantic preservation as the
	// patch author's responsibility, not something the core verifies.
	Verify bool

	log *ulog.Logger
}

// OpenTarget attaches to pid and builds every subsystem flags requests.
// Implements spec §3's open_target: PTRACE_ATTACH, read /proc/<pid>/maps,
// locate libc's first executable VMA and the stack VMA (required for remote syscalls —
// failing to find either aborts construction per the lifecycle
// invariant), optionally load symbols, optionally open the on-disk
// registry.
func OpenTarget(pid int, flags Flags, registryRoot string, log *ulog.Logger) (t *Task, err error) {
	if log == nil {
		log = ulog.NewNop()
	}

	comm, err := readComm(pid)
	if err != nil {
		return nil, err
	}
	exePath, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return nil, fmt.Errorf("task: resolve exe of pid %d: %w", pid, err)
	}

	ctrl, err := ptrace.Attach(pid)
	if err != nil {
		return nil, operr.Wrap(operr.Permission, fmt.Sprintf("pid %d", pid), fmt.Errorf("attach: %w", err))
	}
	log.Attach(pid, exePath)

	var cleanup []func()
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()
	cleanup = append(cleanup, func() {
		_ = ctrl.Detach()
		log.Detach(pid, "construction failed")
	})

	mem := memio.Open(pid)
	cleanup = append(cleanup, func() { _ = mem.Close() })

	isa, err := isaOf(exePath)
	if err != nil {
		return nil, err
	}
	enc, err := arch.For(isa)
	if err != nil {
		return nil, err
	}

	if !flags.Has(LoadVMAs) {
		return nil, fmt.Errorf("task: LoadVMAs is required (remote syscall injection needs the libc/stack VMAs)")
	}
	set, err := vma.ReadMaps(pid, exePath)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}

	var libc vma.VMA
	libcFound := false
	for i := 0; i < set.Len(); i++ {
		if v := set.At(i); v.Class == vma.LIBC && v.Perms.Exec {
			libc, libcFound = v, true
			break
		}
	}
	if !libcFound {
		return nil, operr.Wrap(operr.TargetState, fmt.Sprintf("pid %d", pid),
			fmt.Errorf("no executable libc VMA found, cannot splice remote syscalls"))
	}
	if _, _, ok := findClass(set, vma.STACK); !ok {
		return nil, operr.Wrap(operr.TargetState, fmt.Sprintf("pid %d", pid),
			fmt.Errorf("no stack VMA found"))
	}

	rsess, err := rsyscall.New(ctrl, mem, enc, libc.Start, log)
	if err != nil {
		return nil, operr.Wrap(operr.RemoteSyscall, fmt.Sprintf("pid %d", pid), err)
	}

	t = &Task{
		PID:     pid,
		Comm:    comm,
		ExePath: exePath,
		ISA:     isa,
		Ctrl:    ctrl,
		Mem:     mem,
		VMAs:    set,
		RSys:    rsess,
		Enc:     enc,
		Flags:   flags,
		log:     log,
	}

	if flags.Has(LoadSelfELF) || flags.Has(LoadLibcELF) || flags.Has(LoadSymbols) {
		mask := symbol.LoadMask{
			Self:   flags.Has(LoadSelfELF),
			Libc:   flags.Has(LoadLibcELF),
			Others: flags.Has(LoadSymbols),
		}
		idx, warnings := symbol.LoadAll(exePath, mem, set, mask, func(name string, kept, dropped symbol.Symbol) {
			log.Debug("symbol conflict",
				zap.String("name", name),
				zap.Uint64("kept_value", kept.Sym.Value),
				zap.Uint64("dropped_value", dropped.Sym.Value))
		})
		for _, w := range warnings {
			log.Warn("symbol load warning", zap.Error(w))
		}
		t.Syms = idx
	}

	if flags.Has(RegisterOnDisk) {
		if registryRoot == "" {
			registryRoot = registryDefaultRoot()
		}
		reg, rerr := registry.Open(registryRoot, pid, comm)
		if rerr != nil {
			return nil, fmt.Errorf("task: %w", rerr)
		}
		t.Reg = reg
		cleanup = append(cleanup, func() { _ = reg.Close() })
	}

	return t, nil
}

// CloseTarget detaches from the target. Implements spec §3's
// close_target. It does not remove the on-disk registry: patches may
// still be registered and outlive this attach cycle, per spec §4.I's
// "advisory, tolerant of stale entries" posture; callers that know no
// patches remain active should call Task.Reg.Close() explicitly.
func CloseTarget(t *Task) error {
	if err := t.Ctrl.Detach(); err != nil {
		return fmt.Errorf("task: detach %d: %w", t.PID, err)
	}
	t.log.Detach(t.PID, "close_target")
	return t.Mem.Close()
}

// UpdateVMAs implements spec §4.E's update_vmas: rereads
// /proc/<pid>/maps and rebuilds the VMA set after a remote mmap/munmap,
// preserving no pointers across the rebuild.
func (t *Task) UpdateVMAs() error {
	set, err := vma.UpdateVMAs(t.PID, t.ExePath)
	if err != nil {
		return fmt.Errorf("task: %w", err)
	}
	t.VMAs = set
	return nil
}

func findClass(set *vma.Set, class vma.Class) (vma.VMA, int, bool) {
	for i := 0; i < set.Len(); i++ {
		v := set.At(i)
		if v.Class == class {
			return v, i, true
		}
	}
	return vma.VMA{}, 0, false
}

func readComm(pid int) (string, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", fmt.Errorf("task: read comm of pid %d: %w", pid, err)
	}
	return trimNewline(string(b)), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func registryDefaultRoot() string {
	return filepath.Join(os.TempDir(), "ulpatch")
}
