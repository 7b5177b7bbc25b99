//go:build arm64 && linux

package ptrace

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ulpatch/ulpatch/internal/arch"
)

// arm64Regs wraps unix.PtraceRegsArm64, fetched and stored via
// PTRACE_GETREGSET/PTRACE_SETREGSET(NT_PRSTATUS) per spec for aarch64.
type arm64Regs struct {
	raw unix.PtraceRegsArm64
}

// ntPrstatus is elf.NT_PRSTATUS; duplicated here to avoid pulling in
// debug/elf (and its compress/zlib, debug/dwarf transitive weight) for one
// constant, the same tradeoff golang.org/x/sys/unix itself makes
// internally for its generic PtraceGetRegs helper.
const ntPrstatus = 1

func getRegs(pid int) (Registers, error) {
	var r arm64Regs
	if err := unix.PtraceGetRegSetArm64(pid, ntPrstatus, &r.raw); err != nil {
		return nil, fmt.Errorf("ptrace getregset %d: %w", pid, err)
	}
	return &r, nil
}

func setRegs(pid int, regs Registers) error {
	r, ok := regs.(*arm64Regs)
	if !ok {
		return fmt.Errorf("ptrace setregset %d: wrong register type for arm64", pid)
	}
	if err := unix.PtraceSetRegSetArm64(pid, ntPrstatus, &r.raw); err != nil {
		return fmt.Errorf("ptrace setregset %d: %w", pid, err)
	}
	return nil
}

func (r *arm64Regs) PC() uint64         { return r.raw.Pc }
func (r *arm64Regs) SetPC(v uint64)     { r.raw.Pc = v }
func (r *arm64Regs) ReturnValue() int64 { return int64(r.raw.Regs[0]) }

func (r *arm64Regs) ApplySyscall(s arch.SyscallArgs) {
	r.raw.Regs[8] = s.Num
	for i := 0; i < 6; i++ {
		r.raw.Regs[i] = s.Args[i]
	}
}

func (r *arm64Regs) Clone() Registers {
	cp := *r
	return &cp
}
