//go:build amd64 && linux

package ptrace

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ulpatch/ulpatch/internal/arch"
)

// amd64Regs wraps unix.PtraceRegsAmd64, fetched and stored via
// PTRACE_GETREGS/PTRACE_SETREGS per spec for the x86-64 ISA.
type amd64Regs struct {
	raw unix.PtraceRegsAmd64
}

func getRegs(pid int) (Registers, error) {
	var r amd64Regs
	if err := unix.PtraceGetRegsAmd64(pid, &r.raw); err != nil {
		return nil, fmt.Errorf("ptrace getregs %d: %w", pid, err)
	}
	return &r, nil
}

func setRegs(pid int, regs Registers) error {
	r, ok := regs.(*amd64Regs)
	if !ok {
		return fmt.Errorf("ptrace setregs %d: wrong register type for amd64", pid)
	}
	if err := unix.PtraceSetRegsAmd64(pid, &r.raw); err != nil {
		return fmt.Errorf("ptrace setregs %d: %w", pid, err)
	}
	return nil
}

func (r *amd64Regs) PC() uint64     { return r.raw.Rip }
func (r *amd64Regs) SetPC(v uint64) { r.raw.Rip = v }
func (r *amd64Regs) ReturnValue() int64 {
	return int64(r.raw.Rax)
}

func (r *amd64Regs) ApplySyscall(s arch.SyscallArgs) {
	m := map[string]*uint64{
		"rax": &r.raw.Rax,
		"rdi": &r.raw.Rdi,
		"rsi": &r.raw.Rsi,
		"rdx": &r.raw.Rdx,
		"r10": &r.raw.R10,
		"r8":  &r.raw.R8,
		"r9":  &r.raw.R9,
	}
	for reg, val := range x86SyscallMap(s) {
		*m[reg] = val
	}
}

func (r *amd64Regs) Clone() Registers {
	cp := *r
	return &cp
}

// x86SyscallMap mirrors arch/x86_64's Encoder.SyscallRegisterMap without
// importing that package directly: the register-name-to-ABI-role mapping
// is a property of the x86-64 syscall calling convention, not of the
// instruction encoder, so this package owns its own copy.
func x86SyscallMap(s arch.SyscallArgs) map[string]uint64 {
	return map[string]uint64{
		"rax": s.Num,
		"rdi": s.Args[0],
		"rsi": s.Args[1],
		"rdx": s.Args[2],
		"r10": s.Args[3],
		"r8":  s.Args[4],
		"r9":  s.Args[5],
	}
}
