//go:build linux

package ptrace

import "github.com/ulpatch/ulpatch/internal/arch"

// Registers is the portable view over one architecture's GPR file. The
// concrete type (regs_amd64.go / regs_arm64.go) wraps the matching
// golang.org/x/sys/unix ptrace register struct field-for-field, so
// save/restore round-trips caller-saved and callee-saved registers alike.
type Registers interface {
	// PC returns the instruction pointer.
	PC() uint64
	// SetPC sets the instruction pointer.
	SetPC(uint64)
	// ReturnValue returns the ABI return-value register (rax / x0), read
	// after a syscall steps once.
	ReturnValue() int64
	// ApplySyscall overwrites the ABI syscall-number and argument registers,
	// leaving every other register untouched.
	ApplySyscall(s arch.SyscallArgs)
	// Clone returns a deep copy, used to snapshot the pre-splice state
	// before composing the syscall register set.
	Clone() Registers
}

// GetRegs reads the tracee's current GPR file.
func GetRegs(pid int) (Registers, error) {
	return getRegs(pid)
}

// SetRegs writes r back into the tracee.
func SetRegs(pid int, r Registers) error {
	return setRegs(pid, r)
}
