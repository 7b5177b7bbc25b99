// Package rsyscall drives syscalls inside another process by splicing a
// syscall instruction into a known-executable byte range (the target's
// libc text) and single-stepping it via ptrace — the defining algorithm of
// §4.D. No teacher file does this (the teacher only emulates an address
// space in-process); the splice/restore ordering is grounded directly on
// spec §4.D's numbered steps, with the ptrace attach/resume/wait shape
// following internal/ptrace (itself grounded on the gvisor ptrace
// subprocess code in other_examples/).
package rsyscall

import (
	"fmt"
	"sync"

	"github.com/ulpatch/ulpatch/internal/arch"
	"github.com/ulpatch/ulpatch/internal/memio"
	"github.com/ulpatch/ulpatch/internal/ptrace"
	"github.com/ulpatch/ulpatch/internal/ulog"
)

// Session owns the splice site for one attached Task and serializes every
// remote syscall issued against it. Per spec §4.D, concurrent remote
// syscalls on the same target are prohibited; Session enforces that with a
// plain mutex rather than leaving callers to coordinate it themselves.
type Session struct {
	mu sync.Mutex

	ctrl    *ptrace.Control
	mem     *memio.Mem
	enc     arch.Encoder
	numbers Numbers
	log     *ulog.Logger

	// spliceAddr is A from spec §4.D: the start of the libc executable VMA.
	spliceAddr uint64
	saveLen    int
}

// New builds a Session. spliceAddr must be the start of an executable VMA
// guaranteed present by the Task construction invariant (libc's first
// executable VMA).
func New(ctrl *ptrace.Control, mem *memio.Mem, enc arch.Encoder, spliceAddr uint64, log *ulog.Logger) (*Session, error) {
	numbers, err := numbersFor(enc.ISA())
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = ulog.NewNop()
	}
	return &Session{
		ctrl:       ctrl,
		mem:        mem,
		enc:        enc,
		numbers:    numbers,
		log:        log,
		spliceAddr: spliceAddr,
		saveLen:    enc.ISA().MCOUNTSize(),
	}, nil
}

// Exec runs one remote syscall and returns its return value (the raw
// signed value from rax/x0 — callers interpret -errno themselves, as the
// kernel ABI does). Implements spec §4.D steps 2-9 in strict order: save
// registers, save bytes, write syscall insn, compose registers, set them,
// resume and wait, read back registers, then unconditionally restore bytes
// and registers before returning (success or failure alike).
func (s *Session) Exec(num uint64, args [6]uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	savedRegs, err := ptrace.GetRegs(s.ctrl.PID)
	if err != nil {
		return 0, fmt.Errorf("rsyscall: save registers: %w", err)
	}

	savedBytes, err := s.mem.ReadAt(s.spliceAddr, s.saveLen)
	if err != nil {
		return 0, fmt.Errorf("rsyscall: save splice-site bytes at 0x%x: %w", s.spliceAddr, err)
	}

	insn := s.enc.SyscallInsn()
	if len(insn) > s.saveLen {
		return 0, fmt.Errorf("rsyscall: syscall instruction (%d bytes) exceeds splice reservation (%d)", len(insn), s.saveLen)
	}
	if err := s.mem.Write(s.spliceAddr, insn); err != nil {
		return 0, fmt.Errorf("rsyscall: write syscall instruction at 0x%x: %w", s.spliceAddr, err)
	}

	// From here on, every exit path must restore bytes and registers
	// before returning — the byte-restore is unconditional cleanup per
	// spec step 9, regardless of what fails below.
	ret, execErr := s.doExec(savedRegs, num, args)

	restoreErr := s.restore(savedBytes, savedRegs)
	if execErr != nil {
		return 0, execErr
	}
	if restoreErr != nil {
		return 0, restoreErr
	}
	return ret, nil
}

func (s *Session) doExec(savedRegs ptrace.Registers, num uint64, args [6]uint64) (int64, error) {
	newRegs := savedRegs.Clone()
	newRegs.SetPC(s.spliceAddr)
	newRegs.ApplySyscall(arch.SyscallArgs{Num: num, Args: args})

	if err := ptrace.SetRegs(s.ctrl.PID, newRegs); err != nil {
		return 0, fmt.Errorf("rsyscall: set registers: %w", err)
	}
	s.log.Syscall(s.ctrl.PID, syscallName(num), args, 0, nil)

	if err := s.ctrl.WaitForStop(); err != nil {
		return 0, fmt.Errorf("rsyscall: wait for syscall stop: %w", err)
	}

	doneRegs, err := ptrace.GetRegs(s.ctrl.PID)
	if err != nil {
		return 0, fmt.Errorf("rsyscall: read back registers: %w", err)
	}
	ret := doneRegs.ReturnValue()
	s.log.Syscall(s.ctrl.PID, syscallName(num), args, ret, nil)
	return ret, nil
}

// restore combines the byte-restore and register-restore errors (both are
// attempted even if one of them fails) via ulog.CombineCleanup so a caller
// sees both failures instead of only the first.
func (s *Session) restore(savedBytes []byte, savedRegs ptrace.Registers) error {
	byteErr := s.mem.Write(s.spliceAddr, savedBytes)
	if byteErr != nil {
		byteErr = fmt.Errorf("rsyscall: restore splice-site bytes: %w", byteErr)
	}
	regErr := ptrace.SetRegs(s.ctrl.PID, savedRegs)
	if regErr != nil {
		regErr = fmt.Errorf("rsyscall: restore registers: %w", regErr)
	}
	return ulog.CombineCleanup(byteErr, regErr)
}

func syscallName(num uint64) string {
	return fmt.Sprintf("sys_%d", num)
}
