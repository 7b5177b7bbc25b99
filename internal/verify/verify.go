// Package verify implements an opt-in dry-run check: before a patch is
// installed into a live target, single-step its replacement function in
// an isolated Unicorn Engine sandbox and report whether it ran to
// completion without faulting. This is explicitly NOT part of the core
// per spec §1's non-goals ("the core does not verify that a patch
// preserves ABI/semantics") — it is a best-effort sanity check a caller
// may run before committing to Task.LoadPatch, not a guarantee.
//
// Grounded on the teacher's internal/emulator/emulator.go Unicorn usage
// (map memory regions, seed SP, HookAdd(HOOK_CODE), mu.Start), stripped
// of everything specific to emulating a mobile binary against a mocked
// libc/JNI/C++ runtime: no mock objects, no stub table, no HIPAA
// compliance layer. What's kept is the shape (map code+stack, seed
// registers, run, count instructions, detect faults) generalized from
// ARM64-only to both ISAs spec.md targets.
package verify

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/ulpatch/ulpatch/internal/arch"
)

const (
	codeBase  = 0x0001_0000
	codeSize  = 0x0010_0000 // 1 MiB, comfortably above any realistic patch body
	stackBase = 0x8000_0000
	stackSize = 0x0010_0000
	// sentinelRA is the return address pushed/loaded before entry and the
	// stop address given to mu.Start: reaching it without a fault means the
	// function returned normally. Nothing is mapped there to execute.
	sentinelRA = 0xdead0000
)

// Report summarizes one dry run.
type Report struct {
	InstructionsExecuted int
	ReturnedNormally     bool
	FaultAddr            uint64
	FaultErr             error
}

// RunFunction maps code at codeBase, seeds SP/link-register-equivalent to
// sentinelRA, and single-steps from the function's offset within code
// until it returns (PC reaches sentinelRA) or faults. args are placed in
// the ISA's first argument registers.
func RunFunction(isa arch.ISA, code []byte, entryOffset uint64, args []uint64) (*Report, error) {
	ucArch, ucMode, err := unicornTarget(isa)
	if err != nil {
		return nil, err
	}

	mu, err := uc.NewUnicorn(ucArch, ucMode)
	if err != nil {
		return nil, fmt.Errorf("verify: create unicorn: %w", err)
	}
	defer mu.Close()

	if err := mu.MemMap(codeBase, codeSize); err != nil {
		return nil, fmt.Errorf("verify: map code: %w", err)
	}
	if err := mu.MemMap(stackBase, stackSize); err != nil {
		return nil, fmt.Errorf("verify: map stack: %w", err)
	}
	if err := mu.MemWrite(codeBase, code); err != nil {
		return nil, fmt.Errorf("verify: write code: %w", err)
	}

	if err := seedRegisters(mu, isa, args); err != nil {
		return nil, err
	}

	rep := &Report{}
	hookID, err := mu.HookAdd(uc.HOOK_CODE, func(_ uc.Unicorn, addr uint64, size uint32) {
		rep.InstructionsExecuted++
	}, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("verify: install code hook: %w", err)
	}
	defer mu.HookDel(hookID)

	entry := codeBase + entryOffset
	startErr := mu.Start(entry, sentinelRA)
	if startErr != nil {
		rep.FaultErr = startErr
		pc, _ := readPC(mu, isa)
		rep.FaultAddr = pc
		return rep, nil
	}
	rep.ReturnedNormally = true
	return rep, nil
}

func unicornTarget(isa arch.ISA) (int, int, error) {
	switch isa {
	case arch.X86_64:
		return uc.ARCH_X86, uc.MODE_64, nil
	case arch.AArch64:
		return uc.ARCH_ARM64, uc.MODE_ARM, nil
	default:
		return 0, 0, fmt.Errorf("verify: no Unicorn mapping for ISA %q", isa)
	}
}

func seedRegisters(mu uc.Unicorn, isa arch.ISA, args []uint64) error {
	sp := uint64(stackBase + stackSize - 0x1000)
	switch isa {
	case arch.X86_64:
		if err := mu.RegWrite(uc.X86_REG_RSP, sp); err != nil {
			return err
		}
		// Push the sentinel return address the CALL ABI expects at [rsp].
		retBuf := make([]byte, 8)
		for i := range retBuf {
			retBuf[i] = byte(sentinelRA >> (8 * i))
		}
		sp -= 8
		if err := mu.MemWrite(sp, retBuf); err != nil {
			return err
		}
		if err := mu.RegWrite(uc.X86_REG_RSP, sp); err != nil {
			return err
		}
		regs := []int{uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX, uc.X86_REG_RCX, uc.X86_REG_R8, uc.X86_REG_R9}
		return writeArgs(mu, regs, args)
	case arch.AArch64:
		if err := mu.RegWrite(uc.ARM64_REG_SP, sp); err != nil {
			return err
		}
		if err := mu.RegWrite(uc.ARM64_REG_LR, sentinelRA); err != nil {
			return err
		}
		regs := []int{uc.ARM64_REG_X0, uc.ARM64_REG_X1, uc.ARM64_REG_X2, uc.ARM64_REG_X3, uc.ARM64_REG_X4, uc.ARM64_REG_X5}
		return writeArgs(mu, regs, args)
	default:
		return fmt.Errorf("verify: no register ABI for ISA %q", isa)
	}
}

func writeArgs(mu uc.Unicorn, regs []int, args []uint64) error {
	for i, v := range args {
		if i >= len(regs) {
			break
		}
		if err := mu.RegWrite(regs[i], v); err != nil {
			return fmt.Errorf("verify: seed argument register %d: %w", i, err)
		}
	}
	return nil
}

func readPC(mu uc.Unicorn, isa arch.ISA) (uint64, error) {
	switch isa {
	case arch.X86_64:
		return mu.RegRead(uc.X86_REG_RIP)
	case arch.AArch64:
		return mu.RegRead(uc.ARM64_REG_PC)
	default:
		return 0, fmt.Errorf("verify: no PC register for ISA %q", isa)
	}
}
