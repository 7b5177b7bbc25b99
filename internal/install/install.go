// Package install implements spec §4.H's patch install/remove algorithm:
// deciding between a direct branch and a far-jump trampoline, poking the
// bytes, and recording enough to reverse every installed call site.
// Grounded on the teacher's ISA-dispatched instruction poking (the same
// arch.Encoder capability set internal/rsyscall composes), generalized
// from "replace one traced function's prologue" to "replace an arbitrary
// call site with a branch into a staged patch image, falling back to a
// trampoline when the direct reach is exceeded."
package install

import (
	"fmt"

	"github.com/ulpatch/ulpatch/internal/arch"
	"github.com/ulpatch/ulpatch/internal/memio"
	"github.com/ulpatch/ulpatch/internal/patchobj"
	"github.com/ulpatch/ulpatch/internal/vma"
)

// Install replaces the instruction(s) at callSite with a branch to dst,
// using a direct call/jmp when it's in reach and a trampoline otherwise.
// Implements spec §4.H's install flow, appending a CallSiteRecord to li so
// Remove can reverse exactly what was overwritten.
func Install(mem *memio.Mem, set *vma.Set, enc arch.Encoder, li *patchobj.LoadInfo, callSite, dst uint64) error {
	mcountSize := enc.ISA().MCOUNTSize()

	original, err := mem.ReadAt(callSite, mcountSize)
	if err != nil {
		return fmt.Errorf("install: read original bytes at 0x%x: %w", callSite, err)
	}
	origCopy := append([]byte(nil), original...)

	insn, directErr := enc.EncodeCall(callSite, dst)
	if directErr == nil {
		if err := poke(mem, callSite, insn, mcountSize); err != nil {
			return err
		}
		li.CallSites = append(li.CallSites, patchobj.CallSiteRecord{
			CallSite:      callSite,
			OriginalBytes: origCopy,
		})
		return nil
	}

	trampolineAddr, err := allocateTrampoline(mem, set, enc, dst)
	if err != nil {
		return fmt.Errorf("install: direct branch out of reach (%v) and trampoline allocation failed: %w", directErr, err)
	}

	branch, err := enc.EncodeJmp(callSite, trampolineAddr)
	if err != nil {
		return fmt.Errorf("install: trampoline at 0x%x still out of reach from call site 0x%x: %w", trampolineAddr, callSite, err)
	}
	if err := poke(mem, callSite, branch, mcountSize); err != nil {
		return err
	}

	li.CallSites = append(li.CallSites, patchobj.CallSiteRecord{
		CallSite:       callSite,
		OriginalBytes:  origCopy,
		TrampolineAddr: trampolineAddr,
	})
	return nil
}

// allocateTrampoline finds a free span near the existing mapped address
// space (spec §4.E find_span) and pokes a self-contained jump-table entry
// there that lands unconditionally on dst.
func allocateTrampoline(mem *memio.Mem, set *vma.Set, enc arch.Encoder, dst uint64) (uint64, error) {
	size := uint64(enc.ISA().JumpTableEntrySize())
	addr, ok := set.FindSpan(size)
	if !ok {
		return 0, fmt.Errorf("install: no free span of %d bytes found", size)
	}
	entry := enc.EncodeJumpTableEntry(dst)
	if err := mem.Write(addr, entry); err != nil {
		return 0, fmt.Errorf("install: write jump table entry at 0x%x: %w", addr, err)
	}
	return addr, nil
}

// poke validates the encoded branch fits the reserved call-site width
// before writing it; a too-long encoding would spill into the following
// instruction.
func poke(mem *memio.Mem, addr uint64, insn []byte, mcountSize int) error {
	if len(insn) > mcountSize {
		return fmt.Errorf("install: encoded branch is %d bytes, call site only reserves %d", len(insn), mcountSize)
	}
	if err := mem.Write(addr, insn); err != nil {
		return fmt.Errorf("install: write branch at 0x%x: %w", addr, err)
	}
	return nil
}

// Remove restores every call site li recorded, in reverse install order,
// and zeros any trampoline that was allocated. Implements spec §4.H's
// ACTIVE->UNLOADED delete_patch unwind.
func Remove(mem *memio.Mem, enc arch.Encoder, li *patchobj.LoadInfo) error {
	var firstErr error
	for i := len(li.CallSites) - 1; i >= 0; i-- {
		cs := li.CallSites[i]
		if err := mem.Write(cs.CallSite, cs.OriginalBytes); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("install: restore call site 0x%x: %w", cs.CallSite, err)
			}
			continue
		}
		if cs.TrampolineAddr != 0 {
			zero := make([]byte, enc.ISA().JumpTableEntrySize())
			if err := mem.Write(cs.TrampolineAddr, zero); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("install: zero trampoline at 0x%x: %w", cs.TrampolineAddr, err)
			}
		}
	}
	li.CallSites = nil
	return firstErr
}

// UnwindPartialInstall restores every call site already patched, in
// reverse order, with saved originals. Implements spec §4.H's
// RELOCATED->UNLOADED on-install-failure unwind: the caller is expected to
// remote_munmap the staged image separately (internal/patchobj.Unstage),
// since that is a property of the patch object, not of install bookkeeping.
func UnwindPartialInstall(mem *memio.Mem, li *patchobj.LoadInfo) error {
	var firstErr error
	for i := len(li.CallSites) - 1; i >= 0; i-- {
		cs := li.CallSites[i]
		if err := mem.Write(cs.CallSite, cs.OriginalBytes); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("install: unwind call site 0x%x: %w", cs.CallSite, err)
		}
	}
	li.CallSites = nil
	return firstErr
}
