package task

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ulpatch/ulpatch/internal/install"
	"github.com/ulpatch/ulpatch/internal/operr"
	"github.com/ulpatch/ulpatch/internal/patchobj"
	"github.com/ulpatch/ulpatch/internal/verify"
)

// LoadPatch runs spec §2's full patch data-flow end to end against an
// already-open Task: G.load_patch -> D.mmap (via registry + Stage) ->
// G.resolve_externals -> G.apply_relocations -> H.install_branch. On any
// failure it unwinds per spec §4.H's STAGED/RELOCATED->UNLOADED paths
// before returning.
func (t *Task) LoadPatch(patchPath string, callSite uint64) (li *patchobj.LoadInfo, err error) {
	machine, err := machineOf(t.ISA)
	if err != nil {
		return nil, err
	}

	li, err = patchobj.ParseLoadInfo(patchPath, machine)
	if err != nil {
		return nil, err
	}

	if t.Verify {
		if err := t.verifyReplacementFunc(li); err != nil {
			return nil, err
		}
	}

	if t.Reg == nil {
		return nil, fmt.Errorf("task: pid %d was not opened with RegisterOnDisk", t.PID)
	}
	registryPath, err := t.Reg.Register(li.Raw)
	if err != nil {
		return nil, err
	}

	if err := li.Stage(t.RSys, t.Mem, registryPath); err != nil {
		_ = t.Reg.Remove(registryPath)
		return nil, err
	}

	if t.Syms == nil {
		_ = li.Unstage(t.RSys)
		_ = t.Reg.Remove(registryPath)
		return nil, fmt.Errorf("task: pid %d was not opened with symbol loading enabled", t.PID)
	}
	if err := li.ResolveExternals(t.Syms, t.VMAs); err != nil {
		_ = li.Unstage(t.RSys)
		_ = t.Reg.Remove(registryPath)
		return nil, err
	}

	if err := li.ApplyRelocations(t.Mem, t.ISA); err != nil {
		_ = li.Unstage(t.RSys)
		_ = t.Reg.Remove(registryPath)
		return nil, err
	}

	dst, err := li.NewFuncAddr()
	if err != nil {
		_ = li.Unstage(t.RSys)
		_ = t.Reg.Remove(registryPath)
		return nil, err
	}
	if err := install.Install(t.Mem, t.VMAs, t.Enc, li, callSite, dst); err != nil {
		if unwindErr := install.UnwindPartialInstall(t.Mem, li); unwindErr != nil {
			t.log.Warn("install unwind also failed", zap.Error(unwindErr))
		}
		_ = li.Unstage(t.RSys)
		_ = t.Reg.Remove(registryPath)
		return nil, err
	}

	if err := patchobj.Transition(li.State, patchobj.Active); err != nil {
		return nil, err
	}
	li.State = patchobj.Active
	return li, nil
}

// verifyReplacementFunc runs the patch's replacement function through an
// isolated Unicorn sandbox before anything is staged into the real target,
// called with all-zero arguments: it cannot know the real call site's
// calling convention, so this only catches a function that crashes or
// runs away regardless of its inputs. Any call made to an unresolved
// external symbol dereferences unrelocated placeholder bytes, so even a
// correct patch can fault there, and that fault aborts LoadPatch like any
// other — this is a best-effort
// smoke check, not a proof of correctness, per spec §1's non-goal.
func (t *Task) verifyReplacementFunc(li *patchobj.LoadInfo) error {
	code, _, err := li.ReplacementFuncBytes()
	if err != nil {
		return err
	}
	rep, err := verify.RunFunction(t.ISA, code, 0, make([]uint64, 6))
	if err != nil {
		return fmt.Errorf("task: verify %s: %w", li.TargetFunc(), err)
	}
	if !rep.ReturnedNormally {
		return operr.Wrap(operr.Input, li.Path,
			fmt.Errorf("replacement function %s faulted in sandbox at pc=0x%x after %d instructions: %v",
				li.TargetFunc(), rep.FaultAddr, rep.InstructionsExecuted, rep.FaultErr))
	}
	t.log.Debug("verify passed", zap.String("func", li.TargetFunc()), zap.Int("instructions", rep.InstructionsExecuted))
	return nil
}

// RemovePatch reverses LoadPatch: restore call sites (H.Remove),
// remote_munmap the staged image, and remove the registry entry.
// Implements spec §4.H's ACTIVE->UNLOADED delete_patch.
func (t *Task) RemovePatch(li *patchobj.LoadInfo) error {
	if err := patchobj.Transition(li.State, patchobj.Detaching); err != nil {
		return err
	}
	if err := install.Remove(t.Mem, t.Enc, li); err != nil {
		return err
	}
	li.State = patchobj.Detaching
	if err := li.Unstage(t.RSys); err != nil {
		return err
	}
	if t.Reg != nil {
		if err := t.Reg.Remove(li.PatchFilepathInRegistry); err != nil {
			return err
		}
	}
	return nil
}
