package task

import (
	"debug/elf"
	"fmt"

	"github.com/ulpatch/ulpatch/internal/arch"
)

// isaOf opens exePath just far enough to read e_machine and maps it onto
// the ISA names internal/arch registers encoders for.
func isaOf(exePath string) (arch.ISA, error) {
	f, err := elf.Open(exePath)
	if err != nil {
		return "", fmt.Errorf("task: open %s: %w", exePath, err)
	}
	defer f.Close()

	switch f.Machine {
	case elf.EM_X86_64:
		return arch.X86_64, nil
	case elf.EM_AARCH64:
		return arch.AArch64, nil
	default:
		return "", fmt.Errorf("task: unsupported machine %s in %s", f.Machine, exePath)
	}
}

// machineOf is isaOf's inverse, used by internal/patchobj.ParseLoadInfo's
// wantMachine argument so a patch object is validated against the same
// host machine the Task itself was opened for.
func machineOf(isa arch.ISA) (elf.Machine, error) {
	switch isa {
	case arch.X86_64:
		return elf.EM_X86_64, nil
	case arch.AArch64:
		return elf.EM_AARCH64, nil
	default:
		return 0, fmt.Errorf("task: no ELF machine mapping for ISA %q", isa)
	}
}
