package rsyscall

import (
	"fmt"

	"github.com/ulpatch/ulpatch/internal/arch"
)

func errUnknownISA(isa arch.ISA) error {
	return fmt.Errorf("rsyscall: no syscall number table for ISA %q", isa)
}
