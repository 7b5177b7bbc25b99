package patchobj

import (
	"debug/elf"
	"fmt"

	"github.com/ulpatch/ulpatch/internal/operr"
	"github.com/ulpatch/ulpatch/internal/symbol"
	"github.com/ulpatch/ulpatch/internal/vma"
)

// ResolveExternals looks up every undefined symbol the patch references
// against the Task's symbol index and records its runtime address.
// Implements spec §4.G step 3: unresolved symbols are fatal, so this
// collects every miss before returning rather than failing on the first.
func (li *LoadInfo) ResolveExternals(idx *symbol.Index, set *vma.Set) error {
	syms, err := li.file.Symbols()
	if err != nil {
		return fmt.Errorf("patchobj: read .symtab of %s: %w", li.Path, err)
	}

	var missing []string
	for _, s := range syms {
		if s.Section != elf.SHN_UNDEF || s.Name == "" {
			continue
		}
		sym, ok := idx.Lookup(s.Name)
		if !ok {
			missing = append(missing, s.Name)
			continue
		}
		addr, err := symbol.RuntimeAddr(sym, set)
		if err != nil {
			missing = append(missing, fmt.Sprintf("%s (%v)", s.Name, err))
			continue
		}
		li.Resolved[s.Name] = addr
	}
	if len(missing) > 0 {
		return operr.Wrap(operr.Relocation, li.Path,
			fmt.Errorf("%d unresolved external symbol(s): %v", len(missing), missing))
	}
	return nil
}
