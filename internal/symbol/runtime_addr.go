package symbol

import (
	"fmt"

	"github.com/ulpatch/ulpatch/internal/vma"
)

// RuntimeAddr computes symbol_runtime_addr (§4.F): where sym actually lives
// in the target's address space right now, as opposed to its link-time
// st_value.
//
//   - Non-shared (the owning leader is the target's own non-PIE executable,
//     or any mapping whose ELF info says IsSharedLibrary == false): the
//     runtime address is st_value as-is.
//   - Shared library: walk the sibling VMAs of the owning leader's group in
//     order and find the one whose Offset is <= st_value and whose
//     successor's Offset is > st_value (or which has no successor in the
//     group); addr = sibling.Start + (st_value - sibling.Offset). This is
//     what accounts for a library's multiple PT_LOAD segments landing in
//     separate, non-contiguous VMAs.
func RuntimeAddr(sym Symbol, set *vma.Set) (uint64, error) {
	if sym.OwningLeaderIndex < 0 || sym.OwningLeaderIndex >= set.Len() {
		return 0, fmt.Errorf("symbol: %q has invalid owning leader index %d", sym.Name, sym.OwningLeaderIndex)
	}
	leader := set.At(sym.OwningLeaderIndex)

	shared := leader.ELF != nil && leader.ELF.IsSharedLibrary
	// vdso carries no on-disk path and is always position-independent;
	// treat it as shared so its load_offset is honored per spec.
	if leader.Class == vma.VDSO {
		shared = true
	}
	if !shared {
		return sym.Sym.Value, nil
	}

	siblings := siblingsOf(set, sym.OwningLeaderIndex)
	for i, sib := range siblings {
		var nextOffset uint64 = ^uint64(0)
		if i+1 < len(siblings) {
			nextOffset = siblings[i+1].Offset
		}
		if sym.Sym.Value >= sib.Offset && sym.Sym.Value < nextOffset {
			return sib.Start + (sym.Sym.Value - sib.Offset), nil
		}
	}
	return 0, fmt.Errorf("symbol: %q (st_value 0x%x) matches no segment of %s", sym.Name, sym.Sym.Value, leader.Path)
}

// siblingsOf returns every VMA in set whose LeaderIndex is leaderIndex, in
// address order (the order they already appear in the Set).
func siblingsOf(set *vma.Set, leaderIndex int) []vma.VMA {
	var out []vma.VMA
	for i := 0; i < set.Len(); i++ {
		if v := set.At(i); v.LeaderIndex == leaderIndex {
			out = append(out, v)
		}
	}
	return out
}
