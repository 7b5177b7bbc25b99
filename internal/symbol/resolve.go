package symbol

import (
	"github.com/ulpatch/ulpatch/internal/memio"
	"github.com/ulpatch/ulpatch/internal/vma"
)

// LoadMask selects which leader-VMA classes LoadAll actually loads symbols
// from, matching spec §3's three independent capability bits: a caller that
// only sets Self gets the on-disk executable's own symbols and nothing
// else; Libc gates the libc leader alone; Others gates every remaining
// shared-library class (LD, LIBELF, LIB_UNKNOWN, VDSO) as a group, since
// the spec names no finer-grained bit for them.
type LoadMask struct {
	Self   bool
	Libc   bool
	Others bool
}

// LoadAll builds a Task's symbol index, restricted to the classes mask
// selects: the on-disk self ELF via LoadSelfELF, the libc leader's and
// every other shared-library leader's in-memory PT_DYNAMIC symbols via
// LoadLibrarySymbols. onConflict receives every dropped duplicate name
// (see Index.OnConflict); pass nil to ignore conflicts silently.
//
// A leader that fails to yield symbols (no PT_DYNAMIC, a stripped library,
// a transient read error mid-splice) is skipped rather than aborting the
// whole load — per spec, symbol loading is best-effort per library.
func LoadAll(exePath string, mem *memio.Mem, set *vma.Set, mask LoadMask, onConflict func(name string, kept, dropped Symbol)) (*Index, []error) {
	idx := NewIndex()
	idx.OnConflict = onConflict
	var warnings []error

	for i := 0; i < set.Len(); i++ {
		v := set.At(i)
		if !v.IsLeader(i) {
			continue
		}

		var syms []Symbol
		var elfInfo *vma.ELFInfo
		var err error
		switch {
		case v.Class == vma.SELF && v.Path != "":
			if !mask.Self {
				continue
			}
			syms, err = LoadSelfELF(v.Path, i)
		case v.Class == vma.LIBC:
			if !mask.Libc {
				continue
			}
			syms, elfInfo, err = LoadLibrarySymbols(mem, v, i)
		case v.Class == vma.LD, v.Class == vma.LIBELF, v.Class == vma.LIBUnknown, v.Class == vma.VDSO:
			if !mask.Others {
				continue
			}
			syms, elfInfo, err = LoadLibrarySymbols(mem, v, i)
		default:
			continue
		}
		if elfInfo != nil {
			set.SetELF(i, elfInfo)
		}
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		idx.InsertAll(syms)
	}
	return idx, warnings
}
