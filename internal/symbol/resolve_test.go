package symbol

import (
	"strings"
	"testing"

	"github.com/ulpatch/ulpatch/internal/memio"
	"github.com/ulpatch/ulpatch/internal/vma"
)

// noMem is a *memio.Mem that can never successfully read: pid 0 owns no
// /proc/0/mem a test process can open, so every ReadAt fails gracefully via
// the ptrace fallback instead of panicking on a nil receiver.
func noMem() *memio.Mem { return memio.Open(0) }

func testSet(t *testing.T) *vma.Set {
	t.Helper()
	set, err := vma.FromVMAs([]vma.VMA{
		{Start: 0x400000, End: 0x401000, Path: "/does/not/exist/self", Class: vma.SELF},
		{Start: 0x7f0000000000, End: 0x7f0000001000, Path: "/lib/libc.so.6", Class: vma.LIBC},
		{Start: 0x7f0000002000, End: 0x7f0000003000, Path: "/lib/ld-linux-x86-64.so.2", Class: vma.LD},
	})
	if err != nil {
		t.Fatalf("FromVMAs: %v", err)
	}
	return set
}

// With every mask bit off, LoadAll must never dereference mem (nil here) or
// touch disk — it should return an empty index with no warnings.
func TestLoadAllMaskAllOff(t *testing.T) {
	set := testSet(t)
	idx, warnings := LoadAll("", nil, set, LoadMask{}, nil)
	if idx.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", idx.Len())
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
}

// Self-only must attempt the self ELF load (and surface its failure as a
// warning, since the fixture path doesn't exist) without ever calling into
// LoadLibrarySymbols, which would panic on a nil *memio.Mem.
func TestLoadAllMaskSelfOnly(t *testing.T) {
	set := testSet(t)
	idx, warnings := LoadAll("", nil, set, LoadMask{Self: true}, nil)
	if idx.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", idx.Len())
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one (missing self ELF)", warnings)
	}
}

// Libc-only and self-only are independent: selecting Libc must skip the
// SELF leader entirely (no attempted open of the nonexistent self path)
// while still reaching for the LIBC leader via LoadLibrarySymbols — whose
// own failure against a non-existent target (pid 0) is expected and
// unrelated to the self path.
func TestLoadAllMaskLibcOnlySkipsSelf(t *testing.T) {
	set := testSet(t)
	_, warnings := LoadAll("", noMem(), set, LoadMask{Libc: true}, nil)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one (the libc leader's own failure)", warnings)
	}
	for _, w := range warnings {
		if strings.Contains(w.Error(), "does/not/exist/self") {
			t.Fatalf("self path was loaded despite Libc-only mask: %v", w)
		}
	}
}
