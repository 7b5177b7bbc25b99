package symbol

import (
	"testing"

	"github.com/ulpatch/ulpatch/internal/vma"
)

func TestIndexFirstWriterWins(t *testing.T) {
	idx := NewIndex()
	var conflicts int
	idx.OnConflict = func(name string, kept, dropped Symbol) { conflicts++ }

	idx.Insert(Symbol{Name: "printf", Sym: ElfSym{Value: 0x1000}})
	idx.Insert(Symbol{Name: "printf", Sym: ElfSym{Value: 0x2000}})

	got, ok := idx.Lookup("printf")
	if !ok {
		t.Fatal("printf missing")
	}
	if got.Sym.Value != 0x1000 {
		t.Fatalf("printf resolved to 0x%x, want first-writer 0x1000", got.Sym.Value)
	}
	if conflicts != 1 {
		t.Fatalf("conflicts = %d, want 1", conflicts)
	}
}

func TestIndexMustLookupMissing(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.MustLookup("does_not_exist"); err == nil {
		t.Fatal("expected error for undefined symbol")
	}
}

func TestRuntimeAddrNonShared(t *testing.T) {
	set, err := vma.FromVMAs([]vma.VMA{
		{Start: 0x400000, End: 0x401000, Path: "/usr/bin/ultaskd", Class: vma.SELF},
	})
	if err != nil {
		t.Fatalf("FromVMAs: %v", err)
	}

	sym := Symbol{Name: "main", Sym: ElfSym{Value: 0x400123}, OwningLeaderIndex: 0}
	addr, err := RuntimeAddr(sym, set)
	if err != nil {
		t.Fatalf("RuntimeAddr: %v", err)
	}
	if addr != 0x400123 {
		t.Fatalf("addr = 0x%x, want 0x400123 (st_value unchanged for non-shared)", addr)
	}
}

func TestRuntimeAddrSharedMultiSegment(t *testing.T) {
	// libc-shaped: three sibling VMAs (text, guard, rodata) sharing one
	// backing file, each with a distinct file offset.
	leader := vma.VMA{Start: 0x7f0000000000, End: 0x7f00001c0000, Offset: 0, Path: "/lib/libc.so.6", Class: vma.LIBC}
	leader.ELF = &vma.ELFInfo{IsSharedLibrary: true}
	mid := vma.VMA{Start: 0x7f00001c0000, End: 0x7f00003c0000, Offset: 0x1c0000, Path: "/lib/libc.so.6", Class: vma.LIBC}
	tail := vma.VMA{Start: 0x7f00003e0000, End: 0x7f0000400000, Offset: 0x3e0000, Path: "/lib/libc.so.6", Class: vma.LIBC}

	set, err := vma.FromVMAs([]vma.VMA{leader, mid, tail})
	if err != nil {
		t.Fatalf("FromVMAs: %v", err)
	}

	// A symbol whose st_value (0x50) falls in the leader's own segment
	// (offset 0..0x1c0000).
	sym := Symbol{Name: "malloc", Sym: ElfSym{Value: 0x50}, OwningLeaderIndex: 0}
	addr, err := RuntimeAddr(sym, set)
	if err != nil {
		t.Fatalf("RuntimeAddr: %v", err)
	}
	if want := leader.Start + 0x50; addr != want {
		t.Fatalf("addr = 0x%x, want 0x%x", addr, want)
	}

	// A symbol whose st_value falls in the middle segment's file-offset range.
	sym2 := Symbol{Name: "__libc_csu_init", Sym: ElfSym{Value: 0x1c0010}, OwningLeaderIndex: 0}
	addr2, err := RuntimeAddr(sym2, set)
	if err != nil {
		t.Fatalf("RuntimeAddr: %v", err)
	}
	want2 := mid.Start + (0x1c0010 - mid.Offset)
	if addr2 != want2 {
		t.Fatalf("addr2 = 0x%x, want 0x%x", addr2, want2)
	}
}
