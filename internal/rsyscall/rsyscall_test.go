package rsyscall

import (
	"testing"

	"github.com/ulpatch/ulpatch/internal/arch"
)

func TestNumbersForKnownISAs(t *testing.T) {
	for _, isa := range []arch.ISA{arch.X86_64, arch.AArch64} {
		n, err := numbersFor(isa)
		if err != nil {
			t.Fatalf("numbersFor(%s): %v", isa, err)
		}
		if n.Mmap == 0 || n.Munmap == 0 || n.Openat == 0 || n.Close == 0 {
			t.Fatalf("numbersFor(%s) missing required entries: %+v", isa, n)
		}
	}
	if n, _ := numbersFor(arch.AArch64); n.Open != 0 {
		t.Fatalf("aarch64 should have no bare open(2), got %d", n.Open)
	}
}

func TestNumbersForUnknownISA(t *testing.T) {
	if _, err := numbersFor("riscv64"); err == nil {
		t.Fatal("expected error for unregistered ISA")
	}
}

func TestErrnoToErr(t *testing.T) {
	if err := errnoToErr("close", 0); err != nil {
		t.Fatalf("unexpected error for ret=0: %v", err)
	}
	if err := errnoToErr("close", -9); err == nil {
		t.Fatal("expected error for negative ret (errno)")
	}
}

func TestOpenPathRejectsRelative(t *testing.T) {
	s := &Session{}
	if _, err := s.OpenPath("relative/path", OFlagRDONLY, 0); err == nil {
		t.Fatal("expected rejection of a relative path")
	}
}
