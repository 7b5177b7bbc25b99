package task

import (
	"testing"

	"github.com/ulpatch/ulpatch/internal/arch"
)

func TestFlagsHas(t *testing.T) {
	f := LoadVMAs | LoadSymbols
	if !f.Has(LoadVMAs) {
		t.Fatal("expected LoadVMAs set")
	}
	if !f.Has(LoadVMAs | LoadSymbols) {
		t.Fatal("expected combined flags set")
	}
	if f.Has(RegisterOnDisk) {
		t.Fatal("RegisterOnDisk should not be set")
	}
}

func TestMachineOfRoundTrip(t *testing.T) {
	for _, isa := range []arch.ISA{arch.X86_64, arch.AArch64} {
		m, err := machineOf(isa)
		if err != nil {
			t.Fatalf("machineOf(%s): %v", isa, err)
		}
		if m == 0 {
			t.Fatalf("machineOf(%s) returned zero machine", isa)
		}
	}
}

func TestMachineOfUnknownISA(t *testing.T) {
	if _, err := machineOf(arch.ISA("riscv64")); err == nil {
		t.Fatal("expected error for unknown ISA")
	}
}

func TestTrimNewline(t *testing.T) {
	cases := map[string]string{
		"ultaskd\n":   "ultaskd",
		"ultaskd\r\n": "ultaskd",
		"ultaskd":     "ultaskd",
	}
	for in, want := range cases {
		if got := trimNewline(in); got != want {
			t.Fatalf("trimNewline(%q) = %q, want %q", in, got, want)
		}
	}
}
