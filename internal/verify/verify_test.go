package verify

import (
	"testing"

	"github.com/ulpatch/ulpatch/internal/arch"
)

// x86-64: mov eax, edi; add eax, esi; ret -- computes arg0+arg1.
var addTestCodeX86 = []byte{
	0x89, 0xf8, // mov eax, edi
	0x01, 0xf0, // add eax, esi
	0xc3, // ret
}

// aarch64: add x0, x0, x1; ret -- computes arg0+arg1.
var addTestCodeARM64 = []byte{
	0x00, 0x00, 0x01, 0x8b, // add x0, x0, x1
	0xc0, 0x03, 0x5f, 0xd6, // ret
}

func TestRunFunctionX86ReturnsNormally(t *testing.T) {
	rep, err := RunFunction(arch.X86_64, addTestCodeX86, 0, []uint64{5, 3})
	if err != nil {
		t.Fatalf("RunFunction: %v", err)
	}
	if !rep.ReturnedNormally {
		t.Fatalf("expected normal return, got fault at 0x%x: %v", rep.FaultAddr, rep.FaultErr)
	}
	if rep.InstructionsExecuted == 0 {
		t.Fatal("expected at least one instruction to have been counted")
	}
}

func TestRunFunctionAArch64ReturnsNormally(t *testing.T) {
	rep, err := RunFunction(arch.AArch64, addTestCodeARM64, 0, []uint64{5, 3})
	if err != nil {
		t.Fatalf("RunFunction: %v", err)
	}
	if !rep.ReturnedNormally {
		t.Fatalf("expected normal return, got fault at 0x%x: %v", rep.FaultAddr, rep.FaultErr)
	}
}

func TestRunFunctionFaultsOnBadEntry(t *testing.T) {
	rep, err := RunFunction(arch.X86_64, addTestCodeX86, codeSize*2, nil)
	if err != nil {
		t.Fatalf("RunFunction itself should not error, the fault belongs in the report: %v", err)
	}
	if rep.ReturnedNormally {
		t.Fatal("expected a fault for an out-of-range entry offset")
	}
}

func TestUnicornTargetUnknownISA(t *testing.T) {
	if _, _, err := unicornTarget(arch.ISA("riscv64")); err == nil {
		t.Fatal("expected error for unknown ISA")
	}
}
