package main

import (
	"testing"

	"github.com/ulpatch/ulpatch/internal/arch"
)

// x86-64: mov eax, edi; ret
var movRetX86 = []byte{0x89, 0xf8, 0xc3}

func TestDecodeOneX86(t *testing.T) {
	text, size, err := decodeOne(arch.X86_64, movRetX86)
	if err != nil {
		t.Fatalf("decodeOne: %v", err)
	}
	if size != 2 {
		t.Fatalf("got size %d, want 2", size)
	}
	if text == "" {
		t.Fatal("expected non-empty disassembly text")
	}
}

func TestDecodeOneAArch64(t *testing.T) {
	// ret
	code := []byte{0xc0, 0x03, 0x5f, 0xd6}
	text, size, err := decodeOne(arch.AArch64, code)
	if err != nil {
		t.Fatalf("decodeOne: %v", err)
	}
	if size != 4 {
		t.Fatalf("got size %d, want 4", size)
	}
	if text == "" {
		t.Fatal("expected non-empty disassembly text")
	}
}

func TestDecodeOneUnsupportedISA(t *testing.T) {
	if _, _, err := decodeOne(arch.ISA("riscv64"), movRetX86); err == nil {
		t.Fatal("expected error for unsupported ISA")
	}
}
