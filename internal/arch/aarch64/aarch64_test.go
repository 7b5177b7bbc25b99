package aarch64

import (
	"encoding/binary"
	"testing"

	"github.com/ulpatch/ulpatch/internal/arch"
)

func TestEncodeCall(t *testing.T) {
	e := encoder{}
	buf, err := e.EncodeCall(0x1000, 0x1000+16)
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if len(buf) != 4 {
		t.Fatalf("len = %d, want 4", len(buf))
	}
	word := binary.LittleEndian.Uint32(buf)
	if word&0xFC000000 != blOpcode {
		t.Fatalf("opcode bits = 0x%x, want BL", word&0xFC000000)
	}
	if word&imm26Mask != 4 { // 16 bytes / 4 = 4 words
		t.Fatalf("imm26 = %d, want 4", word&imm26Mask)
	}
}

func TestEncodeCallUnaligned(t *testing.T) {
	e := encoder{}
	if _, err := e.EncodeCall(0x1000, 0x1001); err == nil {
		t.Fatal("expected alignment error")
	}
}

func TestEncodeCallOutOfReach(t *testing.T) {
	e := encoder{}
	if _, err := e.EncodeCall(0, 1<<28); err == nil {
		t.Fatal("expected reach error")
	}
}

func TestEncodeJumpTableEntry(t *testing.T) {
	e := encoder{}
	buf := e.EncodeJumpTableEntry(0x123456789abcdef0)
	if len(buf) != 16 {
		t.Fatalf("len = %d, want 16", len(buf))
	}
	got := binary.LittleEndian.Uint64(buf[8:])
	if got != 0x123456789abcdef0 {
		t.Fatalf("embedded target = 0x%x", got)
	}
}

func TestRegistered(t *testing.T) {
	got, err := arch.For(arch.AArch64)
	if err != nil {
		t.Fatalf("For(AArch64): %v", err)
	}
	if got.ISA() != arch.AArch64 {
		t.Fatalf("ISA = %s", got.ISA())
	}
}
