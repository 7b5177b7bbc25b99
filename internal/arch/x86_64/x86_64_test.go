package x86_64

import (
	"math"
	"testing"

	"github.com/ulpatch/ulpatch/internal/arch"
)

func TestEncodeCall(t *testing.T) {
	e := encoder{}
	buf, err := e.EncodeCall(0x1000, 0x2000)
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if len(buf) != 5 || buf[0] != 0xE8 {
		t.Fatalf("unexpected bytes: % x", buf)
	}
	wantDisp := int32(0x2000 - 0x1000 - 5)
	gotDisp := int32(buf[1]) | int32(buf[2])<<8 | int32(buf[3])<<16 | int32(buf[4])<<24
	if gotDisp != wantDisp {
		t.Fatalf("disp = %d, want %d", gotDisp, wantDisp)
	}
}

func TestEncodeCallOutOfReach(t *testing.T) {
	e := encoder{}
	_, err := e.EncodeCall(0, uint64(math.MaxInt64))
	if err == nil {
		t.Fatal("expected reach error")
	}
}

func TestEncodeJumpTableEntry(t *testing.T) {
	e := encoder{}
	buf := e.EncodeJumpTableEntry(0xdeadbeefcafebabe)
	if len(buf) != 14 {
		t.Fatalf("len = %d, want 14", len(buf))
	}
	if buf[0] != 0xFF || buf[1] != 0x25 {
		t.Fatalf("unexpected opcode bytes: % x", buf[:2])
	}
}

func TestDecodeLen(t *testing.T) {
	e := encoder{}
	// A 5-byte CALL rel32 must decode to length 5.
	call, _ := e.EncodeCall(0, 5)
	n, err := e.DecodeLen(call)
	if err != nil {
		t.Fatalf("DecodeLen: %v", err)
	}
	if n != 5 {
		t.Fatalf("decoded len = %d, want 5", n)
	}
}

func TestRegistered(t *testing.T) {
	got, err := arch.For(arch.X86_64)
	if err != nil {
		t.Fatalf("For(X86_64): %v", err)
	}
	if got.ISA() != arch.X86_64 {
		t.Fatalf("ISA = %s", got.ISA())
	}
}
