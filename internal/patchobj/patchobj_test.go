//go:build linux

package patchobj

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"testing"
	"unsafe"

	"github.com/ulpatch/ulpatch/internal/arch"
	"github.com/ulpatch/ulpatch/internal/memio"
)

func uintptrOf(p *byte) uintptr {
	return uintptr(unsafe.Pointer(p))
}

func TestTransitionLegalPath(t *testing.T) {
	path := []State{Unloaded, Parsed, Staged, Relocated, Active, Detaching, Unloaded}
	for i := 0; i < len(path)-1; i++ {
		if err := Transition(path[i], path[i+1]); err != nil {
			t.Fatalf("%s -> %s should be legal: %v", path[i], path[i+1], err)
		}
	}
}

func TestTransitionUnwindPaths(t *testing.T) {
	if err := Transition(Staged, Unloaded); err != nil {
		t.Fatalf("Staged -> Unloaded should be legal: %v", err)
	}
	if err := Transition(Relocated, Unloaded); err != nil {
		t.Fatalf("Relocated -> Unloaded should be legal: %v", err)
	}
}

func TestTransitionRejectsSkips(t *testing.T) {
	cases := [][2]State{
		{Unloaded, Staged},
		{Parsed, Relocated},
		{Staged, Active},
		{Active, Unloaded},
	}
	for _, c := range cases {
		if err := Transition(c[0], c[1]); err == nil {
			t.Fatalf("%s -> %s should be illegal", c[0], c[1])
		}
	}
}

func TestStateString(t *testing.T) {
	if Active.String() != "active" {
		t.Fatalf("got %q", Active.String())
	}
}

func TestParseUpatchInfo(t *testing.T) {
	b := make([]byte, upatchInfoSize)
	binary.LittleEndian.PutUint32(b[0:4], 1)
	binary.LittleEndian.PutUint32(b[4:8], 2)
	copy(b[8:72], "do_something")
	copy(b[72:136], "jane")
	binary.LittleEndian.PutUint64(b[136:144], 0xdeadbeef)

	info, err := parseUpatchInfo(b)
	if err != nil {
		t.Fatal(err)
	}
	if info.Type != 1 || info.Version != 2 {
		t.Fatalf("got %+v", info)
	}
	if info.TargetFunc != "do_something" || info.Author != "jane" {
		t.Fatalf("got %+v", info)
	}
	if info.ReplaceAddrPlaceholder != 0xdeadbeef {
		t.Fatalf("got %+v", info)
	}
}

func TestParseUpatchInfoTooShort(t *testing.T) {
	if _, err := parseUpatchInfo(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestCString(t *testing.T) {
	if got := cString([]byte("foo\x00\x00\x00")); got != "foo" {
		t.Fatalf("got %q", got)
	}
	if got := cString([]byte("foo")); got != "foo" {
		t.Fatalf("got %q", got)
	}
}

// TestApplyX86_64AbsAndPC writes a PC32 and a 64-bit absolute relocation
// against a local buffer, the same self-memory pattern internal/memio uses
// to exercise its own read/write paths without a second process.
func TestApplyX86_64AbsAndPC(t *testing.T) {
	buf := make([]byte, 16)
	addr := uint64(uintptrOf(&buf[0]))

	m := memio.Open(os.Getpid())
	defer m.Close()

	const sym = 0x1000
	if err := applyX86_64(m, elf.R_X86_64_64, addr, sym, 4); err != nil {
		t.Skipf("self memio write unavailable: %v", err)
	}
	got := binary.LittleEndian.Uint64(buf[0:8])
	if got != sym+4 {
		t.Fatalf("R_X86_64_64: got 0x%x, want 0x%x", got, sym+4)
	}

	target := addr + 8
	if err := applyX86_64(m, elf.R_X86_64_PC32, target, sym, 0); err != nil {
		t.Fatalf("write PC32: %v", err)
	}
	want := int32(int64(sym) - int64(target))
	got32 := int32(binary.LittleEndian.Uint32(buf[8:12]))
	if got32 != want {
		t.Fatalf("R_X86_64_PC32: got %d, want %d", got32, want)
	}
}

// TestApplyAArch64AddAbsLo12 only touches the low 12 bits of the
// instruction word, leaving the rest of the encoded ADD untouched.
func TestApplyAArch64AddAbsLo12(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 0x91000000) // ADD x0, x0, #0
	addr := uint64(uintptrOf(&buf[0]))

	m := memio.Open(os.Getpid())
	defer m.Close()

	if err := applyAArch64(m, elf.R_AARCH64_ADD_ABS_LO12_NC, addr, 0x123, 0); err != nil {
		t.Skipf("self memio write unavailable: %v", err)
	}
	insn := binary.LittleEndian.Uint32(buf)
	if insn&(0xFFF<<10) != uint32(0x123)<<10 {
		t.Fatalf("imm12 not encoded, got 0x%x", insn)
	}
	if insn&^(0xFFF<<10) != 0x91000000 {
		t.Fatalf("opcode bits clobbered, got 0x%x", insn)
	}
}

func TestResolveSymbolAddrUndefinedMissing(t *testing.T) {
	li := &LoadInfo{Resolved: make(map[string]uint64)}
	if _, err := li.resolveSymbolAddr(0, nil); err == nil {
		t.Fatal("expected error for STN_UNDEF index 0")
	}
}

func TestApplyOneUnsupportedISA(t *testing.T) {
	li := &LoadInfo{}
	if err := li.applyOne(nil, arch.ISA("riscv64"), 0, 0, 0, 0, 0); err == nil {
		t.Fatal("expected error for unsupported ISA")
	}
}
