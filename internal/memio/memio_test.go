//go:build linux

package memio

import (
	"os"
	"testing"
)

// TestReadSelf exercises the fast /proc/pid/mem path against our own
// process, reading a known byte pattern back out of a local buffer.
func TestReadSelf(t *testing.T) {
	buf := []byte("ulpatch-memio-fixture")
	addr := uint64(uintptrOf(&buf[0]))

	m := Open(os.Getpid())
	defer m.Close()

	got, err := m.ReadAt(addr, len(buf))
	if err != nil {
		t.Skipf("self /proc/pid/mem read unavailable: %v", err)
	}
	if string(got) != string(buf) {
		t.Fatalf("got %q, want %q", got, buf)
	}
}

// TestWriteSelf round-trips a write through the fast path.
func TestWriteSelf(t *testing.T) {
	buf := make([]byte, 8)
	addr := uint64(uintptrOf(&buf[0]))

	m := Open(os.Getpid())
	defer m.Close()

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := m.Write(addr, want); err != nil {
		t.Skipf("self /proc/pid/mem write unavailable: %v", err)
	}
	for i, b := range want {
		if buf[i] != b {
			t.Fatalf("byte %d = %d, want %d", i, buf[i], b)
		}
	}
}
