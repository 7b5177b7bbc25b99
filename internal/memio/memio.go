//go:build linux

// Package memio is the single abstraction that owns a target's
// /proc/pid/mem handle and the PTRACE_PEEKDATA/POKEDATA fallback. No other
// package may open that file or issue those ptrace requests directly — the
// design notes call this out explicitly (unsafe memory access goes through
// one abstraction). The read/write shape mirrors the teacher's
// MemRead/MemWrite wrapper around Unicorn's memory, generalized from an
// in-process emulated address space to another process's real one.
package memio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const wordSize = 8

// Mem owns positional I/O against one target's /proc/pid/mem, falling back
// to word-aligned ptrace PEEKDATA/POKEDATA when the fast path is
// unavailable (e.g. /proc/pid/mem not yet writable right after attach on
// some kernels, or a region the fast path refuses).
type Mem struct {
	pid int
	f   *os.File // nil if the fast path could not be opened
}

// Open opens /proc/<pid>/mem for positional read/write. It is not fatal if
// this fails to open — callers still get ptrace-fallback-only I/O — since
// some kernels restrict /proc/pid/mem access more tightly than ptrace
// itself.
func Open(pid int) *Mem {
	f, _ := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDWR, 0)
	return &Mem{pid: pid, f: f}
}

// Close releases the /proc/pid/mem handle, if one was opened.
func (m *Mem) Close() error {
	if m.f == nil {
		return nil
	}
	return m.f.Close()
}

// Read fills dst from the target's address space starting at addr. A
// partial read is always an error, never silently returned as a short
// count — callers can rely on len(dst) bytes having been read whenever err
// is nil.
func (m *Mem) Read(dst []byte, addr uint64) error {
	if m.f != nil {
		n, err := m.f.ReadAt(dst, int64(addr))
		if err == nil && n == len(dst) {
			return nil
		}
		// Fall through to the ptrace path; some regions aren't readable via
		// /proc/pid/mem even when the fd itself is open.
	}
	return m.peekFallback(dst, addr)
}

// Write copies src into the target's address space starting at addr. A
// partial write is always an error.
func (m *Mem) Write(addr uint64, src []byte) error {
	if m.f != nil {
		n, err := m.f.WriteAt(src, int64(addr))
		if err == nil && n == len(src) {
			return nil
		}
	}
	return m.pokeFallback(addr, src)
}

// peekFallback reads via word-aligned PTRACE_PEEKDATA, trimming the first
// and last words to the requested byte range.
func (m *Mem) peekFallback(dst []byte, addr uint64) error {
	n, err := unix.PtracePeekData(m.pid, uintptr(addr), dst)
	if err != nil {
		return fmt.Errorf("memio: ptrace peek at 0x%x: %w", addr, err)
	}
	if n != len(dst) {
		return fmt.Errorf("memio: short ptrace peek at 0x%x: got %d, want %d", addr, n, len(dst))
	}
	return nil
}

// pokeFallback writes via word-aligned PTRACE_POKEDATA. A write that does
// not start and end on an 8-byte boundary requires a read-modify-write of
// the boundary words so bytes outside [addr, addr+len(src)) are preserved.
func (m *Mem) pokeFallback(addr uint64, src []byte) error {
	start := addr &^ (wordSize - 1)
	end := (addr + uint64(len(src)) + wordSize - 1) &^ (wordSize - 1)
	spanLen := int(end - start)

	var buf []byte
	if start == addr && spanLen == len(src) {
		buf = src
	} else {
		buf = make([]byte, spanLen)
		if err := m.peekFallback(buf, start); err != nil {
			return fmt.Errorf("memio: poke read-modify-write at 0x%x: %w", addr, err)
		}
		copy(buf[addr-start:], src)
	}

	n, err := unix.PtracePokeData(m.pid, uintptr(start), buf)
	if err != nil {
		return fmt.Errorf("memio: ptrace poke at 0x%x: %w", start, err)
	}
	if n != len(buf) {
		return fmt.Errorf("memio: short ptrace poke at 0x%x: got %d, want %d", start, n, len(buf))
	}
	return nil
}

// ReadAt is a convenience allocating a dst buffer of n bytes.
func (m *Mem) ReadAt(addr uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := m.Read(buf, addr); err != nil {
		return nil, err
	}
	return buf, nil
}
