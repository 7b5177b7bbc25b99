// Package vma models a target's virtual memory areas as read from
// /proc/pid/maps: classification, leader/sibling grouping for one backing
// file, and address-ordered lookup. Ownership follows the design note's
// arena-plus-index shape — a Task holds one flat Set, and every
// cross-reference (a VMA's leader, a Symbol's owning VMA) is an index into
// it rather than a pointer, so rebuilding the Set after a remote mmap/munmap
// never leaves a dangling reference behind.
package vma

import "fmt"

// Class classifies a VMA's role in the target's address space.
type Class int

const (
	NONE Class = iota
	SELF
	LIBC
	LIBELF
	HEAP
	LD
	STACK
	VVAR
	VDSO
	VSYSCALL
	LIBUnknown
	ANON
)

func (c Class) String() string {
	switch c {
	case SELF:
		return "self"
	case LIBC:
		return "libc"
	case LIBELF:
		return "libelf"
	case HEAP:
		return "heap"
	case LD:
		return "ld"
	case STACK:
		return "stack"
	case VVAR:
		return "vvar"
	case VDSO:
		return "vdso"
	case VSYSCALL:
		return "vsyscall"
	case LIBUnknown:
		return "lib-unknown"
	case ANON:
		return "anon"
	default:
		return "none"
	}
}

// Perms are the four permission bits from the maps line, in "rwxp" order.
type Perms struct {
	Read, Write, Exec, Private bool
}

// VMA is one contiguous [Start, End) mapping.
type VMA struct {
	Start, End uint64
	Perms      Perms
	Offset     uint64
	Dev        string
	Inode      uint64
	Path       string
	Class      Class

	// LeaderIndex is this VMA's position in the owning Set if it is itself
	// the leader of its backing-file group, or the leader's position
	// otherwise. Always valid (>= 0) once the Set is built.
	LeaderIndex int

	// ELF is attached lazily once something parses this mapping's first
	// page and finds a valid ELF header.
	ELF *ELFInfo
}

// IsLeader reports whether v is the first-seen VMA for its backing file.
func (v VMA) IsLeader(selfIndex int) bool { return v.LeaderIndex == selfIndex }

// ELFInfo is the lazily attached in-memory ELF view of a VMA (spec §3
// VMA-ELF). internal/symbol, which owns ELF parsing, decodes the ELF and
// program headers but does not keep them; this struct only carries the
// derived fields every consumer needs.
type ELFInfo struct {
	LoadOffset      uint64 // vma.Start - min(PT_LOAD.p_vaddr)
	IsSharedLibrary bool
}

// Set is one Task's ordered, non-overlapping collection of VMAs.
type Set struct {
	// list is kept in ascending-Start order, exactly the order
	// /proc/pid/maps itself yields; this is the "doubly-linked list" of the
	// design — a slice already gives O(1) forward iteration and only the
	// Set itself mutates it, so there's nothing a pointer-based list would
	// buy us.
	list []VMA

	// leaders maps a backing-file path to the index of its leader VMA in
	// list, first-seen wins per spec.
	leaders map[string]int
}

func newSet(cap int) *Set {
	return &Set{
		list:    make([]VMA, 0, cap),
		leaders: make(map[string]int),
	}
}

// FromVMAs builds a Set from an already address-ordered slice, computing
// leader indices by first-seen backing-file path. Used by tests and by
// callers assembling a Set from something other than a live
// /proc/pid/maps read (e.g. a saved snapshot).
func FromVMAs(vmas []VMA) (*Set, error) {
	set := newSet(len(vmas))
	for _, v := range vmas {
		idx := len(set.list)
		if v.Path == "" {
			v.LeaderIndex = idx
		} else if leaderIdx, ok := set.leaders[v.Path]; ok {
			v.LeaderIndex = leaderIdx
		} else {
			v.LeaderIndex = idx
			set.leaders[v.Path] = idx
		}
		set.list = append(set.list, v)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Len returns the number of VMAs.
func (s *Set) Len() int { return len(s.list) }

// At returns the VMA at position i.
func (s *Set) At(i int) VMA { return s.list[i] }

// All returns the full ordered slice. Callers must not mutate it.
func (s *Set) All() []VMA { return s.list }

// FindVMA returns the VMA covering addr and its index, or ok=false.
// Implemented as binary search over the address-ordered slice: the "ordered
// tree keyed by [start,end)" from spec.md is, in Go, just a binary search over
// an invariant-maintained sorted slice — same O(log n) point lookup without
// hand-rolling a balanced tree for a structure that's always rebuilt whole.
func (s *Set) FindVMA(addr uint64) (VMA, int, bool) {
	lo, hi := 0, len(s.list)
	for lo < hi {
		mid := (lo + hi) / 2
		v := s.list[mid]
		switch {
		case addr < v.Start:
			hi = mid
		case addr >= v.End:
			lo = mid + 1
		default:
			return v, mid, true
		}
	}
	return VMA{}, -1, false
}

// FindSpan walks the ordered list for the first inter-VMA gap of at least
// size bytes and returns its start address. Used to place a jump-table
// trampoline without colliding with an existing mapping.
func (s *Set) FindSpan(size uint64) (uint64, bool) {
	for i := 0; i+1 < len(s.list); i++ {
		gapStart := s.list[i].End
		gapEnd := s.list[i+1].Start
		if gapEnd > gapStart && gapEnd-gapStart >= size {
			return gapStart, true
		}
	}
	return 0, false
}

// SetELF attaches the lazily parsed ELF view to the VMA at idx. Called once
// internal/symbol has read enough of the mapping to classify it.
func (s *Set) SetELF(idx int, info *ELFInfo) {
	s.list[idx].ELF = info
}

// Leader returns the leader VMA for the group that idx belongs to.
func (s *Set) Leader(idx int) (VMA, int) {
	li := s.list[idx].LeaderIndex
	return s.list[li], li
}

// validate enforces the no-overlap invariant; called once after a Set is
// built or rebuilt, never on a partially constructed Set.
func (s *Set) validate() error {
	for i := 1; i < len(s.list); i++ {
		prev, cur := s.list[i-1], s.list[i]
		if cur.Start < prev.End {
			return fmt.Errorf("vma: overlap between [0x%x,0x%x) and [0x%x,0x%x)", prev.Start, prev.End, cur.Start, cur.End)
		}
	}
	return nil
}
