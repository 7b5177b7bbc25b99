package rsyscall

import "github.com/ulpatch/ulpatch/internal/arch"

// Numbers is one ISA's syscall-number table for the handful of syscalls
// the patch engine drives remotely. Zero means "not used on this ISA"
// (aarch64 has no bare open(2); callers always go through Openat).
type Numbers struct {
	Mmap, Munmap, Msync       uint64
	Open, Openat              uint64
	Close, Ftruncate, Fstat   uint64
	Prctl                     uint64
}

var numbersByISA = map[arch.ISA]Numbers{
	arch.X86_64: {
		Mmap: 9, Munmap: 11, Msync: 26,
		Open: 2, Openat: 257,
		Close: 3, Ftruncate: 77, Fstat: 5,
		Prctl: 157,
	},
	arch.AArch64: {
		Mmap: 222, Munmap: 215, Msync: 227,
		Open: 0, Openat: 56,
		Close: 57, Ftruncate: 46, Fstat: 80,
		Prctl: 167,
	},
}

func numbersFor(isa arch.ISA) (Numbers, error) {
	n, ok := numbersByISA[isa]
	if !ok {
		return Numbers{}, errUnknownISA(isa)
	}
	return n, nil
}
