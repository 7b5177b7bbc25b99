package rsyscall

import "fmt"

// Standard mmap/open/prctl flag values from the Linux/glibc headers. Kept
// here rather than imported from golang.org/x/sys/unix because these are
// the *target's* flag values, not a description of a syscall this process
// itself makes — unix.MAP_* etc. happen to share the same numeric values
// on Linux, but the Session API is explicit that the args it ships are raw
// ABI words for the other process, not Go-side syscall arguments.
const (
	ProtRead  = 0x1
	ProtWrite = 0x2
	ProtExec  = 0x4

	MapShared    = 0x01
	MapPrivate   = 0x02
	MapAnonymous = 0x20
	MapFixed     = 0x10

	OFlagRDONLY = 0x0
	OFlagRDWR   = 0x2
	OFlagCreat  = 0x40

	AtFDCWD = -100
)

// Mmap issues remote_mmap(addr, length, prot, flags, fd, offset).
func (s *Session) Mmap(addr, length uint64, prot, flags int, fd int, offset uint64) (uint64, error) {
	ret, err := s.Exec(s.numbers.Mmap, [6]uint64{
		addr, length, uint64(prot), uint64(flags), uint64(int64(fd)), offset,
	})
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, fmt.Errorf("rsyscall: remote mmap failed: errno %d", -ret)
	}
	return uint64(ret), nil
}

// Munmap issues remote_munmap(addr, length).
func (s *Session) Munmap(addr, length uint64) error {
	ret, err := s.Exec(s.numbers.Munmap, [6]uint64{addr, length})
	if err != nil {
		return err
	}
	return errnoToErr("munmap", ret)
}

// Msync issues remote_msync(addr, length, flags).
func (s *Session) Msync(addr, length uint64, flags int) error {
	ret, err := s.Exec(s.numbers.Msync, [6]uint64{addr, length, uint64(flags)})
	if err != nil {
		return err
	}
	return errnoToErr("msync", ret)
}

// Openat issues remote_openat(dirfd, path_addr, flags, mode). path must
// already be materialized in target memory (see OpenPath).
func (s *Session) Openat(dirfd int, pathAddr uint64, flags, mode int) (int, error) {
	if s.numbers.Openat == 0 {
		return 0, fmt.Errorf("rsyscall: openat unavailable on this ISA")
	}
	ret, err := s.Exec(s.numbers.Openat, [6]uint64{uint64(int64(dirfd)), pathAddr, uint64(flags), uint64(mode)})
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, fmt.Errorf("rsyscall: remote openat failed: errno %d", -ret)
	}
	return int(ret), nil
}

// Close issues remote_close(fd).
func (s *Session) Close(fd int) error {
	ret, err := s.Exec(s.numbers.Close, [6]uint64{uint64(int64(fd))})
	if err != nil {
		return err
	}
	return errnoToErr("close", ret)
}

// Ftruncate issues remote_ftruncate(fd, length).
func (s *Session) Ftruncate(fd int, length uint64) error {
	ret, err := s.Exec(s.numbers.Ftruncate, [6]uint64{uint64(int64(fd)), length})
	if err != nil {
		return err
	}
	return errnoToErr("ftruncate", ret)
}

// Fstat issues remote_fstat(fd, statbuf_addr); statbuf must point at
// sizeof(struct stat) bytes of scratch memory in the target (typically a
// Malloc'd buffer), which the caller reads back via internal/memio.
func (s *Session) Fstat(fd int, statbufAddr uint64) error {
	ret, err := s.Exec(s.numbers.Fstat, [6]uint64{uint64(int64(fd)), statbufAddr})
	if err != nil {
		return err
	}
	return errnoToErr("fstat", ret)
}

// Prctl issues remote_prctl(option, arg2, arg3, arg4, arg5).
func (s *Session) Prctl(option int, arg2, arg3, arg4, arg5 uint64) (int64, error) {
	ret, err := s.Exec(s.numbers.Prctl, [6]uint64{uint64(int64(option)), arg2, arg3, arg4, arg5})
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, fmt.Errorf("rsyscall: remote prctl failed: errno %d", -ret)
	}
	return ret, nil
}

// Malloc is remote_malloc: an anonymous private RW mapping used as scratch
// space (a pathname buffer, a stat struct, a patch image before it is
// remapped executable).
func (s *Session) Malloc(length uint64) (uint64, error) {
	return s.Mmap(0, length, ProtRead|ProtWrite, MapPrivate|MapAnonymous, -1, 0)
}

// Free is remote_free: munmap of a remote_malloc'd region.
func (s *Session) Free(addr, length uint64) error {
	return s.Munmap(addr, length)
}

func errnoToErr(name string, ret int64) error {
	if ret < 0 {
		return fmt.Errorf("rsyscall: remote %s failed: errno %d", name, -ret)
	}
	return nil
}
