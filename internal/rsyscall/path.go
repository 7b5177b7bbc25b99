package rsyscall

import (
	"fmt"
	"path/filepath"
)

// OpenPath materializes path (NUL-terminated) into target scratch memory
// via Malloc, copies it in via the Session's memio.Mem, issues the remote
// openat(AT_FDCWD, ...) (spec: aarch64 has no bare open, so every target
// ISA goes through openat uniformly here), and frees the scratch buffer
// regardless of whether the open succeeded.
//
// For non-O_CREAT opens the caller is expected to have already resolved
// symlinks and made the path absolute in this process's filesystem view —
// both processes share one mount namespace in the intended deployment
// (cross-namespace use is a non-goal).
func (s *Session) OpenPath(path string, flags, mode int) (int, error) {
	if !filepath.IsAbs(path) {
		return 0, fmt.Errorf("rsyscall: OpenPath requires an absolute path, got %q", path)
	}
	buf := append([]byte(path), 0)

	addr, err := s.Malloc(uint64(len(buf)))
	if err != nil {
		return 0, fmt.Errorf("rsyscall: allocate pathname buffer: %w", err)
	}
	defer func() {
		_ = s.Free(addr, uint64(len(buf)))
	}()

	if err := s.mem.Write(addr, buf); err != nil {
		return 0, fmt.Errorf("rsyscall: write pathname into target: %w", err)
	}

	fd, err := s.Openat(AtFDCWD, addr, flags, mode)
	if err != nil {
		return 0, err
	}
	return fd, nil
}
