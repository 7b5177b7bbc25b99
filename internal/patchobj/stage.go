package patchobj

import (
	"fmt"

	"github.com/ulpatch/ulpatch/internal/memio"
	"github.com/ulpatch/ulpatch/internal/rsyscall"
)

// Stage materializes the patch object into the target per spec §4.G step
// 2: remote_open(path, O_RDWR) -> remote_ftruncate(fd, size) ->
// remote_mmap(0, size, R|W|X, PRIVATE, fd, 0); the file contents are then
// copied into that image via memio so the private mapping carries the
// patch body without touching the on-disk file (MAP_PRIVATE keeps writes
// local to the target).
//
// registryPath is the copy of the patch file the target process itself
// will open — per spec this is the file already materialized under the
// on-disk registry root (internal/registry), not li.Path, so a second
// target attached later still finds it after the original li.Path is
// gone.
func (li *LoadInfo) Stage(rs *rsyscall.Session, mem *memio.Mem, registryPath string) error {
	if err := Transition(li.State, Staged); err != nil {
		return err
	}

	fd, err := rs.OpenPath(registryPath, rsyscall.OFlagRDWR, 0)
	if err != nil {
		return fmt.Errorf("patchobj: remote open %s: %w", registryPath, err)
	}
	defer func() { _ = rs.Close(fd) }()

	if err := rs.Ftruncate(fd, li.Size); err != nil {
		return fmt.Errorf("patchobj: remote ftruncate: %w", err)
	}

	base, err := rs.Mmap(0, li.Size,
		rsyscall.ProtRead|rsyscall.ProtWrite|rsyscall.ProtExec,
		rsyscall.MapPrivate, fd, 0)
	if err != nil {
		return fmt.Errorf("patchobj: remote mmap: %w", err)
	}

	if err := mem.Write(base, li.Raw); err != nil {
		_ = rs.Munmap(base, li.Size)
		return fmt.Errorf("patchobj: copy patch image into target: %w", err)
	}

	li.TargetVMABase = base
	li.PatchFilepathInRegistry = registryPath
	li.State = Staged
	return nil
}

// Unstage reverses Stage on a relocation failure: remote_munmap the image.
// No call site has been touched yet at this point in the lifecycle, so
// there is nothing else to unwind (spec §4.H: STAGED -> UNLOADED).
func (li *LoadInfo) Unstage(rs *rsyscall.Session) error {
	if err := Transition(li.State, Unloaded); err != nil {
		return err
	}
	if err := rs.Munmap(li.TargetVMABase, li.Size); err != nil {
		return fmt.Errorf("patchobj: unstage munmap: %w", err)
	}
	li.TargetVMABase = 0
	li.State = Unloaded
	return nil
}
