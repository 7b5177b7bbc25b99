// Package registry implements spec §4.I's on-disk patch registry: a
// directory tree under a well-known root recording, per target PID, the
// command name and a copy of every currently-staged patch object. The
// registry is advisory — stale entries from a crashed tool run are
// harmless, and open_target tolerates EEXIST and overwrites, matching the
// teacher's own tolerant-of-prior-runs posture for its trace-output
// directories.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const mapFilesDir = "map_files"

// Registry is one target's entry under ROOT: <ROOT>/<pid>/.
type Registry struct {
	root string
	pid  int
}

// Open creates (or reuses) <root>/<pid>/ and its map_files/ subdirectory,
// and records comm. Tolerates the directory already existing from a prior
// run, per spec.
func Open(root string, pid int, comm string) (*Registry, error) {
	dir := filepath.Join(root, fmt.Sprintf("%d", pid))
	if err := os.MkdirAll(filepath.Join(dir, mapFilesDir), 0o755); err != nil {
		return nil, fmt.Errorf("registry: create %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("registry: write comm: %w", err)
	}
	return &Registry{root: root, pid: pid}, nil
}

// Dir returns <root>/<pid>.
func (r *Registry) Dir() string {
	return filepath.Join(r.root, fmt.Sprintf("%d", r.pid))
}

// Register copies patchImage into a newly allocated patch-XXXXXX file
// under map_files/ and returns its path — the registryPath
// internal/patchobj.Stage expects the target to open. Implements spec
// §4.G step 5 / §4.I.
func (r *Registry) Register(patchImage []byte) (string, error) {
	name := "patch-" + uuid.NewString()[:6]
	path := filepath.Join(r.Dir(), mapFilesDir, name)
	if err := os.WriteFile(path, patchImage, 0o644); err != nil {
		return "", fmt.Errorf("registry: write %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes one registered patch file. Implements the registry-entry
// removal half of spec §4.H's ACTIVE->UNLOADED delete_patch unwind.
func (r *Registry) Remove(registryPath string) error {
	if err := os.Remove(registryPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("registry: remove %s: %w", registryPath, err)
	}
	return nil
}

// Close removes the target's entire registry directory, used once the
// owning Task detaches and no patches remain active.
func (r *Registry) Close() error {
	if err := os.RemoveAll(r.Dir()); err != nil {
		return fmt.Errorf("registry: remove %s: %w", r.Dir(), err)
	}
	return nil
}
