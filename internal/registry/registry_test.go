package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesTreeAndComm(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root, 4242, "ultaskd")
	if err != nil {
		t.Fatal(err)
	}
	comm, err := os.ReadFile(filepath.Join(r.Dir(), "comm"))
	if err != nil {
		t.Fatal(err)
	}
	if string(comm) != "ultaskd\n" {
		t.Fatalf("got %q", comm)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), mapFilesDir)); err != nil {
		t.Fatalf("map_files/ missing: %v", err)
	}
}

func TestOpenToleratesExisting(t *testing.T) {
	root := t.TempDir()
	if _, err := Open(root, 1, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root, 1, "a"); err != nil {
		t.Fatalf("second Open on same pid should tolerate EEXIST: %v", err)
	}
}

func TestRegisterAndRemove(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root, 7, "target")
	if err != nil {
		t.Fatal(err)
	}
	path, err := r.Register([]byte("elf-body"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "elf-body" {
		t.Fatalf("got %q", got)
	}
	if err := r.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected file to be removed")
	}
	// Removing twice (stale/already-gone entry) is tolerated.
	if err := r.Remove(path); err != nil {
		t.Fatalf("second Remove should tolerate already-gone file: %v", err)
	}
}

func TestCloseRemovesTree(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root, 9, "x")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(r.Dir()); !os.IsNotExist(err) {
		t.Fatal("expected registry directory to be removed")
	}
}
