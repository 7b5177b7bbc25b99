package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ulpatch.yaml")
	content := "registry_root: /tmp/custom\ndebug: true\nverify: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RegistryRoot != "/tmp/custom" || !cfg.Debug || !cfg.Verify {
		t.Fatalf("got %+v", cfg)
	}
}

func TestMergeOverridesOnlyNonZero(t *testing.T) {
	base := Config{RegistryRoot: "/base", DefaultPatchDir: "/patches"}
	merged := base.Merge(Config{Debug: true})

	if merged.RegistryRoot != "/base" || merged.DefaultPatchDir != "/patches" {
		t.Fatalf("base fields should survive: %+v", merged)
	}
	if !merged.Debug {
		t.Fatal("expected Debug overridden to true")
	}
}
