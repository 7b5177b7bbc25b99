// Package config loads an optional YAML configuration file controlling
// defaults for patch attach/load sessions, so a caller isn't forced to
// spell out every flag on every invocation. Grounded on the teacher's
// use of gopkg.in/yaml.v3 for structured settings; nothing in the
// teacher carries a dedicated config package, so only the library
// choice is reused, not a file to adapt.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds everything a Task construction or patch load needs that
// a user would otherwise have to repeat on every command invocation.
type Config struct {
	// RegistryRoot overrides the on-disk registry root (default
	// os.TempDir()/ulpatch if empty).
	RegistryRoot string `yaml:"registry_root"`

	// Debug enables verbose (zap development-mode) logging.
	Debug bool `yaml:"debug"`

	// DefaultPatchDir is read from the file and layered by Merge; no
	// command reads it, so a patch path is always used as given.
	DefaultPatchDir string `yaml:"default_patch_dir"`

	// Verify opts every load_patch call into the internal/verify
	// dry-run sandbox check before install.
	Verify bool `yaml:"verify"`
}

// Default returns the zero-config baseline: no registry override, no
// verify pass, no default patch directory.
func Default() Config {
	return Config{}
}

// Load reads and parses a YAML config file at path. A missing file is
// not an error; it returns Default() unchanged, since the whole point
// of an optional config file is that its absence is the common case.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays non-zero fields of override onto c, used to layer
// command-line flags (override) on top of a loaded file (c).
func (c Config) Merge(override Config) Config {
	out := c
	if override.RegistryRoot != "" {
		out.RegistryRoot = override.RegistryRoot
	}
	if override.DefaultPatchDir != "" {
		out.DefaultPatchDir = override.DefaultPatchDir
	}
	if override.Debug {
		out.Debug = true
	}
	if override.Verify {
		out.Verify = true
	}
	return out
}
