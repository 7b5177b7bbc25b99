// Package patchobj implements the ELF-aware patch loader: parsing a
// relocatable ELF patch object, staging it into a target process, resolving
// its undefined symbols against the target's symbol index, and applying
// relocations. Grounded on the teacher's applyRelocations/addPLTSymbols
// shape in internal/emulator/elf.go, generalized from "fix up GOT entries
// in an emulated address space at load time" to "apply standard ELF
// relocations against a live target's memory."
package patchobj

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"

	"github.com/ulpatch/ulpatch/internal/operr"
)

// LoadInfo is a patch object's in-memory snapshot, matching spec §3's
// Patch Load-Info: raw bytes, the parsed ELF, the upatch_info record, and
// the bookkeeping fields filled in as the patch moves through its
// lifecycle (TargetVMABase once Staged, PatchFilepathInRegistry once
// Registered, CallSites as Install records accumulate).
type LoadInfo struct {
	Path string
	Raw  []byte
	Size uint64

	file *elf.File
	Info UpatchInfo

	// TargetVMABase is the patch image's mmap base inside the target,
	// set by Stage.
	TargetVMABase uint64

	// PatchFilepathInRegistry is set once internal/registry records this
	// patch on disk.
	PatchFilepathInRegistry string

	// Resolved maps each undefined symbol name to its runtime address in
	// the target, filled in by ResolveExternals.
	Resolved map[string]uint64

	// CallSites accumulates one entry per branch installed by
	// internal/install, in install order, so removal can unwind in
	// reverse order per spec §4.H.
	CallSites []CallSiteRecord

	State State
}

// CallSiteRecord is {call_site, original_bytes, trampoline_addr_or_none}
// from spec §4.H, recorded on every successful install so delete_patch can
// restore exactly what was overwritten.
type CallSiteRecord struct {
	CallSite       uint64
	OriginalBytes  []byte
	TrampolineAddr uint64 // 0 if no trampoline was used
}

// ParseLoadInfo reads path, validates it as an ELF64 LSB ET_REL object
// whose machine matches wantMachine, and locates .symtab, .strtab,
// .upatch.info, .upatch.strtab. Implements spec §4.G step 1
// (parse_load_info).
func ParseLoadInfo(path string, wantMachine elf.Machine) (*LoadInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("patchobj: read %s: %w", path, err)
	}

	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("parse ELF: %w", err))
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("not ELFCLASS64"))
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("not little-endian"))
	}
	if f.Type != elf.ET_REL {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("not ET_REL (relocatable)"))
	}
	if f.Machine != wantMachine {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("for machine %s, host is %s", f.Machine, wantMachine))
	}

	if f.Section(".symtab") == nil || f.Section(".strtab") == nil {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("missing .symtab/.strtab"))
	}
	upatchInfoSec := f.Section(".upatch.info")
	if upatchInfoSec == nil {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("missing .upatch.info"))
	}
	if f.Section(".upatch.strtab") == nil {
		return nil, operr.Wrap(operr.Input, path, fmt.Errorf("missing .upatch.strtab"))
	}

	infoBytes, err := upatchInfoSec.Data()
	if err != nil {
		return nil, fmt.Errorf("patchobj: read .upatch.info in %s: %w", path, err)
	}
	info, err := parseUpatchInfo(infoBytes)
	if err != nil {
		return nil, fmt.Errorf("patchobj: %s: %w", path, err)
	}

	return &LoadInfo{
		Path:     path,
		Raw:      raw,
		Size:     uint64(len(raw)),
		file:     f,
		Info:     info,
		Resolved: make(map[string]uint64),
		State:    Parsed,
	}, nil
}

// TargetFunc is the name of the function this patch replaces.
func (li *LoadInfo) TargetFunc() string { return li.Info.TargetFunc }
