package patchobj

import (
	"debug/elf"
	"fmt"
)

// NewFuncAddr resolves the runtime address of the replacement function a
// patch object carries. The patch's replacement function is compiled as a
// standalone translation unit and keeps target_func's name as its own
// defined symbol (the same convention a livepatch relocatable object
// uses: the old function's name identifies both what is being replaced
// and, within the patch object's own symbol table, the replacement
// itself). Resolves the symbol, computes its runtime address from the
// staged image base, and records it into Info.ReplaceAddrPlaceholder —
// the slot spec §6 names a "placeholder" precisely because it starts
// empty and is filled in once the patch is staged.
func (li *LoadInfo) NewFuncAddr() (uint64, error) {
	syms, err := li.file.Symbols()
	if err != nil {
		return 0, fmt.Errorf("patchobj: read .symtab of %s: %w", li.Path, err)
	}
	for _, s := range syms {
		if s.Name != li.Info.TargetFunc || s.Section == elf.SHN_UNDEF {
			continue
		}
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if int(s.Section) >= len(li.file.Sections) {
			return 0, fmt.Errorf("patchobj: %s has out-of-range section index %d", s.Name, s.Section)
		}
		sec := li.file.Sections[s.Section]
		addr := li.TargetVMABase + sec.Offset + s.Value
		li.Info.ReplaceAddrPlaceholder = addr
		return addr, nil
	}
	return 0, fmt.Errorf("patchobj: %s defines no replacement function symbol %q", li.Path, li.Info.TargetFunc)
}

// ReplacementFuncBytes returns the replacement function's raw, unrelocated
// bytes straight out of the patch object's own section data (the slice
// starts at the function's entry point), along with the byte offset at
// which the function begins within its containing section. Unlike NewFuncAddr this
// needs no staged image: it reads the section as it sits in the ELF file,
// which is exactly what internal/verify wants for a pre-install dry run.
// Any call the function makes to an external symbol still carries its
// unrelocated placeholder bytes, so a verify pass only covers the
// function's self-contained control flow.
func (li *LoadInfo) ReplacementFuncBytes() ([]byte, uint64, error) {
	syms, err := li.file.Symbols()
	if err != nil {
		return nil, 0, fmt.Errorf("patchobj: read .symtab of %s: %w", li.Path, err)
	}
	for _, s := range syms {
		if s.Name != li.Info.TargetFunc || s.Section == elf.SHN_UNDEF {
			continue
		}
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if int(s.Section) >= len(li.file.Sections) {
			return nil, 0, fmt.Errorf("patchobj: %s has out-of-range section index %d", s.Name, s.Section)
		}
		sec := li.file.Sections[s.Section]
		data, err := sec.Data()
		if err != nil {
			return nil, 0, fmt.Errorf("patchobj: read section %s of %s: %w", sec.Name, li.Path, err)
		}
		size := s.Size
		if size == 0 || s.Value+size > uint64(len(data)) {
			size = uint64(len(data)) - s.Value
		}
		return data[s.Value : s.Value+size], s.Value, nil
	}
	return nil, 0, fmt.Errorf("patchobj: %s defines no replacement function symbol %q", li.Path, li.Info.TargetFunc)
}
