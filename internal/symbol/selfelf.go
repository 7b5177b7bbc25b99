package symbol

import (
	"debug/elf"
	"fmt"
)

// LoadSelfELF opens the target's on-disk executable and wraps every defined
// symbol from .symtab/.dynsym, tagged with leaderIndex (the SELF VMA's
// position in the Task's vma.Set). Mirrors the teacher's DynamicSymbols()
// then Symbols() loop in LoadELFAt, minus the PIE relocation-offset math:
// no offset is applied here, and RuntimeAddr applies none either, since the
// SELF leader carries no ELFInfo. A self symbol's address is its st_value,
// which for a PIE executable is the link-time value, not the load-biased one.
func LoadSelfELF(path string, leaderIndex int) ([]Symbol, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbol: open self ELF %s: %w", path, err)
	}
	defer f.Close()

	var out []Symbol
	seen := make(map[string]bool)

	addFrom := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Name == "" || s.Value == 0 {
				continue
			}
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			out = append(out, Symbol{
				Name: s.Name,
				Sym: ElfSym{
					Value:   s.Value,
					Size:    s.Size,
					Binding: Binding(elf.ST_BIND(s.Info)),
					Type:    Type(elf.ST_TYPE(s.Info)),
				},
				OwningLeaderIndex: leaderIndex,
			})
		}
	}

	if dynSyms, err := f.DynamicSymbols(); err == nil {
		addFrom(dynSyms)
	}
	if syms, err := f.Symbols(); err == nil {
		addFrom(syms)
	}
	return out, nil
}
