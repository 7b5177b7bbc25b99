package symbol

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ulpatch/ulpatch/internal/memio"
	"github.com/ulpatch/ulpatch/internal/vma"
)

// sharedLibraryNamePrefixes are filename prefixes always treated as shared
// libraries regardless of the ET_DYN/PT_INTERP test, per §3's narrow
// exception for the libraries most likely to carry an embedded interpreter
// segment of their own (e.g. libc doubling as the dynamic loader on some
// distros).
var sharedLibraryNamePrefixes = []string{"libc", "libssp", "libpthread", "libdl"}

func looksLikeSharedLibraryByName(path string) bool {
	base := filepath.Base(path)
	for _, prefix := range sharedLibraryNamePrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// maxCStringChunk bounds each read attempt while hunting for a symbol
// name's NUL terminator in target memory.
const maxCStringChunk = 64

// maxCStringLen bounds the total length of any one symbol name read back,
// guarding against a corrupt or hostile string table looping forever.
const maxCStringLen = 4096

// LoadLibrarySymbols walks leader's PT_DYNAMIC to find DT_SYMTAB/DT_STRTAB
// and reads the whole symbol and string table region from the target's
// memory in one pass (per §4.F). leader must be the leading VMA of its
// backing-file group (leader.LeaderIndex == leaderIndex == leader's own
// position in the Set).
func LoadLibrarySymbols(mem *memio.Mem, leader vma.VMA, leaderIndex int) ([]Symbol, *vma.ELFInfo, error) {
	ehdrBuf, err := mem.ReadAt(leader.Start, ehdrSize)
	if err != nil {
		return nil, nil, fmt.Errorf("symbol: read ELF header at 0x%x: %w", leader.Start, err)
	}
	eh, err := parseEhdr(ehdrBuf)
	if err != nil {
		return nil, nil, fmt.Errorf("symbol: %s at 0x%x: %w", err, leader.Start, err)
	}

	phdrs, minLoadVaddr, err := readProgramHeaders(mem, leader, eh)
	if err != nil {
		return nil, nil, err
	}

	hasInterp := false
	for _, ph := range phdrs {
		if ph.Type == ptInterp {
			hasInterp = true
			break
		}
	}
	isShared := eh.Type == etDyn && !hasInterp
	if looksLikeSharedLibraryByName(leader.Path) {
		isShared = true
	}
	// loadOffset is the delta between a segment's linked p_vaddr and its
	// runtime address: the leader VMA's own p_vaddr is minLoadVaddr (the
	// lowest PT_LOAD vaddr, by construction the leader's segment), and it
	// is mapped at leader.Start, so any other vaddr v becomes
	// leader.Start + (v - minLoadVaddr).
	loadOffset := leader.Start - minLoadVaddr
	elfInfo := &vma.ELFInfo{LoadOffset: loadOffset, IsSharedLibrary: isShared}

	var dynVaddr uint64
	var dynFound bool
	for _, ph := range phdrs {
		if ph.Type == ptDynamic {
			dynVaddr = ph.Vaddr
			dynFound = true
			break
		}
	}
	if !dynFound {
		return nil, elfInfo, nil // no PT_DYNAMIC: static binary or non-ELF mapping, nothing to load
	}

	dynAddr := dynVaddr + loadOffset
	symtabAddr, strtabAddr, strSize, symEnt, err := readDynamicTags(mem, dynAddr)
	if err != nil {
		return nil, elfInfo, err
	}
	if symEnt != symSize {
		return nil, elfInfo, fmt.Errorf("symbol: unexpected DT_SYMENT %d (want %d) in %s", symEnt, symSize, leader.Path)
	}
	symtabAddr += loadOffset
	strtabAddr += loadOffset

	if strtabAddr <= symtabAddr {
		return nil, elfInfo, fmt.Errorf("symbol: DT_STRTAB (0x%x) not after DT_SYMTAB (0x%x) in %s", strtabAddr, symtabAddr, leader.Path)
	}
	span := strtabAddr - symtabAddr
	numSyms := int(span / symSize)
	if numSyms == 0 {
		return nil, elfInfo, nil
	}

	raw, err := mem.ReadAt(symtabAddr, int(span+strSize))
	if err != nil {
		return nil, elfInfo, fmt.Errorf("symbol: read symtab+strtab region at 0x%x: %w", symtabAddr, err)
	}
	strtab := raw[span:]

	var out []Symbol
	for i := 0; i < numSyms; i++ {
		entry := raw[i*symSize : (i+1)*symSize]
		sym := parseSym(entry)
		if sym.Shndx == 0 || sym.Name == 0 || uint64(sym.Name) >= uint64(len(strtab)) {
			continue // SHN_UNDEF or anonymous: skip per spec
		}
		name := strtab[sym.Name:]
		if end := bytes.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		if len(name) == 0 {
			continue
		}
		out = append(out, Symbol{
			Name: string(name),
			Sym: ElfSym{
				Value:   sym.Value,
				Size:    sym.Size,
				Binding: sym.binding(),
				Type:    sym.typ(),
			},
			OwningLeaderIndex: leaderIndex,
		})
	}
	return out, elfInfo, nil
}

// readProgramHeaders reads and parses the program header table, returning
// it alongside the lowest PT_LOAD p_vaddr (the segment the leader VMA maps).
func readProgramHeaders(mem *memio.Mem, leader vma.VMA, eh ehdrFields) ([]phdr64, uint64, error) {
	if eh.Phentsize != phdrSize {
		return nil, 0, fmt.Errorf("symbol: unexpected e_phentsize %d (want %d) in %s", eh.Phentsize, phdrSize, leader.Path)
	}
	phdrAddr := leader.Start + (eh.Phoff - leader.Offset)
	raw, err := mem.ReadAt(phdrAddr, int(eh.Phnum)*phdrSize)
	if err != nil {
		return nil, 0, fmt.Errorf("symbol: read program headers at 0x%x: %w", phdrAddr, err)
	}

	phdrs := make([]phdr64, eh.Phnum)
	minVaddr := ^uint64(0)
	for i := range phdrs {
		ph := parsePhdr(raw[i*phdrSize : (i+1)*phdrSize])
		phdrs[i] = ph
		const ptLoad = 1
		if ph.Type == ptLoad && ph.Vaddr < minVaddr {
			minVaddr = ph.Vaddr
		}
	}
	if minVaddr == ^uint64(0) {
		return nil, 0, fmt.Errorf("symbol: no PT_LOAD segments in %s", leader.Path)
	}
	return phdrs, minVaddr, nil
}

// readDynamicTags walks the Elf64_Dyn array at dynAddr until DT_NULL,
// returning the tags the resolver needs. Values are still link-time vaddrs;
// the caller applies loadOffset.
func readDynamicTags(mem *memio.Mem, dynAddr uint64) (symtab, strtab, strsz, syment uint64, err error) {
	addr := dynAddr
	for {
		raw, rerr := mem.ReadAt(addr, dynSize)
		if rerr != nil {
			return 0, 0, 0, 0, fmt.Errorf("symbol: read dynamic entry at 0x%x: %w", addr, rerr)
		}
		d := parseDyn(raw)
		switch d.Tag {
		case dtNull:
			if symtab == 0 {
				return 0, 0, 0, 0, fmt.Errorf("symbol: no DT_SYMTAB found starting at 0x%x", dynAddr)
			}
			return symtab, strtab, strsz, syment, nil
		case dtSymTab:
			symtab = d.Val
		case dtStrTab:
			strtab = d.Val
		case dtStrSz:
			strsz = d.Val
		case dtSymEnt:
			syment = d.Val
		}
		addr += dynSize
	}
}

// readCString reads a NUL-terminated string starting at addr, growing the
// read window until the terminator is found or maxCStringLen is exceeded.
func readCString(mem *memio.Mem, addr uint64) (string, error) {
	var buf []byte
	for len(buf) < maxCStringLen {
		chunk, err := mem.ReadAt(addr+uint64(len(buf)), maxCStringChunk)
		if err != nil {
			return "", err
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(buf, chunk[:i]...)), nil
		}
		buf = append(buf, chunk...)
	}
	return "", fmt.Errorf("symbol: string at 0x%x exceeds %d bytes without NUL", addr, maxCStringLen)
}
