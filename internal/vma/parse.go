//go:build linux

package vma

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadMaps parses /proc/<pid>/maps, classifies each mapping, links
// same-named mappings via the leader index, and returns the resulting Set.
// exePath is the target's canonical executable path (from /proc/pid/exe),
// used to tell the SELF mapping apart from an ordinary LIBUnknown one.
func ReadMaps(pid int, exePath string) (*Set, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("vma: open maps for %d: %w", pid, err)
	}
	defer f.Close()

	set, err := buildSet(f, exePath)
	if err != nil {
		return nil, fmt.Errorf("vma: parse maps for %d: %w", pid, err)
	}
	return set, nil
}

// UpdateVMAs re-reads /proc/<pid>/maps and returns a fresh Set. Call after
// any remote mmap/munmap/mprotect changes the target's address space — VMA
// indices are not stable across calls, so callers must re-resolve any index
// they were holding. Task.UpdateVMAs replaces only its Set; the owning-VMA
// indices in its symbol index are not re-resolved.
func UpdateVMAs(pid int, exePath string) (*Set, error) {
	return ReadMaps(pid, exePath)
}

// buildSet parses maps-format text from r into a Set. Split out from
// ReadMaps so tests can exercise the parser/classifier against fixture text
// without a real /proc/pid/maps.
func buildSet(r io.Reader, exePath string) (*Set, error) {
	set := newSet(64)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		v, err := parseLine(sc.Text())
		if err != nil {
			return nil, err
		}
		v.Class = classify(v.Path, exePath)

		idx := len(set.list)
		if v.Path == "" {
			v.LeaderIndex = idx
		} else if leaderIdx, ok := set.leaders[v.Path]; ok {
			v.LeaderIndex = leaderIdx
		} else {
			v.LeaderIndex = idx
			set.leaders[v.Path] = idx
		}
		set.list = append(set.list, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// parseLine decodes one "%lx-%lx %4s %lx %x:%x %d %255s"-shaped line.
func parseLine(line string) (VMA, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return VMA{}, fmt.Errorf("short maps line %q", line)
	}

	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return VMA{}, fmt.Errorf("malformed address range %q", fields[0])
	}
	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return VMA{}, fmt.Errorf("bad start address %q: %w", addrs[0], err)
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return VMA{}, fmt.Errorf("bad end address %q: %w", addrs[1], err)
	}
	if end < start {
		return VMA{}, fmt.Errorf("end 0x%x before start 0x%x", end, start)
	}

	permStr := fields[1]
	if len(permStr) != 4 {
		return VMA{}, fmt.Errorf("malformed perms %q", permStr)
	}
	perms := Perms{
		Read:    permStr[0] == 'r',
		Write:   permStr[1] == 'w',
		Exec:    permStr[2] == 'x',
		Private: permStr[3] == 'p',
	}

	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return VMA{}, fmt.Errorf("bad offset %q: %w", fields[2], err)
	}

	inode, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return VMA{}, fmt.Errorf("bad inode %q: %w", fields[4], err)
	}

	path := ""
	if len(fields) > 5 {
		path = strings.Join(fields[5:], " ")
	}

	return VMA{
		Start:  start,
		End:    end,
		Perms:  perms,
		Offset: offset,
		Dev:    fields[3],
		Inode:  inode,
		Path:   path,
	}, nil
}

// classify assigns a Class per spec §3, given the mapping's backing-file
// path (empty for anonymous) and the target's own executable path.
func classify(path, exePath string) Class {
	switch path {
	case "":
		return ANON
	case "[heap]":
		return HEAP
	case "[stack]":
		return STACK
	case "[vvar]":
		return VVAR
	case "[vdso]":
		return VDSO
	case "[vsyscall]":
		return VSYSCALL
	}
	if exePath != "" && path == exePath {
		return SELF
	}

	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "libc.so"), strings.HasPrefix(base, "libc-"):
		return LIBC
	case strings.HasPrefix(base, "ld-linux"), strings.HasPrefix(base, "ld-musl"), strings.HasPrefix(base, "ld-"):
		return LD
	case strings.HasPrefix(base, "libelf"):
		return LIBELF
	case strings.Contains(path, "/"):
		return LIBUnknown
	default:
		return ANON
	}
}
