// Package operr defines the core's error categories so callers can branch on
// failure kind with errors.Is/errors.As instead of matching message strings.
package operr

import (
	"errors"
	"fmt"
)

// Category identifies one of the error classes from the core's error design.
type Category int

const (
	// Input covers bad pid, missing file, empty file, non-ELF, wrong class/endian.
	Input Category = iota
	// Permission covers EACCES/EPERM from ptrace or /proc/pid/mem.
	Permission
	// TargetState covers construction failures: no libc VMA, no splice site.
	TargetState
	// RemoteSyscall covers a negative return value from an injected syscall.
	RemoteSyscall
	// Relocation covers unresolved symbols, unsupported reloc types, reach overflow.
	Relocation
	// IO covers short reads/writes against memory, /proc/pid/mem, or a patch file.
	IO
)

func (c Category) String() string {
	switch c {
	case Input:
		return "input"
	case Permission:
		return "permission"
	case TargetState:
		return "target-state"
	case RemoteSyscall:
		return "remote-syscall"
	case Relocation:
		return "relocation"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Suggestion returns a short, user-facing hint for the category, printed by
// the CLI adapter alongside the offending address or symbol.
func (c Category) Suggestion() string {
	switch c {
	case Input:
		return "check the patch object path and ELF class/endianness"
	case Permission:
		return "check process ownership and CAP_SYS_PTRACE"
	case TargetState:
		return "check /proc/PID/maps for a libc mapping and a stack"
	case RemoteSyscall:
		return "check /proc/PID/maps and the syscall arguments"
	case Relocation:
		return "check the patch object's undefined symbols"
	case IO:
		return "check /proc/PID/mem is still accessible"
	default:
		return "check /proc/PID/maps"
	}
}

// Error wraps an underlying error with a category and optional context
// (an address or symbol name) for user-facing reporting.
type Error struct {
	Category Category
	Context  string // offending address (hex) or symbol name, if any
	Err      error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Category, e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a categorized Error.
func Wrap(cat Category, context string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: cat, Context: context, Err: err}
}

// Of extracts the Category of err, returning ok=false if err was never
// wrapped by this package.
func Of(err error) (Category, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	return 0, false
}
